package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pavelanni/autograder/internal/llm/prompts"
	"github.com/pavelanni/autograder/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is the OpenRouter endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel is the vision model used for grading.
	DefaultModel = "google/gemini-2.5-flash"

	defaultTimeout = 60 * time.Second
	maxTokens      = 1024
	maxScore       = 100
	noFeedback     = "No feedback provided"
)

var (
	// ErrUnavailable means the model endpoint could not be reached or
	// returned an error.
	ErrUnavailable = errors.New("grading service unavailable")
	// ErrMalformedResponse means the model replied with something that does
	// not match the expected shape.
	ErrMalformedResponse = errors.New("malformed model response")
)

var (
	fenceRegex  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	objectRegex = regexp.MustCompile(`(?s)\{.*\}`)
)

// Config configures the model client. It is built once at start-up.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	SiteURL       string // sent as HTTP-Referer for OpenRouter attribution
	AppTitle      string // sent as X-Title
	PromptVariant prompts.Variant
	MaxAttempts   int // attempts per grading call when the reply is malformed
	Timeout       time.Duration
}

// GradeResult holds the model's assessment of one submission.
type GradeResult struct {
	Score    int
	Feedback string
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api      *openai.Client
	model    string
	variant  prompts.Variant
	attempts int
	prompts  *prompts.Set
}

// New creates a new LLM client.
func New(cfg Config, set *prompts.Set) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm API key is required")
	}
	if set == nil {
		return nil, errors.New("prompt set is required")
	}
	if cfg.PromptVariant == "" {
		cfg.PromptVariant = prompts.Standard
	}
	if !prompts.IsValidVariant(string(cfg.PromptVariant)) {
		return nil, fmt.Errorf("invalid prompt variant %q", cfg.PromptVariant)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	headers := make(http.Header)
	if cfg.SiteURL != "" {
		headers.Set("HTTP-Referer", cfg.SiteURL)
	}
	if cfg.AppTitle != "" {
		headers.Set("X-Title", cfg.AppTitle)
	}
	config.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
	}

	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    cfg.Model,
		variant:  cfg.PromptVariant,
		attempts: cfg.MaxAttempts,
		prompts:  set,
	}, nil
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			req.Header[k] = v
		}
	}
	return t.base.RoundTrip(req)
}

// Ping checks that the endpoint is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// GradeSubmission asks the model to grade a handwritten solution image
// against the question's rubric. Malformed replies are retried; an
// unreachable endpoint is not.
func (c *Client) GradeSubmission(ctx context.Context, q model.Question, imageBase64 string) (*GradeResult, error) {
	system, err := c.prompts.GradeSystem(c.variant)
	if err != nil {
		return nil, err
	}
	user, err := c.prompts.GradeUser(q.ProblemText, q.Rubric)
	if err != nil {
		return nil, fmt.Errorf("build grading prompt: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: user},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    ImageDataURL(imageBase64),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   maxTokens,
		Temperature: 0.1,
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		raw, err := c.complete(ctx, req)
		if err != nil {
			return nil, err
		}
		result, err := parseGrade(raw)
		if err == nil {
			return result, nil
		}
		slog.Warn("malformed grading response", "attempt", attempt, "question_id", q.ID, "error", err)
		slog.Debug("LLM response", "raw", raw)
		lastErr = err
	}
	return nil, lastErr
}

// GenerateRubric drafts a 100-point grading rubric for a problem.
func (c *Client) GenerateRubric(ctx context.Context, problemText string) (string, error) {
	system, err := c.prompts.RubricSystem()
	if err != nil {
		return "", fmt.Errorf("build rubric prompt: %w", err)
	}
	user, err := c.prompts.RubricUser(problemText)
	if err != nil {
		return "", fmt.Errorf("build rubric prompt: %w", err)
	}

	raw, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	rubric := strings.TrimSpace(raw)
	if rubric == "" {
		return "", fmt.Errorf("%w: empty rubric", ErrMalformedResponse)
	}
	return rubric, nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// ImageDataURL returns s as a data URL, assuming PNG when s is bare base64.
func ImageDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		return s
	}
	return "data:image/png;base64," + s
}

// gradeReply is the JSON object the grading prompt asks for. Both fields are
// required.
type gradeReply struct {
	Score    *float64 `json:"score"`
	Feedback *string  `json:"feedback"`
}

func parseGrade(raw string) (*GradeResult, error) {
	var reply gradeReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if reply.Score == nil {
		return nil, fmt.Errorf("%w: missing score", ErrMalformedResponse)
	}
	if reply.Feedback == nil {
		return nil, fmt.Errorf("%w: missing feedback", ErrMalformedResponse)
	}

	score := int(math.Round(math.Max(0, math.Min(maxScore, *reply.Score))))
	feedback := strings.TrimSpace(*reply.Feedback)
	if feedback == "" {
		feedback = noFeedback
	}
	return &GradeResult{Score: score, Feedback: feedback}, nil
}

// extractJSON pulls a JSON object out of a reply that may wrap it in a
// markdown code fence or surrounding prose.
func extractJSON(content string) string {
	if m := fenceRegex.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := objectRegex.FindString(content); m != "" {
		return m
	}
	return strings.TrimSpace(content)
}
