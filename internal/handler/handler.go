package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/text/language"

	"github.com/pavelanni/autograder/internal/gradebook"
	"github.com/pavelanni/autograder/internal/llm"
	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/store"
)

const (
	maxBodyBytes  = 1 << 20
	maxGradeBytes = 10 << 20
)

// Grader grades submissions and drafts rubrics. *llm.Client implements it.
type Grader interface {
	GradeSubmission(ctx context.Context, q model.Question, imageBase64 string) (*llm.GradeResult, error)
	GenerateRubric(ctx context.Context, problemText string) (string, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	grader  Grader
	reports *gradebook.Builder
	config  model.AppConfig
}

// New creates a new Handler. Gradebook student names are sorted using the
// collation of cfg.Lang.
func New(s *store.Store, g Grader, cfg model.AppConfig) (*Handler, error) {
	if s == nil || g == nil {
		return nil, errors.New("store and grader are required")
	}
	tag := language.English
	if cfg.Lang != "" {
		t, err := language.Parse(cfg.Lang)
		if err != nil {
			return nil, err
		}
		tag = t
	}
	return &Handler{
		store:   s,
		grader:  g,
		reports: gradebook.NewBuilder(tag),
		config:  cfg,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api", func(api chi.Router) {
		if len(h.config.CORSOrigins) > 0 {
			api.Use(cors.Handler(cors.Options{
				AllowedOrigins: h.config.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Content-Type", csrfHeaderName},
				MaxAge:         300,
			}))
		}

		api.Get("/assignments/{id}", h.apiGetAssignment)
		api.Post("/grade", h.apiGrade)

		api.Group(func(t chi.Router) {
			t.Use(h.requireTeacherAPI)
			t.Use(h.csrfMiddleware)
			t.Get("/assignments", h.apiListAssignments)
			t.Post("/assignments", h.apiCreateAssignment)
			t.Get("/assignments/{id}/reports", h.apiGetReport)
			t.Post("/generate-rubric", h.apiGenerateRubric)
		})
	})

	r.Group(func(pages chi.Router) {
		pages.Use(middleware.RequestSize(maxBodyBytes))
		pages.Use(h.csrfMiddleware)

		pages.Get("/", h.handleIndex)
		pages.Get("/login", h.handleLoginPage)
		pages.Post("/login", h.handleLogin)
		pages.Get("/student/assignment/{id}", h.handleStudentPage)

		pages.Group(func(t chi.Router) {
			t.Use(h.requireTeacher)
			t.Post("/logout", h.handleLogout)
			t.Get("/teacher", h.handleTeacherHome)
			t.Post("/teacher/import", h.handleImport)
			t.Get("/teacher/create", h.handleCreatePage)
			t.Get("/teacher/assignment/{id}", h.handleTeacherAssignment)
			t.Get("/teacher/gradebook/{id}", h.handleGradebookPage)
		})
	})
}

// BasePathMiddleware injects the configured base path into the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "path", r.URL.Path, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid JSON body")
}
