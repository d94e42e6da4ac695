package model

import (
	"context"
	"time"
)

// Teacher represents a teacher account. Students are not accounts: they are
// identified only by the name typed on the submission form.
type Teacher struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	TeacherID int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type teacherCtxKey struct{}

// ContextWithTeacher stores a teacher in the request context.
func ContextWithTeacher(ctx context.Context, t *Teacher) context.Context {
	return context.WithValue(ctx, teacherCtxKey{}, t)
}

// TeacherFromContext retrieves the authenticated teacher from context, or nil.
func TeacherFromContext(ctx context.Context) *Teacher {
	t, _ := ctx.Value(teacherCtxKey{}).(*Teacher)
	return t
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Assignment is a named collection of questions authored by a teacher.
type Assignment struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// AssignmentSummary is the assignment header carried by a report.
type AssignmentSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Summary returns the report header for the assignment.
func (a Assignment) Summary() AssignmentSummary {
	return AssignmentSummary{ID: a.ID, Title: a.Title}
}

// Question is one problem within an assignment.
type Question struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	ProblemText  string    `json:"problem_text"`
	Rubric       string    `json:"rubric"`
	OrderIndex   int       `json:"order_index"`
	CreatedAt    time.Time `json:"created_at"`
}

// AssignmentWithQuestions is an assignment with its questions ordered by OrderIndex.
type AssignmentWithQuestions struct {
	Assignment
	Questions []Question `json:"questions"`
}

// Submission is one student's attempt at one question. Score and Feedback
// stay nil until the submission has been graded.
type Submission struct {
	ID          string    `json:"id"`
	QuestionID  string    `json:"question_id"`
	StudentName string    `json:"student_name"`
	ImageData   string    `json:"image_data"`
	Score       *int      `json:"ai_score"`
	Feedback    *string   `json:"ai_feedback"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuestionInput describes a question in a create request.
type QuestionInput struct {
	ProblemText string `json:"problem_text"`
	Rubric      string `json:"rubric"`
	OrderIndex  *int   `json:"order_index,omitempty"`
}

// CreateAssignmentInput is the body of a create-assignment request and the
// unit of the assignment import file.
type CreateAssignmentInput struct {
	Title     string          `json:"title"`
	Questions []QuestionInput `json:"questions"`
}

// GradeRequest is the body of a grading request.
type GradeRequest struct {
	QuestionID  string `json:"question_id"`
	StudentName string `json:"student_name"`
	ImageBase64 string `json:"image_base64"`
}

// GradingResult is returned after a submission has been graded.
type GradingResult struct {
	SubmissionID string `json:"submission_id"`
	Score        int    `json:"score"`
	Feedback     string `json:"feedback"`
}

// RubricRequest is the body of a rubric generation request.
type RubricRequest struct {
	ProblemText string `json:"problem_text"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	BasePath      string   // URL prefix for sub-path deployments (e.g. "/grader")
	SecureCookies bool     // Set Secure flag on cookies (disable for local dev)
	Lang          string   // UI language, also used for gradebook name collation
	CORSOrigins   []string // origins allowed to call the JSON API; empty disables CORS
}
