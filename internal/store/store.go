package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/autograder/internal/model"

	_ "modernc.org/sqlite"
)

// ErrInvalidInput is returned when a create request fails validation.
var ErrInvalidInput = errors.New("invalid input")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL,
		problem_text TEXT NOT NULL,
		rubric TEXT NOT NULL,
		order_index INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (assignment_id) REFERENCES assignments(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_questions_assignment ON questions(assignment_id, order_index);

	CREATE TABLE IF NOT EXISTS submissions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		question_id TEXT NOT NULL,
		student_name TEXT NOT NULL,
		image_data TEXT NOT NULL,
		ai_score INTEGER,
		ai_feedback TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_question ON submissions(question_id, created_at);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS teachers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		teacher_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (teacher_id) REFERENCES teachers(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ValidationError describes why a create request was rejected. It matches
// ErrInvalidInput with errors.Is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Reason }

// Is reports whether target is ErrInvalidInput.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// ValidateAssignment checks a create-assignment request.
func ValidateAssignment(in model.CreateAssignmentInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Reason: "Title is required"}
	}
	if len(in.Questions) == 0 {
		return &ValidationError{Reason: "At least one question is required"}
	}
	for _, q := range in.Questions {
		if strings.TrimSpace(q.ProblemText) == "" || strings.TrimSpace(q.Rubric) == "" {
			return &ValidationError{Reason: "Each question must have problem_text and rubric"}
		}
	}
	return nil
}

// CreateAssignment stores an assignment and its questions in one transaction.
// Questions without an order index are numbered by position, starting at 1.
func (s *Store) CreateAssignment(ctx context.Context, in model.CreateAssignmentInput) (string, error) {
	if err := ValidateAssignment(in); err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	now := s.now()
	assignmentID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO assignments (id, title, created_at) VALUES (?, ?, ?)`,
		assignmentID, in.Title, now,
	); err != nil {
		return "", fmt.Errorf("insert assignment: %w", err)
	}

	for i, q := range in.Questions {
		order := i + 1
		if q.OrderIndex != nil {
			order = *q.OrderIndex
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, assignment_id, problem_text, rubric, order_index, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), assignmentID, q.ProblemText, q.Rubric, order, now,
		); err != nil {
			return "", fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}

	return assignmentID, tx.Commit()
}

// ListAssignments returns all assignments, newest first.
func (s *Store) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, created_at FROM assignments ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assignments := []model.Assignment{}
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.Title, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// GetAssignment returns an assignment by ID, or nil if it does not exist.
func (s *Store) GetAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM assignments WHERE id = ?`, id,
	).Scan(&a.ID, &a.Title, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAssignmentWithQuestions returns an assignment with its ordered questions,
// or nil if it does not exist.
func (s *Store) GetAssignmentWithQuestions(ctx context.Context, id string) (*model.AssignmentWithQuestions, error) {
	a, err := s.GetAssignment(ctx, id)
	if err != nil || a == nil {
		return nil, err
	}
	questions, err := s.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.AssignmentWithQuestions{Assignment: *a, Questions: questions}, nil
}

// ListQuestions returns the questions of an assignment ordered by order index.
func (s *Store) ListQuestions(ctx context.Context, assignmentID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assignment_id, problem_text, rubric, order_index, created_at
		 FROM questions WHERE assignment_id = ? ORDER BY order_index, rowid`, assignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.AssignmentID, &q.ProblemText, &q.Rubric, &q.OrderIndex, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by ID, or nil if it does not exist.
func (s *Store) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	var q model.Question
	err := s.db.QueryRowContext(ctx,
		`SELECT id, assignment_id, problem_text, rubric, order_index, created_at FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.AssignmentID, &q.ProblemText, &q.Rubric, &q.OrderIndex, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateSubmission stores an ungraded submission and returns its ID.
// A zero CreatedAt is set to the current time.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, question_id, student_name, image_data, ai_score, ai_feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.QuestionID, sub.StudentName, sub.ImageData,
		nullInt(sub.Score), nullString(sub.Feedback), sub.CreatedAt.UTC(),
	)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

// UpdateSubmissionGrade records the AI score and feedback for a submission.
func (s *Store) UpdateSubmissionGrade(ctx context.Context, id string, score int, feedback string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET ai_score = ?, ai_feedback = ? WHERE id = ?`,
		score, feedback, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetSubmission returns a submission by ID, or nil if it does not exist.
func (s *Store) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question_id, student_name, image_data, ai_score, ai_feedback, created_at
		 FROM submissions WHERE id = ?`, id,
	)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions returns all submissions for the given questions, newest first.
// Submissions with equal timestamps are returned in reverse insertion order.
func (s *Store) ListSubmissions(ctx context.Context, questionIDs []string) ([]model.Submission, error) {
	if len(questionIDs) == 0 {
		return []model.Submission{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(questionIDs)), ",")
	args := make([]any, 0, len(questionIDs))
	for _, id := range questionIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, student_name, image_data, ai_score, ai_feedback, created_at
		 FROM submissions WHERE question_id IN (`+placeholders+`)
		 ORDER BY created_at DESC, seq DESC`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	submissions := []model.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, sub)
	}
	return submissions, rows.Err()
}

// SubmissionCount returns the number of submissions for an assignment.
func (s *Store) SubmissionCount(ctx context.Context, assignmentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions s JOIN questions q ON q.id = s.question_id WHERE q.assignment_id = ?`,
		assignmentID,
	).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(sc scanner) (model.Submission, error) {
	var (
		sub      model.Submission
		score    sql.NullInt64
		feedback sql.NullString
	)
	if err := sc.Scan(&sub.ID, &sub.QuestionID, &sub.StudentName, &sub.ImageData, &score, &feedback, &sub.CreatedAt); err != nil {
		return sub, err
	}
	if score.Valid {
		v := int(score.Int64)
		sub.Score = &v
	}
	if feedback.Valid {
		v := feedback.String
		sub.Feedback = &v
	}
	return sub, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
