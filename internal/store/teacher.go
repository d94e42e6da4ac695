package store

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/pavelanni/autograder/internal/model"
)

// CreateTeacher inserts a new teacher account.
func (s *Store) CreateTeacher(ctx context.Context, t model.Teacher) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO teachers (username, display_name, password_hash, active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.Username, t.DisplayName, t.PasswordHash, t.Active, s.now(),
	)
	if err != nil {
		slog.Error("failed to create teacher", "username", t.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created teacher", "id", id, "username", t.Username)
	return id, nil
}

// GetTeacherByUsername returns a teacher by username, or nil if not found.
func (s *Store) GetTeacherByUsername(ctx context.Context, username string) (*model.Teacher, error) {
	return s.getTeacher(ctx, `SELECT id, username, display_name, password_hash, active, created_at
		 FROM teachers WHERE username = ?`, username)
}

// GetTeacherByID returns a teacher by ID, or nil if not found.
func (s *Store) GetTeacherByID(ctx context.Context, id int64) (*model.Teacher, error) {
	return s.getTeacher(ctx, `SELECT id, username, display_name, password_hash, active, created_at
		 FROM teachers WHERE id = ?`, id)
}

func (s *Store) getTeacher(ctx context.Context, query string, arg any) (*model.Teacher, error) {
	var t model.Teacher
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&t.ID, &t.Username, &t.DisplayName, &t.PasswordHash, &t.Active, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TeacherCount returns the total number of teacher accounts.
func (s *Store) TeacherCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teachers`).Scan(&count)
	return count, err
}
