// Package importer loads assignments from JSON files.
//
// A file is a JSON array of assignments:
//
//	[{"title": "Linear equations", "questions": [{"problem_text": "...", "rubric": "..."}]}]
//
// Files are imported once. The SHA-256 of the content is recorded under the
// file name; re-importing an unchanged file is a no-op and a file that changed
// after import is skipped, since submissions already reference its questions.
package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/store"
)

// Store is the persistence the importer needs.
type Store interface {
	GetImportedFileHash(ctx context.Context, path string) (string, error)
	SetImportedFileHash(ctx context.Context, path, hash string) error
	CreateAssignment(ctx context.Context, in model.CreateAssignmentInput) (string, error)
}

// Status describes what Import did with a file.
type Status int

const (
	// Imported means the file was new and its assignments were created.
	Imported Status = iota
	// Unchanged means the file was imported before with the same content.
	Unchanged
	// Changed means the file was imported before with different content and
	// was left alone.
	Changed
)

func (s Status) String() string {
	switch s {
	case Imported:
		return "imported"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result reports the outcome of importing one file.
type Result struct {
	Status        Status
	AssignmentIDs []string
}

// ErrEmpty is returned for a file without assignments.
var ErrEmpty = errors.New("file contains no assignments")

// Parse decodes and validates an import file without storing anything.
func Parse(data []byte) ([]model.CreateAssignmentInput, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var assignments []model.CreateAssignmentInput
	if err := dec.Decode(&assignments); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(assignments) == 0 {
		return nil, ErrEmpty
	}
	for i, a := range assignments {
		if err := store.ValidateAssignment(a); err != nil {
			return nil, fmt.Errorf("assignment %d: %w", i+1, err)
		}
	}
	return assignments, nil
}

// Import stores the assignments in data under name. The file is validated
// completely before the first assignment is created.
func Import(ctx context.Context, st Store, name string, data []byte) (*Result, error) {
	hash := sha256sum(data)
	storedHash, err := st.GetImportedFileHash(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check import status for %s: %w", name, err)
	}

	if storedHash == hash {
		slog.Info("assignment file unchanged, skipping", "file", name)
		return &Result{Status: Unchanged}, nil
	}
	if storedHash != "" {
		slog.Warn("assignment file changed since last import, skipping to keep existing submissions intact",
			"file", name)
		return &Result{Status: Changed}, nil
	}

	assignments, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	res := &Result{Status: Imported, AssignmentIDs: make([]string, 0, len(assignments))}
	for _, a := range assignments {
		id, err := st.CreateAssignment(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("create assignment %q from %s: %w", a.Title, name, err)
		}
		res.AssignmentIDs = append(res.AssignmentIDs, id)
	}

	if err := st.SetImportedFileHash(ctx, name, hash); err != nil {
		return nil, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported assignments", "file", name, "count", len(assignments))
	return res, nil
}

// ImportFile reads path and imports it.
func ImportFile(ctx context.Context, st Store, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Import(ctx, st, path, data)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
