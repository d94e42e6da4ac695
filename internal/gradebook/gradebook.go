// Package gradebook turns raw submissions into the per-student, per-question
// score matrix shown to teachers.
package gradebook

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pavelanni/autograder/internal/model"
)

// PointsPerQuestion is the maximum score of a single question.
const PointsPerQuestion = 100

// Source provides the questions and submissions a report is built from.
type Source interface {
	// ListQuestions returns the questions of an assignment ordered by order index.
	ListQuestions(ctx context.Context, assignmentID string) ([]model.Question, error)
	// ListSubmissions returns all submissions for the given questions.
	ListSubmissions(ctx context.Context, questionIDs []string) ([]model.Submission, error)
}

// Builder builds reports. The zero value sorts student names with English collation.
type Builder struct {
	lang language.Tag
}

// NewBuilder returns a Builder that sorts student names using the collation
// rules of lang.
func NewBuilder(lang language.Tag) *Builder {
	return &Builder{lang: lang}
}

// Build builds a report with English name collation.
func Build(a model.AssignmentSummary, questions []model.Question, submissions []model.Submission) *model.Report {
	return NewBuilder(language.English).Build(a, questions, submissions)
}

// submissionKey identifies one gradebook cell.
type submissionKey struct {
	student  string
	question string
}

// Build aggregates submissions into a report.
//
// Only the most recent submission per (student, question) counts; ties on
// created_at keep the one that comes first in submissions. Submissions for
// questions not in questions are ignored. Student names are compared exactly.
func (b *Builder) Build(a model.AssignmentSummary, questions []model.Question, submissions []model.Submission) *model.Report {
	report := &model.Report{
		Assignment:     a,
		TotalQuestions: len(questions),
		Students:       []model.StudentReport{},
	}
	if len(questions) == 0 {
		return report
	}

	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}

	latest := make(map[submissionKey]model.Submission)
	for _, s := range submissions {
		if _, ok := known[s.QuestionID]; !ok {
			continue
		}
		k := submissionKey{student: s.StudentName, question: s.QuestionID}
		if cur, ok := latest[k]; ok && !s.CreatedAt.After(cur.CreatedAt) {
			continue
		}
		latest[k] = s
	}

	byStudent := make(map[string]map[string]model.Submission)
	for k, s := range latest {
		answers, ok := byStudent[k.student]
		if !ok {
			answers = make(map[string]model.Submission)
			byStudent[k.student] = answers
		}
		answers[k.question] = s
	}

	ordered := slices.Clone(questions)
	slices.SortStableFunc(ordered, func(x, y model.Question) int {
		return cmp.Compare(x.OrderIndex, y.OrderIndex)
	})

	for name, answers := range byStudent {
		report.Students = append(report.Students, studentReport(name, ordered, answers))
	}

	col := collate.New(b.tag())
	slices.SortFunc(report.Students, func(x, y model.StudentReport) int {
		if c := col.CompareString(x.StudentName, y.StudentName); c != 0 {
			return c
		}
		return strings.Compare(x.StudentName, y.StudentName)
	})

	return report
}

func (b *Builder) tag() language.Tag {
	if b == nil || b.lang == language.Und {
		return language.English
	}
	return b.lang
}

func studentReport(name string, questions []model.Question, answers map[string]model.Submission) model.StudentReport {
	sr := model.StudentReport{
		StudentName:      name,
		MaxPossibleScore: len(questions) * PointsPerQuestion,
		TotalQuestions:   len(questions),
		Breakdown:        make([]model.StudentBreakdown, 0, len(questions)),
	}
	for _, q := range questions {
		entry := model.StudentBreakdown{
			QuestionID:    q.ID,
			QuestionOrder: q.OrderIndex,
		}
		if s, ok := answers[q.ID]; ok {
			entry.Score = copyPtr(s.Score)
			entry.Feedback = copyPtr(s.Feedback)
			image := s.ImageData
			entry.ImageData = &image
		}
		if entry.Score != nil {
			sr.TotalScore += *entry.Score
			sr.QuestionsAnswered++
		}
		sr.Breakdown = append(sr.Breakdown, entry)
	}
	return sr
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Generate fetches questions and submissions for an assignment from src and
// builds its report. Submissions are not queried when the assignment has no
// questions.
func (b *Builder) Generate(ctx context.Context, src Source, a model.AssignmentSummary) (*model.Report, error) {
	questions, err := src.ListQuestions(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return b.Build(a, nil, nil), nil
	}

	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	submissions, err := src.ListSubmissions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return b.Build(a, questions, submissions), nil
}
