package gradebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/pavelanni/autograder/internal/model"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func questions(orders ...int) []model.Question {
	qs := make([]model.Question, 0, len(orders))
	for i, o := range orders {
		qs = append(qs, model.Question{
			ID:           "q" + string(rune('1'+i)),
			AssignmentID: "a1",
			OrderIndex:   o,
		})
	}
	return qs
}

func graded(id, question, student string, score int, sec int) model.Submission {
	return model.Submission{
		ID:          id,
		QuestionID:  question,
		StudentName: student,
		ImageData:   "img-" + id,
		Score:       intPtr(score),
		Feedback:    strPtr("feedback " + id),
		CreatedAt:   at(sec),
	}
}

var summary = model.AssignmentSummary{ID: "a1", Title: "Fractions"}

func names(r *model.Report) []string {
	var out []string
	for _, s := range r.Students {
		out = append(out, s.StudentName)
	}
	return out
}

func TestBuildNoQuestions(t *testing.T) {
	subs := []model.Submission{graded("s1", "q1", "Alice", 50, 1)}
	r := Build(summary, nil, subs)
	if r.TotalQuestions != 0 {
		t.Errorf("TotalQuestions = %d, want 0", r.TotalQuestions)
	}
	if r.Students == nil || len(r.Students) != 0 {
		t.Errorf("expected empty non-nil students, got %#v", r.Students)
	}
	if r.Assignment != summary {
		t.Errorf("assignment = %+v, want %+v", r.Assignment, summary)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"assignment":{"id":"a1","title":"Fractions"},"total_questions":0,"students":[]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestBuildPartialStudent(t *testing.T) {
	r := Build(summary, questions(1, 2), []model.Submission{graded("s1", "q1", "Alice", 90, 1)})

	if len(r.Students) != 1 {
		t.Fatalf("expected 1 student, got %d", len(r.Students))
	}
	alice := r.Students[0]
	if alice.StudentName != "Alice" {
		t.Errorf("student = %q, want Alice", alice.StudentName)
	}
	if alice.TotalScore != 90 || alice.QuestionsAnswered != 1 || alice.MaxPossibleScore != 200 || alice.TotalQuestions != 2 {
		t.Errorf("unexpected totals: %+v", alice)
	}
	if len(alice.Breakdown) != 2 {
		t.Fatalf("expected 2 breakdown entries, got %d", len(alice.Breakdown))
	}
	first, second := alice.Breakdown[0], alice.Breakdown[1]
	if first.QuestionID != "q1" || first.Score == nil || *first.Score != 90 {
		t.Errorf("first entry = %+v", first)
	}
	if first.ImageData == nil || *first.ImageData != "img-s1" {
		t.Errorf("first entry image = %v", first.ImageData)
	}
	if second.QuestionID != "q2" || second.QuestionOrder != 2 {
		t.Errorf("second entry = %+v", second)
	}
	if second.Score != nil || second.Feedback != nil || second.ImageData != nil {
		t.Errorf("expected null placeholder, got %+v", second)
	}
}

func TestBuildKeepsLatestSubmission(t *testing.T) {
	older := graded("old", "q1", "Bob", 40, 10)
	newer := graded("new", "q1", "Bob", 85, 20)

	tests := []struct {
		name string
		subs []model.Submission
	}{
		{"newest first", []model.Submission{newer, older}},
		{"oldest first", []model.Submission{older, newer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Build(summary, questions(1), tt.subs)
			if len(r.Students) != 1 {
				t.Fatalf("expected 1 student, got %d", len(r.Students))
			}
			bob := r.Students[0]
			if bob.TotalScore != 85 || bob.QuestionsAnswered != 1 {
				t.Errorf("totals = %d/%d, want 85/1", bob.TotalScore, bob.QuestionsAnswered)
			}
			entry := bob.Breakdown[0]
			if *entry.Feedback != "feedback new" || *entry.ImageData != "img-new" {
				t.Errorf("older submission survived: %+v", entry)
			}
		})
	}
}

func TestBuildTieKeepsFirstSeen(t *testing.T) {
	a := graded("first", "q1", "Cara", 10, 5)
	b := graded("second", "q1", "Cara", 70, 5)

	r := Build(summary, questions(1), []model.Submission{a, b})
	if got := *r.Students[0].Breakdown[0].Score; got != 10 {
		t.Errorf("score = %d, want 10 from the first submission", got)
	}
}

func TestBuildNoStudents(t *testing.T) {
	r := Build(summary, questions(1, 2, 3), nil)
	if r.TotalQuestions != 3 {
		t.Errorf("TotalQuestions = %d, want 3", r.TotalQuestions)
	}
	if len(r.Students) != 0 {
		t.Errorf("expected no students, got %v", names(r))
	}
}

func TestBuildExactNameMatchAndCollation(t *testing.T) {
	subs := []model.Submission{
		graded("s1", "q1", "bob", 60, 1),
		graded("s2", "q1", "Ann", 80, 2),
		graded("s3", "q1", "ann", 20, 3),
	}
	r := Build(summary, questions(1), subs)

	got := names(r)
	want := []string{"ann", "Ann", "bob"}
	if len(got) != len(want) {
		t.Fatalf("students = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("students = %q, want %q", got, want)
			break
		}
	}
}

func TestBuildTwoStudentsCasing(t *testing.T) {
	subs := []model.Submission{
		graded("s1", "q2", "bob", 60, 1),
		graded("s2", "q1", "Ann", 80, 2),
	}
	r := Build(summary, questions(1, 2), subs)
	got := names(r)
	if len(got) != 2 || got[0] != "Ann" || got[1] != "bob" {
		t.Errorf("students = %q, want [Ann bob]", got)
	}
}

func TestBuildBreakdownOrder(t *testing.T) {
	qs := []model.Question{
		{ID: "qa", OrderIndex: 7},
		{ID: "qb", OrderIndex: -2},
		{ID: "qc", OrderIndex: 3},
	}
	r := Build(summary, qs, []model.Submission{graded("s1", "qc", "Dana", 50, 1)})

	var order []int
	for _, b := range r.Students[0].Breakdown {
		order = append(order, b.QuestionOrder)
	}
	want := []int{-2, 3, 7}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if qs[0].ID != "qa" {
		t.Error("input questions were reordered")
	}
}

func TestBuildIgnoresUnknownQuestions(t *testing.T) {
	subs := []model.Submission{
		graded("s1", "q1", "Eve", 50, 1),
		graded("s2", "other", "Eve", 100, 2),
		graded("s3", "other", "Ghost", 100, 3),
	}
	r := Build(summary, questions(1), subs)
	if got := names(r); len(got) != 1 || got[0] != "Eve" {
		t.Fatalf("students = %q, want [Eve]", got)
	}
	if r.Students[0].TotalScore != 50 {
		t.Errorf("TotalScore = %d, want 50", r.Students[0].TotalScore)
	}
}

func TestBuildUngradedAndOutOfRange(t *testing.T) {
	pending := model.Submission{ID: "p", QuestionID: "q1", StudentName: "Finn", ImageData: "img", CreatedAt: at(1)}
	wild := graded("w", "q2", "Finn", 250, 1)

	r := Build(summary, questions(1, 2), []model.Submission{pending, wild})
	finn := r.Students[0]
	if finn.TotalScore != 250 {
		t.Errorf("TotalScore = %d, want 250 passed through", finn.TotalScore)
	}
	if finn.QuestionsAnswered != 1 {
		t.Errorf("QuestionsAnswered = %d, want 1", finn.QuestionsAnswered)
	}
	ungraded := finn.Breakdown[0]
	if ungraded.Score != nil || ungraded.ImageData == nil {
		t.Errorf("ungraded entry = %+v, want nil score with image", ungraded)
	}
}

func TestBuildEmptyStudentName(t *testing.T) {
	r := Build(summary, questions(1), []model.Submission{graded("s1", "q1", "", 10, 1)})
	if len(r.Students) != 1 || r.Students[0].StudentName != "" {
		t.Errorf("expected one unnamed student, got %q", names(r))
	}
}

func TestBuildInvariants(t *testing.T) {
	qs := questions(1, 2, 3, 4)
	var subs []model.Submission
	students := []string{"Zed", "amy", "Lou", "Kim"}
	n := 0
	for i, s := range students {
		for j, q := range qs {
			if (i+j)%3 == 0 {
				continue
			}
			n++
			subs = append(subs, graded("s"+string(rune('a'+n)), q.ID, s, (i*7+j*13)%101, n))
		}
	}

	r := Build(summary, qs, subs)
	for _, s := range r.Students {
		if len(s.Breakdown) != len(qs) {
			t.Errorf("%s: %d breakdown entries, want %d", s.StudentName, len(s.Breakdown), len(qs))
		}
		if s.MaxPossibleScore != PointsPerQuestion*r.TotalQuestions {
			t.Errorf("%s: max = %d", s.StudentName, s.MaxPossibleScore)
		}
		total, answered := 0, 0
		for i, b := range s.Breakdown {
			if i > 0 && s.Breakdown[i-1].QuestionOrder > b.QuestionOrder {
				t.Errorf("%s: breakdown not sorted", s.StudentName)
			}
			if b.Score != nil {
				total += *b.Score
				answered++
			}
		}
		if total != s.TotalScore || answered != s.QuestionsAnswered {
			t.Errorf("%s: totals %d/%d, recomputed %d/%d", s.StudentName, s.TotalScore, s.QuestionsAnswered, total, answered)
		}
	}
}

func TestBuildIdempotent(t *testing.T) {
	qs := questions(1, 2)
	subs := []model.Submission{
		graded("s1", "q1", "Mia", 10, 1),
		graded("s2", "q2", "Leo", 20, 2),
		graded("s3", "q1", "Leo", 30, 3),
		graded("s4", "q1", "Mia", 40, 4),
	}

	first, err := json.Marshal(Build(summary, qs, subs))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for range 5 {
		again, err := json.Marshal(Build(summary, qs, subs))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("output changed between runs:\n%s\n%s", first, again)
		}
	}
}

func TestBuildDoesNotAliasInput(t *testing.T) {
	subs := []model.Submission{graded("s1", "q1", "Ola", 10, 1)}
	r := Build(summary, questions(1), subs)
	*r.Students[0].Breakdown[0].Score = 99
	if *subs[0].Score != 10 {
		t.Error("report shares score pointer with input submission")
	}
}

func TestBuilderLanguage(t *testing.T) {
	subs := []model.Submission{
		graded("s1", "q1", "Zoe", 10, 1),
		graded("s2", "q1", "Émile", 10, 2),
		graded("s3", "q1", "Eli", 10, 3),
	}
	r := NewBuilder(language.French).Build(summary, questions(1), subs)
	got := names(r)
	want := []string{"Eli", "Émile", "Zoe"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("students = %q, want %q", got, want)
		}
	}
}

type fakeSource struct {
	questions      []model.Question
	submissions    []model.Submission
	questionsErr   error
	submissionsErr error
	gotIDs         []string
	submissionsHit int
}

func (f *fakeSource) ListQuestions(_ context.Context, _ string) ([]model.Question, error) {
	return f.questions, f.questionsErr
}

func (f *fakeSource) ListSubmissions(_ context.Context, ids []string) ([]model.Submission, error) {
	f.submissionsHit++
	f.gotIDs = ids
	return f.submissions, f.submissionsErr
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("no questions skips submissions", func(t *testing.T) {
		src := &fakeSource{}
		r, err := NewBuilder(language.English).Generate(ctx, src, summary)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if src.submissionsHit != 0 {
			t.Error("submissions were queried for an empty assignment")
		}
		if r.TotalQuestions != 0 || len(r.Students) != 0 {
			t.Errorf("unexpected report %+v", r)
		}
	})

	t.Run("passes question ids", func(t *testing.T) {
		src := &fakeSource{
			questions:   questions(1, 2),
			submissions: []model.Submission{graded("s1", "q2", "Ivy", 75, 1)},
		}
		r, err := NewBuilder(language.English).Generate(ctx, src, summary)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(src.gotIDs) != 2 || src.gotIDs[0] != "q1" || src.gotIDs[1] != "q2" {
			t.Errorf("ids = %v", src.gotIDs)
		}
		if r.Students[0].TotalScore != 75 {
			t.Errorf("TotalScore = %d, want 75", r.Students[0].TotalScore)
		}
	})

	t.Run("errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		src := &fakeSource{questions: questions(1), submissionsErr: boom}
		if _, err := NewBuilder(language.English).Generate(ctx, src, summary); !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapped boom", err)
		}
		src = &fakeSource{questionsErr: boom}
		if _, err := NewBuilder(language.English).Generate(ctx, src, summary); !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapped boom", err)
		}
	})
}
