package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
)

// AssignmentItem is one row of the teacher's assignment list.
type AssignmentItem struct {
	model.Assignment
	Submissions int
}

// Flash is a one-off status message shown above a page.
type Flash struct {
	Message string
	Error   bool
}

func (p *writer) flash(f Flash) {
	if f.Message == "" {
		return
	}
	class := "ok"
	if f.Error {
		class = "error"
	}
	p.rawf(`<p class="%s">%s</p>`, class, f.Message)
}

// TeacherHomePage lists assignments and offers creation and JSON import.
func TeacherHomePage(items []AssignmentItem, flash Flash) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.raw(`<section class="card">`)
		p.rawf(`<h1>%s</h1>`, appI18n.T(ctx, "Assignments"))
		p.flash(flash)
		p.rawf(`<p><a href="%s">%s</a></p>`, url(ctx, "/teacher/create"), appI18n.T(ctx, "NewAssignment"))

		if len(items) == 0 {
			p.rawf(`<p class="muted">%s</p>`, appI18n.T(ctx, "NoAssignments"))
		} else {
			p.rawf(`<table><thead><tr><th>%s</th><th>%s</th><th>%s</th><th></th></tr></thead><tbody>`,
				appI18n.T(ctx, "Title"), appI18n.T(ctx, "Created"), appI18n.T(ctx, "Submissions"))
			for _, it := range items {
				p.raw(`<tr>`)
				p.rawf(`<td><a href="%s">%s</a></td>`, url(ctx, "/teacher/assignment/"+it.ID), it.Title)
				p.rawf(`<td>%s</td>`, it.CreatedAt.Local().Format("2006-01-02 15:04"))
				p.rawf(`<td>%s</td>`, appI18n.Tp(ctx, "SubmissionCount", it.Submissions))
				p.rawf(`<td><a href="%s">%s</a></td>`, url(ctx, "/teacher/gradebook/"+it.ID), appI18n.T(ctx, "Gradebook"))
				p.raw(`</tr>`)
			}
			p.raw(`</tbody></table>`)
		}
		p.raw(`</section>`)

		p.raw(`<section class="card">`)
		p.rawf(`<h2>%s</h2>`, appI18n.T(ctx, "ImportAssignments"))
		p.rawf(`<p class="muted">%s</p>`, appI18n.T(ctx, "ImportHelp"))
		p.rawf(`<form method="post" action="%s" enctype="multipart/form-data">`, url(ctx, "/teacher/import"))
		p.component(csrfField())
		p.raw(`<input type="file" name="assignments_file" accept="application/json,.json" required>`)
		p.rawf(`<button type="submit">%s</button></form></section>`, appI18n.T(ctx, "Import"))
		return p.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(appI18n.T(ctx, "Assignments"), body).Render(ctx, w)
	})
}

// CreatePage is the assignment editor. Saving and rubric drafting go through
// the JSON API.
func CreatePage() templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.rawf(`<section class="card" id="create" data-msg-generating="%s" data-msg-generate="%s" data-msg-failed="%s">`,
			appI18n.T(ctx, "Generating"), appI18n.T(ctx, "GenerateRubric"), appI18n.T(ctx, "RequestFailed"))
		p.rawf(`<h1>%s</h1>`, appI18n.T(ctx, "NewAssignment"))
		p.raw(`<p class="error" id="create-error" hidden></p>`)
		p.rawf(`<label>%s<input id="title" required></label>`, appI18n.T(ctx, "Title"))
		p.raw(`<div id="questions"></div>`)

		p.raw(`<template id="question-template"><div class="card question">`)
		p.rawf(`<h3>%s <span class="num"></span></h3>`, appI18n.T(ctx, "Question"))
		p.rawf(`<label>%s<textarea class="problem"></textarea></label>`, appI18n.T(ctx, "ProblemText"))
		p.rawf(`<label>%s<textarea class="rubric"></textarea></label>`, appI18n.T(ctx, "Rubric"))
		p.rawf(`<button type="button" class="secondary generate">%s</button> `, appI18n.T(ctx, "GenerateRubric"))
		p.rawf(`<button type="button" class="secondary remove">%s</button>`, appI18n.T(ctx, "RemoveQuestion"))
		p.raw(`</div></template>`)

		p.rawf(`<p><button type="button" class="secondary" id="add-question">%s</button> `, appI18n.T(ctx, "AddQuestion"))
		p.rawf(`<button type="button" id="save">%s</button></p>`, appI18n.T(ctx, "CreateAssignment"))
		p.raw(`</section>`)
		p.raw(`<script>` + createScript + `</script>`)
		return p.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(appI18n.T(ctx, "NewAssignment"), body).Render(ctx, w)
	})
}

// TeacherAssignmentPage shows an assignment's questions and its student link.
func TeacherAssignmentPage(a model.AssignmentWithQuestions, shareURL string, submissions int) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.raw(`<section class="card">`)
		p.rawf(`<h1>%s</h1>`, a.Title)
		p.rawf(`<p class="muted">%s · %s</p>`,
			appI18n.Tp(ctx, "QuestionCount", len(a.Questions)), appI18n.Tp(ctx, "SubmissionCount", submissions))
		p.rawf(`<label>%s<input readonly value="%s" onclick="this.select()"></label>`, appI18n.T(ctx, "StudentLink"), shareURL)
		p.rawf(`<p><a href="%s">%s</a> · <a href="%s">%s</a></p>`,
			url(ctx, "/teacher/gradebook/"+a.ID), appI18n.T(ctx, "ViewGradebook"),
			url(ctx, "/student/assignment/"+a.ID), appI18n.T(ctx, "OpenStudentView"))
		p.raw(`</section>`)

		for _, q := range a.Questions {
			p.raw(`<section class="card">`)
			p.rawf(`<h3>%s</h3>`, appI18n.Td(ctx, "QuestionN", map[string]any{"N": q.OrderIndex}))
			p.rawf(`<p>%s</p>`, q.ProblemText)
			p.rawf(`<h4>%s</h4><pre>%s</pre>`, appI18n.T(ctx, "Rubric"), q.Rubric)
			p.raw(`</section>`)
		}
		return p.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(a.Title, body).Render(ctx, w)
	})
}

// GradebookPage renders a report as a student by question matrix.
func GradebookPage(r *model.Report) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.raw(`<section class="card">`)
		p.rawf(`<h1>%s: %s</h1>`, appI18n.T(ctx, "Gradebook"), r.Assignment.Title)
		p.rawf(`<p><a href="%s">%s</a></p>`, url(ctx, "/teacher/assignment/"+r.Assignment.ID), appI18n.T(ctx, "BackToAssignment"))

		if len(r.Students) == 0 {
			p.rawf(`<p class="muted">%s</p></section>`, appI18n.T(ctx, "NoSubmissions"))
			return p.err
		}

		p.rawf(`<table><thead><tr><th>%s</th>`, appI18n.T(ctx, "Student"))
		for _, b := range r.Students[0].Breakdown {
			p.rawf(`<th>%s</th>`, appI18n.Td(ctx, "QuestionN", map[string]any{"N": b.QuestionOrder}))
		}
		p.rawf(`<th>%s</th></tr></thead><tbody>`, appI18n.T(ctx, "Total"))

		for _, s := range r.Students {
			p.rawf(`<tr><td>%s</td>`, s.StudentName)
			for _, b := range s.Breakdown {
				p.gradebookCell(b)
			}
			p.rawf(`<td><strong>%d / %d</strong> (%s)<br><span class="muted">%s</span></td></tr>`,
				s.TotalScore, s.MaxPossibleScore, fmt.Sprintf("%.0f%%", s.Percent()),
				appI18n.Td(ctx, "AnsweredOf", map[string]any{"Answered": s.QuestionsAnswered, "Total": s.TotalQuestions}))
		}
		p.raw(`</tbody></table></section>`)
		return p.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(appI18n.T(ctx, "Gradebook"), body).Render(ctx, w)
	})
}

func (p *writer) gradebookCell(b model.StudentBreakdown) {
	p.raw(`<td>`)
	switch {
	case b.ImageData == nil:
		p.raw(`<span class="muted">—</span>`)
	case b.Score == nil:
		p.rawf(`<span class="muted">%s</span>`, appI18n.T(p.ctx, "NotGraded"))
	default:
		p.rawf(`<strong>%d</strong>`, *b.Score)
	}
	if b.Feedback != nil {
		p.rawf(`<br><small>%s</small>`, *b.Feedback)
	}
	if b.ImageData != nil {
		if src := imageSrc(*b.ImageData); src != "" {
			p.rawf(`<img src="%s" alt="%s" loading="lazy">`, src, appI18n.T(p.ctx, "StudentWork"))
		}
	}
	p.raw(`</td>`)
}

// imageSrc returns a data URL for a stored drawing, or "" when the stored
// value is a data URL of something other than an image.
func imageSrc(data string) string {
	if strings.HasPrefix(data, "data:image/") {
		return data
	}
	if strings.HasPrefix(data, "data:") {
		return ""
	}
	return "data:image/png;base64," + data
}
