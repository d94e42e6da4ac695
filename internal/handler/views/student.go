package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
)

// StudentPage lets a student enter a name and draw a solution for each
// question. Each answer is graded as soon as it is submitted.
func StudentPage(a model.AssignmentWithQuestions) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.rawf(`<section class="card" id="student" data-msg-name="%s" data-msg-draw="%s" data-msg-grading="%s" data-msg-failed="%s" data-msg-score="%s">`,
			appI18n.T(ctx, "EnterName"), appI18n.T(ctx, "DrawFirst"), appI18n.T(ctx, "Grading"),
			appI18n.T(ctx, "GradingFailed"), appI18n.T(ctx, "Score"))
		p.rawf(`<h1>%s</h1>`, a.Title)
		p.rawf(`<label>%s<input id="student-name" autocomplete="name" required></label>`, appI18n.T(ctx, "YourName"))
		p.raw(`</section>`)

		for _, q := range a.Questions {
			p.rawf(`<section class="card answer" data-question="%s">`, q.ID)
			p.rawf(`<h3>%s</h3>`, appI18n.Td(ctx, "QuestionN", map[string]any{"N": q.OrderIndex}))
			p.rawf(`<p>%s</p>`, q.ProblemText)
			p.raw(`<canvas width="640" height="360"></canvas>`)
			p.rawf(`<p><button type="button" class="secondary clear">%s</button> `, appI18n.T(ctx, "Clear"))
			p.rawf(`<button type="button" class="submit">%s</button></p>`, appI18n.T(ctx, "Submit"))
			p.raw(`<div class="result" aria-live="polite"></div>`)
			p.raw(`</section>`)
		}
		p.raw(`<script>` + studentScript + `</script>`)
		return p.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(a.Title, body).Render(ctx, w)
	})
}
