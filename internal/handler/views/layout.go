// Package views renders the HTML pages.
package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
)

// writer accumulates the first write error so page bodies read top to bottom.
type writer struct {
	ctx context.Context
	w   io.Writer
	err error
}

func newWriter(ctx context.Context, w io.Writer) *writer {
	return &writer{ctx: ctx, w: w}
}

// raw writes trusted markup.
func (p *writer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

// rawf writes trusted markup with escaped arguments.
func (p *writer) rawf(format string, args ...any) {
	escaped := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			escaped[i] = templ.EscapeString(v)
		default:
			escaped[i] = v
		}
	}
	p.raw(fmt.Sprintf(format, escaped...))
}

// text writes escaped text.
func (p *writer) text(s string) {
	p.raw(templ.EscapeString(s))
}

// t writes an escaped translation.
func (p *writer) t(msgID string) {
	p.text(appI18n.T(p.ctx, msgID))
}

func (p *writer) component(c templ.Component) {
	if p.err == nil {
		p.err = c.Render(p.ctx, p.w)
	}
}

// url prefixes an application path with the base path and sanitizes it.
func url(ctx context.Context, path string) string {
	return string(templ.URL(model.BasePathFromContext(ctx) + path))
}

// Layout wraps page content in the document shell.
func Layout(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		appTitle := appI18n.T(ctx, "AppTitle")

		p.raw(`<!DOCTYPE html><html><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.rawf(`<title>%s · %s</title>`, title, appTitle)
		p.raw(`<style>` + styles + `</style></head>`)
		p.rawf(`<body data-base="%s" data-csrf="%s">`,
			model.BasePathFromContext(ctx), model.CSRFTokenFromContext(ctx))

		p.raw(`<header class="bar">`)
		p.rawf(`<span class="brand">%s</span>`, appTitle)
		if t := model.TeacherFromContext(ctx); t != nil {
			p.rawf(`<nav><a href="%s">%s</a>`, url(ctx, "/teacher"), appI18n.T(ctx, "Assignments"))
			p.rawf(`<span class="who">%s</span>`, t.DisplayName)
			p.rawf(`<form method="post" action="%s" class="inline">`, url(ctx, "/logout"))
			p.component(csrfField())
			p.rawf(`<button type="submit" class="link">%s</button></form></nav>`, appI18n.T(ctx, "Logout"))
		}
		p.raw(`</header><main>`)
		p.component(content)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

func csrfField() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.rawf(`<input type="hidden" name="csrf_token" value="%s">`, model.CSRFTokenFromContext(ctx))
		return p.err
	})
}

// ErrorPage shows a message instead of the requested page.
func ErrorPage(msg string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.rawf(`<section class="card"><p class="error">%s</p>`, msg)
		p.rawf(`<p><a href="%s">%s</a></p></section>`, url(ctx, "/"), appI18n.T(ctx, "BackHome"))
		return p.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(appI18n.T(ctx, "Error"), body).Render(ctx, w)
	})
}

// LoginPage renders the teacher sign-in form.
func LoginPage(errMsg string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.raw(`<section class="card narrow">`)
		p.rawf(`<h1>%s</h1>`, appI18n.T(ctx, "TeacherLogin"))
		if errMsg != "" {
			p.rawf(`<p class="error">%s</p>`, errMsg)
		}
		p.rawf(`<form method="post" action="%s">`, url(ctx, "/login"))
		p.component(csrfField())
		p.rawf(`<label>%s<input name="username" autocomplete="username" required></label>`, appI18n.T(ctx, "Username"))
		p.rawf(`<label>%s<input name="password" type="password" autocomplete="current-password" required></label>`, appI18n.T(ctx, "Password"))
		p.rawf(`<button type="submit">%s</button></form></section>`, appI18n.T(ctx, "SignIn"))
		return p.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(appI18n.T(ctx, "TeacherLogin"), body).Render(ctx, w)
	})
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#1d2330}
.bar{display:flex;justify-content:space-between;align-items:center;padding:.75rem 1.5rem;background:#253858;color:#fff}
.bar a,.bar .link{color:#fff;margin-left:1rem}
.brand{font-weight:600}
main{max-width:1100px;margin:1.5rem auto;padding:0 1rem}
.card{background:#fff;border-radius:8px;padding:1.25rem;margin-bottom:1rem;box-shadow:0 1px 3px rgba(0,0,0,.08)}
.narrow{max-width:420px;margin:2rem auto}
label{display:block;margin:.5rem 0}
input,textarea{display:block;width:100%;box-sizing:border-box;padding:.5rem;margin-top:.25rem;font:inherit}
textarea{min-height:6rem}
button{padding:.5rem 1rem;border:0;border-radius:6px;background:#0b66e4;color:#fff;cursor:pointer;font:inherit}
button.secondary{background:#dfe1e6;color:#1d2330}
button.link{background:none;padding:0;text-decoration:underline}
form.inline{display:inline}
.error{color:#ae2a19}
.ok{color:#216e4e}
.muted{color:#626f86}
table{border-collapse:collapse;width:100%}
th,td{border:1px solid #dfe1e6;padding:.5rem;text-align:left;vertical-align:top}
td img{max-width:160px;display:block;margin-top:.25rem;border:1px solid #dfe1e6}
canvas{border:1px solid #8590a2;border-radius:4px;touch-action:none;background:#fff;max-width:100%}
.result{margin-top:.5rem}
`
