package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/autograder/internal/handler/views"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfFieldName     = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// csrfMiddleware implements the double-submit cookie pattern. Safe requests
// get a token cookie if they lack one; other requests must echo the cookie in
// the csrf_token form field or the X-CSRF-Token header. The token lives as
// long as the browser session so pages with fetch calls keep working.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		hasCookie := err == nil && cookie.Value != ""

		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			token := ""
			if hasCookie {
				token = cookie.Value
			} else {
				token, err = generateCSRFToken()
				if err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     h.cookiePath(),
					HttpOnly: false,
					Secure:   h.config.SecureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if !hasCookie {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			h.csrfFailure(w, r, "csrf token missing")
			return
		}

		token := r.Header.Get(csrfHeaderName)
		if token == "" {
			token = r.FormValue(csrfFieldName)
		}
		if token == "" {
			slog.Warn("CSRF request token missing", "path", r.URL.Path)
			h.csrfFailure(w, r, "csrf token missing")
			return
		}

		if len(token) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			h.csrfFailure(w, r, "invalid csrf token")
			return
		}

		ctx := model.ContextWithCSRFToken(r.Context(), cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) csrfFailure(w http.ResponseWriter, r *http.Request, msg string) {
	if isAPI(r) {
		writeError(w, http.StatusForbidden, msg)
		return
	}
	http.Error(w, msg, http.StatusForbidden)
}

func isAPI(r *http.Request) bool {
	return strings.Contains(r.URL.Path, "/api/")
}

// teacherFromRequest resolves the session cookie to an active teacher, or nil.
func (h *Handler) teacherFromRequest(r *http.Request) *model.Teacher {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	authSess, err := h.store.GetAuthSession(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to get auth session", "error", err)
		return nil
	}
	if authSess == nil {
		return nil
	}

	teacher, err := h.store.GetTeacherByID(r.Context(), authSess.TeacherID)
	if err != nil {
		slog.Error("failed to get teacher", "teacher_id", authSess.TeacherID, "error", err)
		return nil
	}
	if teacher == nil || !teacher.Active {
		return nil
	}
	return teacher
}

// requireTeacher redirects to the login page unless a teacher is signed in.
func (h *Handler) requireTeacher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		teacher := h.teacherFromRequest(r)
		if teacher == nil {
			http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
			return
		}
		ctx := model.ContextWithTeacher(r.Context(), teacher)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireTeacherAPI answers 401 unless a teacher is signed in.
func (h *Handler) requireTeacherAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		teacher := h.teacherFromRequest(r)
		if teacher == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		ctx := model.ContextWithTeacher(r.Context(), teacher)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if h.teacherFromRequest(r) != nil {
		http.Redirect(w, r, h.path("/teacher"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.LoginPage(""))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	teacher, err := h.store.GetTeacherByUsername(r.Context(), username)
	if err != nil {
		slog.Error("failed to get teacher", "error", err)
		h.renderLoginError(w, r)
		return
	}
	if teacher == nil || !teacher.Active {
		h.renderLoginError(w, r)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(teacher.PasswordHash), []byte(password)); err != nil {
		slog.Info("failed login", "username", username)
		h.renderLoginError(w, r)
		return
	}

	token, err := h.store.CreateAuthSession(r.Context(), teacher.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	slog.Info("teacher signed in", "username", username)
	http.Redirect(w, r, h.path("/teacher"), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.store.DeleteAuthSession(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to delete auth session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}

func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusUnauthorized, views.LoginPage(appI18n.T(r.Context(), "LoginError")))
}
