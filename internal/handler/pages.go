package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/autograder/internal/handler/views"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/importer"
	"github.com/pavelanni/autograder/internal/store"
)

func (h *Handler) handleTeacherHome(w http.ResponseWriter, r *http.Request) {
	h.renderTeacherHome(w, r, http.StatusOK, views.Flash{})
}

func (h *Handler) renderTeacherHome(w http.ResponseWriter, r *http.Request, status int, flash views.Flash) {
	assignments, err := h.store.ListAssignments(r.Context())
	if err != nil {
		slog.Error("failed to list assignments", "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "LoadFailed")
		return
	}

	items := make([]views.AssignmentItem, 0, len(assignments))
	for _, a := range assignments {
		n, err := h.store.SubmissionCount(r.Context(), a.ID)
		if err != nil {
			slog.Error("failed to count submissions", "assignment_id", a.ID, "error", err)
			h.renderError(w, r, http.StatusInternalServerError, "LoadFailed")
			return
		}
		items = append(items, views.AssignmentItem{Assignment: a, Submissions: n})
	}
	h.render(w, r, status, views.TeacherHomePage(items, flash))
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("assignments_file")
	if err != nil {
		h.renderTeacherHome(w, r, http.StatusBadRequest, views.Flash{Message: appI18n.T(r.Context(), "NoFileUploaded"), Error: true})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read upload", "error", err)
		h.renderTeacherHome(w, r, http.StatusBadRequest, views.Flash{Message: appI18n.T(r.Context(), "NoFileUploaded"), Error: true})
		return
	}

	res, err := importer.Import(r.Context(), h.store, header.Filename, data)
	if err != nil {
		slog.Warn("assignment import failed", "file", header.Filename, "error", err)
		msg := appI18n.T(r.Context(), "ImportInvalid")
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			msg += " " + verr.Reason
		}
		h.renderTeacherHome(w, r, http.StatusBadRequest, views.Flash{Message: msg, Error: true})
		return
	}

	var flash views.Flash
	switch res.Status {
	case importer.Imported:
		flash.Message = appI18n.Tp(r.Context(), "ImportedN", len(res.AssignmentIDs))
	case importer.Unchanged:
		flash.Message = appI18n.T(r.Context(), "ImportUnchanged")
	case importer.Changed:
		flash = views.Flash{Message: appI18n.T(r.Context(), "ImportChanged"), Error: true}
	}
	h.renderTeacherHome(w, r, http.StatusOK, flash)
}

func (h *Handler) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.CreatePage())
}

func (h *Handler) handleTeacherAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentID(r)
	if !ok {
		h.renderError(w, r, http.StatusBadRequest, "AssignmentNotFound")
		return
	}

	a, err := h.store.GetAssignmentWithQuestions(r.Context(), id)
	if err != nil {
		slog.Error("failed to get assignment", "assignment_id", id, "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "LoadFailed")
		return
	}
	if a == nil {
		h.renderError(w, r, http.StatusNotFound, "AssignmentNotFound")
		return
	}

	n, err := h.store.SubmissionCount(r.Context(), id)
	if err != nil {
		slog.Error("failed to count submissions", "assignment_id", id, "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "LoadFailed")
		return
	}
	h.render(w, r, http.StatusOK, views.TeacherAssignmentPage(*a, h.absoluteURL(r, "/student/assignment/"+id), n))
}

func (h *Handler) handleGradebookPage(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentID(r)
	if !ok {
		h.renderError(w, r, http.StatusBadRequest, "AssignmentNotFound")
		return
	}

	report, status, err := h.report(r, id)
	if err != nil {
		slog.Error("failed to build report", "assignment_id", id, "error", err)
		h.renderError(w, r, status, "LoadFailed")
		return
	}
	if report == nil {
		h.renderError(w, r, http.StatusNotFound, "AssignmentNotFound")
		return
	}
	h.render(w, r, http.StatusOK, views.GradebookPage(report))
}

func (h *Handler) handleStudentPage(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentID(r)
	if !ok {
		h.renderError(w, r, http.StatusBadRequest, "AssignmentNotFound")
		return
	}

	a, err := h.store.GetAssignmentWithQuestions(r.Context(), id)
	if err != nil {
		slog.Error("failed to get assignment", "assignment_id", id, "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "LoadFailed")
		return
	}
	if a == nil {
		h.renderError(w, r, http.StatusNotFound, "AssignmentNotFound")
		return
	}
	h.render(w, r, http.StatusOK, views.StudentPage(*a))
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	h.render(w, r, status, views.ErrorPage(appI18n.T(r.Context(), msgID)))
}

// absoluteURL builds the public URL of an application path for sharing.
func (h *Handler) absoluteURL(r *http.Request, p string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + h.path(p)
}
