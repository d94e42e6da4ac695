package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/autograder/internal/llm"
	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/store"
)

// assignmentID returns the {id} URL parameter if it is a UUID.
func assignmentID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (h *Handler) apiListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.store.ListAssignments(r.Context())
	if err != nil {
		slog.Error("failed to list assignments", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch assignments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) apiCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var in model.CreateAssignmentInput
	if err := decodeJSON(w, r, maxBodyBytes, &in); err != nil {
		writeDecodeError(w, err)
		return
	}

	id, err := h.store.CreateAssignment(r.Context(), in)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		slog.Error("failed to create assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create assignment")
		return
	}

	slog.Info("created assignment", "assignment_id", id, "questions", len(in.Questions))
	writeJSON(w, http.StatusCreated, map[string]string{"assignment_id": id})
}

func (h *Handler) apiGetAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid assignment ID")
		return
	}

	a, err := h.store.GetAssignmentWithQuestions(r.Context(), id)
	if err != nil {
		slog.Error("failed to get assignment", "assignment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch assignment")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "Assignment not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignment": a})
}

func (h *Handler) apiGetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid assignment ID")
		return
	}

	report, status, err := h.report(r, id)
	if err != nil {
		slog.Error("failed to build report", "assignment_id", id, "error", err)
		writeError(w, status, "Failed to build report")
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "Assignment not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// report builds the gradebook of an assignment. A nil report with a nil
// error means the assignment does not exist.
func (h *Handler) report(r *http.Request, id string) (*model.Report, int, error) {
	a, err := h.store.GetAssignment(r.Context(), id)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if a == nil {
		return nil, http.StatusNotFound, nil
	}
	report, err := h.reports.Generate(r.Context(), h.store, a.Summary())
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return report, http.StatusOK, nil
}

func (h *Handler) apiGrade(w http.ResponseWriter, r *http.Request) {
	var req model.GradeRequest
	if err := decodeJSON(w, r, maxGradeBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	studentName := strings.TrimSpace(req.StudentName)
	switch {
	case req.QuestionID == "":
		writeError(w, http.StatusBadRequest, "question_id is required")
		return
	case studentName == "":
		writeError(w, http.StatusBadRequest, "student_name is required")
		return
	case req.ImageBase64 == "":
		writeError(w, http.StatusBadRequest, "image_base64 is required")
		return
	}

	q, err := h.store.GetQuestion(r.Context(), req.QuestionID)
	if err != nil {
		slog.Error("failed to get question", "question_id", req.QuestionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch question")
		return
	}
	if q == nil {
		writeError(w, http.StatusNotFound, "Question not found")
		return
	}

	subID, err := h.store.CreateSubmission(r.Context(), model.Submission{
		QuestionID:  q.ID,
		StudentName: studentName,
		ImageData:   req.ImageBase64,
	})
	if err != nil {
		slog.Error("failed to create submission", "question_id", q.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create submission")
		return
	}

	result, err := h.grader.GradeSubmission(r.Context(), *q, req.ImageBase64)
	if err != nil {
		slog.Error("AI grading failed", "submission_id", subID, "question_id", q.ID,
			"unavailable", errors.Is(err, llm.ErrUnavailable), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":         "AI grading failed. Please try again.",
			"submission_id": subID,
		})
		return
	}

	if err := h.store.UpdateSubmissionGrade(r.Context(), subID, result.Score, result.Feedback); err != nil {
		// The student still gets the grade; the gradebook shows it as ungraded.
		slog.Error("failed to store grade", "submission_id", subID, "error", err)
	}

	slog.Info("graded submission", "submission_id", subID, "question_id", q.ID, "score", result.Score)
	writeJSON(w, http.StatusOK, model.GradingResult{
		SubmissionID: subID,
		Score:        result.Score,
		Feedback:     result.Feedback,
	})
}

func (h *Handler) apiGenerateRubric(w http.ResponseWriter, r *http.Request) {
	var req model.RubricRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.ProblemText) == "" {
		writeError(w, http.StatusBadRequest, "problem_text is required")
		return
	}

	rubric, err := h.grader.GenerateRubric(r.Context(), req.ProblemText)
	if err != nil {
		slog.Error("rubric generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to generate rubric")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rubric": rubric})
}
