package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scribeworks/backend/internal/models"
	"github.com/scribeworks/backend/internal/services"
)

type SubmissionHandler struct {
	engine *services.SubmissionEngine
}

func NewSubmissionHandler(engine *services.SubmissionEngine) *SubmissionHandler {
	return &SubmissionHandler{engine: engine}
}

// Submit records typed content for a locked task and applies the decision
// @Summary Submit transcription
// @Description Scores the content against the task reference and settles the outcome. A 503 leaves the submission pending; submit again to retry.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.SubmitRequest true "Submission"
// @Success 200 {object} DecisionView
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /submissions [post]
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req services.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	decision, err := h.engine.Submit(r.Context(), caller.AccountID, req)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionView(decision, caller.IsAdmin()))
}

// ListSubmissions lists the caller's submissions, or all of them for admins
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Success 200 {array} models.Submission
// @Router /submissions [get]
func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	status := models.SubmissionStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.SubmissionPending, models.SubmissionApproved, models.SubmissionRejected:
	default:
		services.SendErrorResponse(w, "Invalid status filter", http.StatusBadRequest, nil)
		return
	}

	subs, err := h.engine.ListSubmissions(r.Context(), caller.AccountID, caller.IsAdmin(), status)
	if err != nil {
		services.SendError(w, err)
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetSubmission returns one submission
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param submissionId path string true "Submission ID"
// @Success 200 {object} models.Submission
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /submissions/{submissionId} [get]
func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}

	sub, err := h.engine.GetSubmission(r.Context(), chi.URLParam(r, "submissionId"), caller.AccountID, caller.IsAdmin())
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Moderate approves or rejects a pending submission
// @Summary Moderate submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submissionId path string true "Submission ID"
// @Param request body services.ModerateRequest true "Decision"
// @Success 200 {object} DecisionView
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /submissions/{submissionId}/moderate [post]
func (h *SubmissionHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	var req services.ModerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	decision, err := h.engine.Moderate(r.Context(), chi.URLParam(r, "submissionId"), req.Status, caller.AccountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionView(decision, caller.IsAdmin()))
}
