package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/tripline/booking-system/approval-service/application"
	"github.com/tripline/booking-system/approval-service/domain"
)

// ApprovalHandlers contains approval HTTP handlers
type ApprovalHandlers struct {
	requestApproval *application.RequestApproval
	submitDecision  *application.SubmitDecision
	getApproval     *application.GetApproval
	listPending     *application.ListPending
	sweepTimeouts   *application.SweepTimeouts
}

// NewApprovalHandlers creates new approval handlers
func NewApprovalHandlers(
	requestApproval *application.RequestApproval,
	submitDecision *application.SubmitDecision,
	getApproval *application.GetApproval,
	listPending *application.ListPending,
	sweepTimeouts *application.SweepTimeouts,
) *ApprovalHandlers {
	return &ApprovalHandlers{
		requestApproval: requestApproval,
		submitDecision:  submitDecision,
		getApproval:     getApproval,
		listPending:     listPending,
		sweepTimeouts:   sweepTimeouts,
	}
}

// errorResponse is the JSON error body
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeTaxonomyError maps the approval error taxonomy to HTTP responses
func writeTaxonomyError(w http.ResponseWriter, err error) {
	var alreadyDecided *domain.AlreadyDecidedError

	switch {
	case errors.Is(err, application.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "APPROVAL_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrApprovalExpired):
		writeError(w, http.StatusConflict, "APPROVAL_EXPIRED", err.Error())
	case errors.As(err, &alreadyDecided):
		code := "APPROVAL_ALREADY_DECIDED"
		if alreadyDecided.Status == domain.ApprovalStatusTimeout || alreadyDecided.Status == domain.ApprovalStatusExpired {
			code = "INVALID_APPROVAL_STATE"
		}
		writeError(w, http.StatusConflict, code, err.Error())
	case errors.Is(err, application.ErrCallbackInvocation):
		writeError(w, http.StatusInternalServerError, "CALLBACK_INVOCATION_FAILED", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// RequestApproval handles approval registration requests
func (h *ApprovalHandlers) RequestApproval(w http.ResponseWriter, r *http.Request) {
	var cmd application.RequestApprovalCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	response, err := h.requestApproval.Execute(r.Context(), &cmd)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// SubmitDecision handles decision submissions
func (h *ApprovalHandlers) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	var cmd application.SubmitDecisionCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	response, err := h.submitDecision.Execute(r.Context(), &cmd)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// GetApproval handles approval retrieval requests
func (h *ApprovalHandlers) GetApproval(w http.ResponseWriter, r *http.Request) {
	approvalID := chi.URLParam(r, "id")

	response, err := h.getApproval.Execute(r.Context(), &application.GetApprovalQuery{
		ApprovalID: approvalID,
	})
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// ListPending handles pending-approval queries
func (h *ApprovalHandlers) ListPending(w http.ResponseWriter, r *http.Request) {
	query := &application.ListPendingQuery{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer")
			return
		}
		query.Limit = limit
	}

	response, err := h.listPending.Execute(r.Context(), query)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// SweepTimeouts handles scheduled timeout sweeps
func (h *ApprovalHandlers) SweepTimeouts(w http.ResponseWriter, r *http.Request) {
	response, err := h.sweepTimeouts.Execute(r.Context())
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers approval routes
func (h *ApprovalHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.Post("/", h.RequestApproval)
		r.Post("/decision", h.SubmitDecision)
		r.Get("/pending", h.ListPending)
		r.Post("/sweep", h.SweepTimeouts)
		r.Get("/{id}", h.GetApproval)
	})
}
