package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"orbe/internal/workflow"
	"orbe/pkg/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// transitionResponse wraps the outcome of a transition attempt. Case is
// only present when the transition was applied.
type transitionResponse struct {
	workflow.TransitionResult
	Case *types.Case `json:"case,omitempty"`
}

type deletionResponse struct {
	workflow.DeletionResult
	Attachment *types.Attachment `json:"attachment,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a workflow error onto the HTTP status reported to clients.
func statusFor(err error) int {
	switch {
	case types.IsGuardViolation(err), errors.Is(err, types.ErrTerminalCase):
		return http.StatusConflict
	case errors.Is(err, types.ErrDonationRequestReviewed):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidEvidenceState):
		return http.StatusAccepted
	case errors.Is(err, types.ErrCaseNotFound),
		errors.Is(err, types.ErrAttachmentNotFound),
		errors.Is(err, types.ErrDonationRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrUnknownTransition):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeWorkflowError answers with the status for err. Unexpected errors are
// logged and hidden from the client.
func (s *Service) writeWorkflowError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error(msg)
		s.writeError(w, status, "internal server error")
		return
	}

	s.writeError(w, status, err.Error())
}
