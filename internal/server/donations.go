package server

import (
	"net/http"
	"strings"

	"orbe/internal/workflow"
)

func (s *Service) handlePostDonationRequest(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	var in workflow.CreateDonationRequestInput
	if err := decoder.Decode(&in, r.PostForm); err != nil {
		s.logger.WithError(err).Debug("failed to decode donation request form")
		s.writeError(w, http.StatusBadRequest, "invalid donation request form")
		return
	}
	in.RequestedBy = principal.UserID

	request, err := s.workflow.CreateDonationRequest(r.Context(), in)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to create donation request")
		return
	}

	s.writeJSON(w, http.StatusCreated, request)
}

func (s *Service) handleGetDonationRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := principalFromContext(ctx)
	requestID := strings.TrimSpace(r.PathValue("requestID"))

	request, err := s.workflow.DonationRequest(ctx, requestID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load donation request")
		return
	}

	if request.RequestedBy != principal.UserID && !s.isReviewer(principal) {
		s.writeError(w, http.StatusNotFound, "donation request not found")
		return
	}

	s.writeJSON(w, http.StatusOK, request)
}

func (s *Service) handleApproveDonationRequest(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())
	requestID := strings.TrimSpace(r.PathValue("requestID"))

	c, err := s.workflow.ApproveDonationRequest(r.Context(), requestID, principal.UserID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to approve donation request")
		return
	}

	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Service) handleRejectDonationRequest(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())
	requestID := strings.TrimSpace(r.PathValue("requestID"))

	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	request, err := s.workflow.RejectDonationRequest(r.Context(), requestID, principal.UserID, r.PostFormValue("reason"))
	if err != nil {
		s.writeWorkflowError(w, err, "failed to reject donation request")
		return
	}

	s.writeJSON(w, http.StatusOK, request)
}
