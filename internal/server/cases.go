package server

import (
	"errors"
	"net/http"
	"strings"

	"orbe/internal/workflow"
	"orbe/pkg/types"

	"github.com/sirupsen/logrus"
)

// reviewerTransitions may only be requested by members of a reviewer group.
var reviewerTransitions = map[workflow.TransitionName]bool{
	workflow.TransitionApprove:         true,
	workflow.TransitionReject:          true,
	workflow.TransitionConfirmTransfer: true,
	workflow.TransitionComplete:        true,
}

type caseResponse struct {
	*types.Case
	Attachments []*types.Attachment `json:"attachments"`
}

// visibleCase loads the case named in the path. Cases the caller may not
// see are reported as missing.
func (s *Service) visibleCase(w http.ResponseWriter, r *http.Request) (*types.Case, bool) {
	ctx := r.Context()
	principal, _ := principalFromContext(ctx)
	caseID := strings.TrimSpace(r.PathValue("caseID"))

	c, err := s.workflow.Case(ctx, caseID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load case")
		return nil, false
	}

	if !s.canAccessCase(principal, c) {
		s.writeError(w, http.StatusNotFound, "case not found")
		return nil, false
	}

	return c, true
}

func (s *Service) handleGetCases(w http.ResponseWriter, r *http.Request) {
	filter := types.CaseFilter{
		Status:    types.CaseStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		CreatedBy: strings.TrimSpace(r.URL.Query().Get("created_by")),
	}

	s.writeCases(w, r, filter)
}

func (s *Service) handleGetMyCases(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	s.writeCases(w, r, types.CaseFilter{
		Status:    types.CaseStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		CreatedBy: principal.UserID,
	})
}

func (s *Service) writeCases(w http.ResponseWriter, r *http.Request, filter types.CaseFilter) {
	cases, err := s.workflow.Cases(r.Context(), filter)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to list cases")
		return
	}

	if cases == nil {
		cases = []*types.Case{}
	}

	s.writeJSON(w, http.StatusOK, cases)
}

func (s *Service) handleGetCase(w http.ResponseWriter, r *http.Request) {
	c, ok := s.visibleCase(w, r)
	if !ok {
		return
	}

	attachments, err := s.workflow.Attachments(r.Context(), c.ID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load case attachments")
		return
	}

	if attachments == nil {
		attachments = []*types.Attachment{}
	}

	s.writeJSON(w, http.StatusOK, caseResponse{Case: c, Attachments: attachments})
}

func (s *Service) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	c, ok := s.visibleCase(w, r)
	if !ok {
		return
	}

	events, err := s.workflow.ListTimeline(r.Context(), c.ID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load case timeline")
		return
	}

	if events == nil {
		events = []*types.TimelineEvent{}
	}

	s.writeJSON(w, http.StatusOK, events)
}

func (s *Service) handlePostCase(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	var in workflow.CreateCaseInput
	if err := decoder.Decode(&in, r.PostForm); err != nil {
		s.logger.WithError(err).Debug("failed to decode case form")
		s.writeError(w, http.StatusBadRequest, "invalid case form")
		return
	}
	in.CreatedBy = principal.UserID

	c, err := s.workflow.CreateCase(r.Context(), in)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to create case")
		return
	}

	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Service) handlePostTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := principalFromContext(ctx)

	caseID := strings.TrimSpace(r.PathValue("caseID"))
	name := workflow.TransitionName(strings.TrimSpace(r.PathValue("transition")))

	entry := s.logger.WithFields(logrus.Fields{
		"case_id":    caseID,
		"transition": name,
		"user_id":    principal.UserID,
	})

	c, err := s.workflow.Case(ctx, caseID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load case for transition")
		return
	}

	reviewer := s.isReviewer(principal)
	if reviewerTransitions[name] && !reviewer {
		s.writeError(w, http.StatusForbidden, "reviewer access required")
		return
	}
	if !reviewer && c.CreatedBy != principal.UserID {
		s.writeError(w, http.StatusForbidden, "you do not have permission to change this case")
		return
	}

	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	var payload workflow.TransitionPayload
	if err := decoder.Decode(&payload, r.PostForm); err != nil {
		entry.WithError(err).Debug("failed to decode transition form")
		s.writeError(w, http.StatusBadRequest, "invalid transition form")
		return
	}

	result, err := s.workflow.AttemptTransition(ctx, caseID, name, principal.UserID, payload)
	if err != nil {
		var gv *types.GuardViolation
		if errors.As(err, &gv) || errors.Is(err, types.ErrTerminalCase) {
			entry.WithError(err).Info("transition refused")
			s.writeJSON(w, http.StatusConflict, transitionResponse{TransitionResult: result})
			return
		}

		s.writeWorkflowError(w, err, "failed to apply transition")
		return
	}

	updated, err := s.workflow.Case(ctx, caseID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to reload case after transition")
		return
	}

	s.writeJSON(w, http.StatusOK, transitionResponse{TransitionResult: result, Case: updated})
}
