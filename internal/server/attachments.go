package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"orbe/internal/utils"
	"orbe/pkg/types"

	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"
)

// sniffLen is how many leading bytes filetype needs to recognise a format.
const sniffLen = 262

type attachmentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// canAccessCase reports whether p may read c and change its evidence. Case
// data carries beneficiary bank details, so it is limited to the creator
// and reviewers.
func (s *Service) canAccessCase(p *types.Principal, c *types.Case) bool {
	return c.CreatedBy == p.UserID || s.isReviewer(p)
}

func (s *Service) maxUploadSize() int64 {
	if s.config.MaxUploadSizeBytes > 0 {
		return s.config.MaxUploadSizeBytes
	}
	return types.MaxAttachmentSizeBytes
}

// detectMimeType sniffs the content type of r and checks it against the
// allowed attachment types. r is rewound afterwards.
func detectMimeType(r io.ReadSeeker) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}

	kind, err := filetype.Match(head[:n])
	if err != nil {
		return "", err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	if kind == filetype.Unknown || !slices.Contains(types.AllowedAttachmentMimeTypes, kind.MIME.Value) {
		return "", nil
	}

	return kind.MIME.Value, nil
}

func (s *Service) handlePostAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := principalFromContext(ctx)
	caseID := strings.TrimSpace(r.PathValue("caseID"))

	c, err := s.workflow.Case(ctx, caseID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load case for upload")
		return
	}

	if !s.canAccessCase(principal, c) {
		s.writeError(w, http.StatusForbidden, "you do not have permission to change this case")
		return
	}

	maxSize := s.maxUploadSize()

	// Leave room for the multipart envelope and the other fields.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+(1<<20))
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	attachmentType := types.AttachmentType(strings.TrimSpace(r.FormValue("attachment_type")))
	if !attachmentType.IsValid() {
		s.writeError(w, http.StatusBadRequest, "unknown attachment type")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		s.writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}

	mimeType, err := detectMimeType(file)
	if err != nil {
		s.logger.WithError(err).Error("failed to inspect uploaded file")
		s.writeError(w, http.StatusBadRequest, "unable to read file")
		return
	}
	if mimeType == "" {
		s.writeError(w, http.StatusUnsupportedMediaType, "file type is not allowed")
		return
	}

	attachment := &types.Attachment{
		ID:            utils.NanoID(),
		CaseID:        c.ID,
		Type:          attachmentType,
		FileName:      filepath.Base(header.Filename),
		FileSizeBytes: header.Size,
		MimeType:      mimeType,
		UploadedBy:    principal.UserID,
	}
	attachment.StorageKey = s.evidence.Key(c.ID, attachment.ID, attachment.FileName)

	entry := s.logger.WithFields(logrus.Fields{
		"case_id":       c.ID,
		"attachment_id": attachment.ID,
		"storage_key":   attachment.StorageKey,
	})

	if err := s.evidence.Upload(ctx, attachment.StorageKey, file, header.Size, mimeType); err != nil {
		entry.WithError(err).Error("failed to upload attachment")
		s.writeError(w, http.StatusBadGateway, "could not store file, please try again")
		return
	}

	if err := s.workflow.RecordAttachmentCreated(ctx, attachment); err != nil {
		s.removeBlob(entry, attachment.StorageKey)
		s.writeWorkflowError(w, err, "failed to record attachment")
		return
	}

	s.writeJSON(w, http.StatusCreated, attachment)
}

func (s *Service) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := principalFromContext(ctx)
	attachmentID := strings.TrimSpace(r.PathValue("attachmentID"))

	existing, err := s.workflow.Attachment(ctx, attachmentID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load attachment")
		return
	}

	c, err := s.workflow.Case(ctx, existing.CaseID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load case for attachment delete")
		return
	}

	// Uploaders keep the right to withdraw their own files.
	if !s.canAccessCase(principal, c) && existing.UploadedBy != principal.UserID {
		s.writeError(w, http.StatusForbidden, "you do not have permission to change this case")
		return
	}

	deleted, result, err := s.workflow.DeleteAttachment(ctx, attachmentID)
	if err != nil && !errors.Is(err, types.ErrInvalidEvidenceState) {
		s.writeWorkflowError(w, err, "failed to delete attachment")
		return
	}

	entry := s.logger.WithFields(logrus.Fields{
		"case_id":       existing.CaseID,
		"attachment_id": attachmentID,
	})

	// The row is gone either way, so the blob goes too.
	if deleted != nil {
		s.removeBlob(entry, deleted.StorageKey)
	}

	if err != nil {
		s.writeJSON(w, http.StatusAccepted, deletionResponse{
			DeletionResult: result,
			Attachment:     deleted,
			Error:          err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, deletionResponse{DeletionResult: result, Attachment: deleted})
}

func (s *Service) handleGetAttachmentURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := principalFromContext(ctx)
	attachmentID := strings.TrimSpace(r.PathValue("attachmentID"))

	attachment, err := s.workflow.Attachment(ctx, attachmentID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load attachment")
		return
	}

	c, err := s.workflow.Case(ctx, attachment.CaseID)
	if err != nil {
		s.writeWorkflowError(w, err, "failed to load case for attachment")
		return
	}

	if !s.canAccessCase(principal, c) && attachment.UploadedBy != principal.UserID {
		s.writeError(w, http.StatusNotFound, "attachment not found")
		return
	}

	url, expiresAt, err := s.evidence.PresignGet(ctx, attachment.StorageKey, attachment.FileName)
	if err != nil {
		s.logger.WithError(err).WithField("attachment_id", attachmentID).Error("failed to presign attachment")
		s.writeError(w, http.StatusBadGateway, "could not create download link")
		return
	}

	s.writeJSON(w, http.StatusOK, attachmentURLResponse{URL: url, ExpiresAt: expiresAt})
}

// removeBlob deletes an object outside the request lifecycle. Failures are
// logged only; the object becomes an orphan.
func (s *Service) removeBlob(entry *logrus.Entry, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.evidence.Delete(ctx, key); err != nil {
		entry.WithError(err).WithField("storage_key", key).Warn("failed to delete attachment object")
	}
}
