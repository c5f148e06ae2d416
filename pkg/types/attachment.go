package types

import "time"

type AttachmentType string

const (
	AttachmentTypePaymentProof  AttachmentType = "payment_proof"
	AttachmentTypePhotoEvidence AttachmentType = "photo_evidence"
	AttachmentTypeOther         AttachmentType = "other"
)

func (t AttachmentType) IsValid() bool {
	switch t {
	case AttachmentTypePaymentProof, AttachmentTypePhotoEvidence, AttachmentTypeOther:
		return true
	}
	return false
}

// Attachment is a typed piece of evidence owned by exactly one case.
type Attachment struct {
	ID            string         `db:"id" json:"id"`
	CaseID        string         `db:"case_id" json:"caseId"`
	Type          AttachmentType `db:"attachment_type" json:"type"`
	FileName      string         `db:"file_name" json:"fileName"`
	FileSizeBytes int64          `db:"file_size_bytes" json:"fileSizeBytes"`
	MimeType      string         `db:"mime_type" json:"mimeType"`
	StorageKey    string         `db:"storage_key" json:"storageKey"`
	UploadedBy    string         `db:"uploaded_by" json:"uploadedBy"`
	UploadedAt    time.Time      `db:"uploaded_at" json:"uploadedAt"`
}

// Upload limits
const (
	MaxAttachmentSizeBytes = 5 * 1024 * 1024
)

var AllowedAttachmentMimeTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}
