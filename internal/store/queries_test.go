package store

import (
	"strings"
	"testing"

	"orbe/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseColumnsFlattenBankInfo(t *testing.T) {
	assert.Contains(t, caseColumns, "beneficiary_pix_key")
	assert.Contains(t, caseColumns, "beneficiary_tax_id")
	assert.Contains(t, caseColumns, "member_proof_submitted_at")
	assert.Equal(t, "id", caseColumns[0])
	assert.Len(t, caseColumns, 21)
}

func TestLockCaseQuery(t *testing.T) {
	query, args, err := lockCaseQuery("c1")
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM orbe.cases WHERE id = $1 FOR UPDATE", query)
	assert.Equal(t, []any{"c1"}, args)
}

func TestCasesQuery(t *testing.T) {
	selectCases := "SELECT " + strings.Join(caseColumns, ", ") + " FROM orbe.cases"

	tests := []struct {
		name   string
		filter types.CaseFilter
		query  string
		args   []any
	}{
		{
			name:  "everything",
			query: selectCases + " ORDER BY created_at ASC, id ASC",
		},
		{
			name:   "status",
			filter: types.CaseFilter{Status: types.CaseStatusPendingApproval},
			query:  selectCases + " WHERE status = $1 ORDER BY created_at ASC, id ASC",
			args:   []any{"pending_approval"},
		},
		{
			name:   "status and creator",
			filter: types.CaseFilter{Status: types.CaseStatusDraft, CreatedBy: "member-1"},
			query:  selectCases + " WHERE status = $1 AND created_by = $2 ORDER BY created_at ASC, id ASC",
			args:   []any{"draft", "member-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := casesQuery(tt.filter)
			require.NoError(t, err)

			assert.Equal(t, tt.query, query)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestHasAttachmentQuery(t *testing.T) {
	query, args, err := hasAttachmentQuery("c1", types.AttachmentTypePhotoEvidence)
	require.NoError(t, err)

	assert.Equal(t, "SELECT EXISTS(SELECT 1 FROM orbe.case_attachments WHERE attachment_type = $1 AND case_id = $2)", query)
	assert.Equal(t, []any{"photo_evidence", "c1"}, args)
}

func TestUpdateCaseQuery(t *testing.T) {
	c := &types.Case{
		ID:        "c1",
		Title:     "Rent",
		Amount:    decimal.NewFromInt(900),
		Status:    types.CaseStatusAwaitingTransfer,
		CreatedBy: "member-1",
	}

	query, args, err := updateCaseQuery(c)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "UPDATE orbe.cases SET "))
	assert.Contains(t, query, "status = $")
	assert.Contains(t, query, "beneficiary_pix_key = $")
	assert.NotContains(t, query, "created_at = $")
	assert.NotContains(t, query, "created_by = $")
	assert.True(t, strings.HasSuffix(query, "WHERE id = $19"))
	assert.Len(t, args, 19)
	assert.Equal(t, "c1", args[len(args)-1])
}

func TestDeleteEventsQuery(t *testing.T) {
	t.Run("kinds only", func(t *testing.T) {
		query, args, err := deleteEventsQuery("c1", types.EventFilter{
			Kinds: []types.EventKind{types.EventKindTransferConfirmed, types.EventKindAttachmentUploaded},
		})
		require.NoError(t, err)

		assert.Equal(t, "DELETE FROM orbe.case_timeline_events WHERE (case_id = $1 AND (kind IN ($2,$3)))", query)
		assert.Equal(t, []any{"c1", "transfer_confirmed", "attachment_uploaded"}, args)
	})

	t.Run("kinds and upload types", func(t *testing.T) {
		query, args, err := deleteEventsQuery("c1", types.EventFilter{
			Kinds:       []types.EventKind{types.EventKindMemberProofSubmitted},
			UploadTypes: []types.AttachmentType{types.AttachmentTypePhotoEvidence},
		})
		require.NoError(t, err)

		assert.Equal(t,
			"DELETE FROM orbe.case_timeline_events WHERE (case_id = $1 AND (kind IN ($2) OR (kind = $3 AND metadata->>'attachment_type' IN ($4))))",
			query,
		)
		assert.Equal(t, []any{"c1", "member_proof_submitted", "attachment_uploaded", "photo_evidence"}, args)
	})
}
