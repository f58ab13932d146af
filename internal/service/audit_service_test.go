package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
)

type stubAuditReader struct {
	records []*model.AuditRecord
}

func (s stubAuditReader) List(_ context.Context, workspaceID, entityType, entityID string) ([]*model.AuditRecord, error) {
	var out []*model.AuditRecord
	for _, r := range s.records {
		if r.WorkspaceID == workspaceID && r.EntityType == entityType && r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestListAudit(t *testing.T) {
	reader := stubAuditReader{records: []*model.AuditRecord{
		{ID: "a1", WorkspaceID: testWorkspace, EntityType: EntityCuttingSheet, EntityID: "sheet-1", Action: "start"},
		{ID: "a2", WorkspaceID: "ws-2", EntityType: EntityCuttingSheet, EntityID: "sheet-1", Action: "start"},
	}}
	svc := NewAuditService(reader, logger.Nop())
	ctx := context.Background()

	records, err := svc.ListAudit(ctx, testWorkspace, EntityCuttingSheet, "sheet-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0].ID)

	_, err = svc.ListAudit(ctx, testWorkspace, "invoice", "sheet-1")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = svc.ListAudit(ctx, "", EntityCuttingSheet, "sheet-1")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}
