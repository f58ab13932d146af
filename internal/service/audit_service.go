package service

import (
	"context"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
)

var auditEntities = map[string]bool{
	EntityCuttingPlan:   true,
	EntityCuttingSheet:  true,
	EntityLayPlan:       true,
	EntityFabricBatch:   true,
	EntityCuttingBundle: true,
}

// AuditService reads the audit trail of cutting-room entities.
type AuditService struct {
	audit AuditReader
	log   *logger.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(audit AuditReader, log *logger.Logger) *AuditService {
	return &AuditService{audit: audit, log: log}
}

// ListAudit returns the events recorded for one entity, oldest first.
func (s *AuditService) ListAudit(ctx context.Context, workspaceID, entityType, entityID string) ([]*model.AuditRecord, error) {
	if workspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	if !auditEntities[entityType] {
		return nil, errors.InvalidInput("entity_type", "unknown entity type: "+entityType)
	}
	if entityID == "" {
		return nil, errors.InvalidInput("entity_id", "entity id is required")
	}
	return readWithRetry(ctx, s.log, "list_audit", func(ctx context.Context) ([]*model.AuditRecord, error) {
		return s.audit.List(ctx, workspaceID, entityType, entityID)
	})
}
