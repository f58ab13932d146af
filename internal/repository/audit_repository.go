package repository

import (
	"context"
	"time"

	"github.com/piwi3910/FabriCut/internal/database"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// AuditRepository appends to and reads the audit log.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends an audit event.
func (r *AuditRepository) Record(ctx context.Context, e model.AuditEvent) error {
	before, err := toJSON(e.Before)
	if err != nil {
		return err
	}
	after, err := toJSON(e.After)
	if err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_log (id, workspace_id, entity_type, entity_id, action, actor,
		                       before_state, after_state, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.Exec(ctx, query,
		newID(), e.WorkspaceID, e.EntityType, e.EntityID, e.Action, e.Actor, before, after, e.OccurredAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to record audit event")
	}
	return nil
}

// List returns the audit trail of an entity, oldest first.
func (r *AuditRepository) List(ctx context.Context, workspaceID, entityType, entityID string) ([]*model.AuditRecord, error) {
	query := `
		SELECT id, workspace_id, entity_type, entity_id, action, actor, before_state, after_state, occurred_at
		FROM audit_log
		WHERE workspace_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY occurred_at, id
	`
	rows, err := r.db.Query(ctx, query, workspaceID, entityType, entityID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list audit events")
	}
	defer rows.Close()

	records := make([]*model.AuditRecord, 0)
	for rows.Next() {
		rec := &model.AuditRecord{}
		var before, after []byte
		err := rows.Scan(
			&rec.ID,
			&rec.WorkspaceID,
			&rec.EntityType,
			&rec.EntityID,
			&rec.Action,
			&rec.Actor,
			&before,
			&after,
			&rec.OccurredAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit event")
		}
		rec.Before, rec.After = before, after
		records = append(records, rec)
	}
	return records, rows.Err()
}
