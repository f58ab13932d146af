package repository

import (
	"context"

	"github.com/piwi3910/FabriCut/internal/database"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// BatchRepository reads fabric batches issued by the warehouse. Status and
// lay_plan_id are only written through LayPlanRepository.Create.
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Get returns one fabric batch.
func (r *BatchRepository) Get(ctx context.Context, workspaceID, id string) (*model.FabricBatch, error) {
	query := `
		SELECT id, workspace_id, fabric_issue_id, fabric_type, meters_requested, meters_actual,
		       width_cm, gsm, quality_grade, status, lay_plan_id, updated_at
		FROM fabric_batches
		WHERE id = $1 AND workspace_id = $2
	`
	b := &model.FabricBatch{}
	var status string
	err := r.db.QueryRow(ctx, query, id, workspaceID).Scan(
		&b.ID,
		&b.WorkspaceID,
		&b.FabricIssueID,
		&b.FabricType,
		&b.MetersRequested,
		&b.MetersActual,
		&b.WidthCM,
		&b.GSM,
		&b.QualityGrade,
		&status,
		&b.LayPlanID,
		&b.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, errors.NotFound("fabric_batch", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get fabric batch")
	}
	b.Status = model.BatchStatus(status)
	return b, nil
}

// Save records a batch handed over by the fabric issue process. Existing
// batches keep their status and owner.
func (r *BatchRepository) Save(ctx context.Context, b *model.FabricBatch) error {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.Status == "" {
		b.Status = model.BatchAvailable
	}
	query := `
		INSERT INTO fabric_batches (id, workspace_id, fabric_issue_id, fabric_type, meters_requested,
		                            meters_actual, width_cm, gsm, quality_grade, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET meters_actual = EXCLUDED.meters_actual,
		    quality_grade = EXCLUDED.quality_grade,
		    updated_at    = NOW()
		WHERE fabric_batches.workspace_id = EXCLUDED.workspace_id
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		b.ID, b.WorkspaceID, b.FabricIssueID, b.FabricType, b.MetersRequested,
		b.MetersActual, b.WidthCM, b.GSM, b.QualityGrade, string(b.Status),
	).Scan(&b.UpdatedAt)
	if isNoRows(err) {
		return errors.Conflict("fabric batch %s belongs to another workspace", b.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to save fabric batch")
	}
	return nil
}
