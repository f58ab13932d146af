package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/piwi3910/FabriCut/internal/database"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// LayPlanFilter narrows a lay plan listing. Empty fields are ignored.
type LayPlanFilter struct {
	WorkspaceID   string
	OrderID       string
	FabricBatchID string
	Status        model.LayPlanStatus
	Limit         int
	Offset        int
}

// LayPlanRepository stores lay plans and owns the fabric batch hand-off.
type LayPlanRepository struct {
	db *database.DB
}

// NewLayPlanRepository creates a new lay plan repository
func NewLayPlanRepository(db *database.DB) *LayPlanRepository {
	return &LayPlanRepository{db: db}
}

const layPlanColumns = `id, workspace_id, fabric_issue_id, fabric_batch_id, order_id, lay_configuration,
	size_breakdown, estimate, risk, status, bundle_count, bundles_created_at, created_at, updated_at`

// Create claims the fabric batch for the plan and inserts the plan in one
// transaction. The claim asserts the batch is still available and unowned;
// if another plan got there first the whole operation is a conflict.
func (r *LayPlanRepository) Create(ctx context.Context, plan *model.LayPlan) error {
	cfg, err := toJSON(plan.Configuration)
	if err != nil {
		return err
	}
	breakdown, err := toJSON(plan.SizeBreakdown)
	if err != nil {
		return err
	}
	estimate, err := toJSON(plan.Estimate)
	if err != nil {
		return err
	}
	risk, err := toJSON(plan.Risk)
	if err != nil {
		return err
	}
	if plan.ID == "" {
		plan.ID = newID()
	}
	if plan.Status == "" {
		plan.Status = model.LayPlanPlanned
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		claim := `
			UPDATE fabric_batches
			SET status      = 'LAY_PLANNED',
			    lay_plan_id = $3,
			    updated_at  = NOW()
			WHERE id = $1
			  AND workspace_id = $2
			  AND status = 'AVAILABLE_FOR_CUTTING'
			  AND lay_plan_id IS NULL
		`
		tag, err := tx.Exec(ctx, claim, plan.FabricBatchID, plan.WorkspaceID, plan.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to claim fabric batch")
		}
		if tag.RowsAffected() == 0 {
			return errors.Conflict("fabric batch %s is no longer available for cutting", plan.FabricBatchID)
		}

		query := `
			INSERT INTO lay_plans (id, workspace_id, fabric_issue_id, fabric_batch_id, order_id,
			                       lay_configuration, size_breakdown, estimate, risk, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`
		err = tx.QueryRow(ctx, query,
			plan.ID,
			plan.WorkspaceID,
			plan.FabricIssueID,
			plan.FabricBatchID,
			plan.OrderID,
			cfg,
			breakdown,
			estimate,
			risk,
			string(plan.Status),
		).Scan(&plan.CreatedAt, &plan.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create lay plan")
		}
		return nil
	})
}

// Get returns one lay plan.
func (r *LayPlanRepository) Get(ctx context.Context, workspaceID, id string) (*model.LayPlan, error) {
	query := `SELECT ` + layPlanColumns + ` FROM lay_plans WHERE id = $1 AND workspace_id = $2`

	p, err := scanLayPlan(r.db.QueryRow(ctx, query, id, workspaceID))
	if isNoRows(err) {
		return nil, errors.NotFound("lay_plan", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get lay plan")
	}
	return p, nil
}

// List returns lay plans, newest first.
func (r *LayPlanRepository) List(ctx context.Context, f LayPlanFilter) ([]*model.LayPlan, error) {
	where := []string{"workspace_id = $1"}
	args := []interface{}{f.WorkspaceID}
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		where = append(where, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if f.FabricBatchID != "" {
		args = append(args, f.FabricBatchID)
		where = append(where, fmt.Sprintf("fabric_batch_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, limitOrDefault(f.Limit), f.Offset)

	query := fmt.Sprintf(`SELECT %s FROM lay_plans WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		layPlanColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list lay plans")
	}
	defer rows.Close()

	plans := make([]*model.LayPlan, 0)
	for rows.Next() {
		p, err := scanLayPlan(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan lay plan")
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list lay plans")
	}
	return plans, nil
}

// Approve moves a PLANNED lay plan to APPROVED. A plan in any other status
// is a conflict.
func (r *LayPlanRepository) Approve(ctx context.Context, workspaceID, id string) (*model.LayPlan, error) {
	query := `
		UPDATE lay_plans
		SET status = 'APPROVED', updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2 AND status = 'PLANNED'
		RETURNING ` + layPlanColumns

	p, err := scanLayPlan(r.db.QueryRow(ctx, query, id, workspaceID))
	if isNoRows(err) {
		return nil, errors.Conflict("lay plan %s is no longer PLANNED", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to approve lay plan")
	}
	return p, nil
}

// CreateBundles inserts the bundles of a lay plan and marks the plan
// BUNDLES_CREATED in one transaction. The plan must still accept bundles.
func (r *LayPlanRepository) CreateBundles(ctx context.Context, workspaceID, layPlanID string, bundles []*model.CuttingBundle, at time.Time) (*model.LayPlan, error) {
	var plan *model.LayPlan

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE lay_plans
			SET status             = 'BUNDLES_CREATED',
			    bundle_count       = $3,
			    bundles_created_at = $4,
			    updated_at         = NOW()
			WHERE id = $1
			  AND workspace_id = $2
			  AND status IN ('PLANNED', 'APPROVED')
			RETURNING ` + layPlanColumns

		p, err := scanLayPlan(tx.QueryRow(ctx, query, layPlanID, workspaceID, len(bundles), at))
		if isNoRows(err) {
			return errors.Conflict("lay plan %s no longer accepts bundles", layPlanID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update lay plan")
		}
		plan = p

		for _, b := range bundles {
			b.LayPlanID = layPlanID
			b.WorkspaceID = workspaceID
			if err := insertBundle(ctx, tx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func scanLayPlan(row rowScanner) (*model.LayPlan, error) {
	p := &model.LayPlan{}
	var cfg, breakdown, estimate, risk []byte
	var status string
	err := row.Scan(
		&p.ID,
		&p.WorkspaceID,
		&p.FabricIssueID,
		&p.FabricBatchID,
		&p.OrderID,
		&cfg,
		&breakdown,
		&estimate,
		&risk,
		&status,
		&p.BundleCount,
		&p.BundlesCreatedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.LayPlanStatus(status)
	for _, col := range []struct {
		raw []byte
		dst interface{}
	}{
		{cfg, &p.Configuration},
		{breakdown, &p.SizeBreakdown},
		{estimate, &p.Estimate},
		{risk, &p.Risk},
	} {
		if err := fromJSON(col.raw, col.dst); err != nil {
			return nil, err
		}
	}
	return p, nil
}
