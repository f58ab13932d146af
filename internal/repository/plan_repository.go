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

// PlanFilter narrows a plan listing. Empty fields are ignored.
type PlanFilter struct {
	WorkspaceID string
	OrderID     string
	Status      model.PlanStatus
	Limit       int
	Offset      int
}

// PlanUpdate lists the plan fields to change. Nil fields keep their value.
// When ExpectStatus is set the update only applies if the plan still has it.
type PlanUpdate struct {
	Status       *model.PlanStatus
	ApprovedBy   *string
	ApprovedAt   *time.Time
	Notes        *string
	ExpectStatus *model.PlanStatus
}

// PlanRepository stores cutting plans and their sheets.
type PlanRepository struct {
	db *database.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *database.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, workspace_id, order_id, name, fabric, fabric_length_cm, utilization_pct,
	waste_pct, waste_area_cm2, total_pieces, cutting_time_mins, cost, status, risk,
	approved_by, approved_at, notes, created_at, updated_at`

// Create inserts a plan and all of its sheets in one transaction.
func (r *PlanRepository) Create(ctx context.Context, plan *model.CuttingPlan) error {
	fabric, err := toJSON(plan.Fabric)
	if err != nil {
		return err
	}
	cost, err := toJSON(plan.Cost)
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

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO cutting_plans (id, workspace_id, order_id, name, fabric, fabric_length_cm,
			                           utilization_pct, waste_pct, waste_area_cm2, total_pieces,
			                           cutting_time_mins, cost, status, risk, approved_by, approved_at, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			plan.ID,
			plan.WorkspaceID,
			plan.OrderID,
			plan.Name,
			fabric,
			plan.FabricLengthCM,
			plan.UtilizationPct,
			plan.WastePct,
			plan.WasteAreaCM2,
			plan.TotalPieces,
			plan.CuttingTimeMins,
			cost,
			string(plan.Status),
			risk,
			plan.ApprovedBy,
			plan.ApprovedAt,
			plan.Notes,
		).Scan(&plan.CreatedAt, &plan.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create cutting plan")
		}

		for _, sheet := range plan.Sheets {
			sheet.PlanID = plan.ID
			sheet.WorkspaceID = plan.WorkspaceID
			sheet.OrderID = plan.OrderID
			if err := insertSheet(ctx, tx, sheet); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns a plan with its sheets.
func (r *PlanRepository) Get(ctx context.Context, workspaceID, id string) (*model.CuttingPlan, error) {
	query := `SELECT ` + planColumns + ` FROM cutting_plans WHERE id = $1 AND workspace_id = $2`

	plan, err := scanPlan(r.db.QueryRow(ctx, query, id, workspaceID))
	if isNoRows(err) {
		return nil, errors.NotFound("cutting_plan", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get cutting plan")
	}

	sheets, err := listSheets(ctx, r.db, SheetFilter{WorkspaceID: workspaceID, PlanID: id, Limit: 500})
	if err != nil {
		return nil, err
	}
	plan.Sheets = sheets
	return plan, nil
}

// List returns plans without their sheets, newest first.
func (r *PlanRepository) List(ctx context.Context, f PlanFilter) ([]*model.CuttingPlan, error) {
	where := []string{"workspace_id = $1"}
	args := []interface{}{f.WorkspaceID}
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		where = append(where, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, limitOrDefault(f.Limit), f.Offset)

	query := fmt.Sprintf(`SELECT %s FROM cutting_plans WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		planColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list cutting plans")
	}
	defer rows.Close()

	plans := make([]*model.CuttingPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan cutting plan")
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list cutting plans")
	}
	return plans, nil
}

// Update applies u to a plan and returns the stored row. A failed status
// expectation is reported as a conflict.
func (r *PlanRepository) Update(ctx context.Context, workspaceID, id string, u PlanUpdate) (*model.CuttingPlan, error) {
	query := `
		UPDATE cutting_plans
		SET status      = COALESCE($3, status),
		    approved_by = COALESCE($4, approved_by),
		    approved_at = COALESCE($5, approved_at),
		    notes       = COALESCE($6, notes),
		    updated_at  = NOW()
		WHERE id = $1
		  AND workspace_id = $2
		  AND ($7::text IS NULL OR status = $7)
		RETURNING ` + planColumns

	plan, err := scanPlan(r.db.QueryRow(ctx, query,
		id, workspaceID,
		statusArg(u.Status), u.ApprovedBy, u.ApprovedAt, u.Notes,
		statusArg(u.ExpectStatus),
	))
	if isNoRows(err) {
		if u.ExpectStatus != nil {
			return nil, errors.Conflict("cutting plan %s is no longer %s", id, *u.ExpectStatus)
		}
		return nil, errors.NotFound("cutting_plan", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to update cutting plan")
	}
	return plan, nil
}

func statusArg(s *model.PlanStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func scanPlan(row rowScanner) (*model.CuttingPlan, error) {
	p := &model.CuttingPlan{}
	var fabric, cost, risk []byte
	var status string
	err := row.Scan(
		&p.ID,
		&p.WorkspaceID,
		&p.OrderID,
		&p.Name,
		&fabric,
		&p.FabricLengthCM,
		&p.UtilizationPct,
		&p.WastePct,
		&p.WasteAreaCM2,
		&p.TotalPieces,
		&p.CuttingTimeMins,
		&cost,
		&status,
		&risk,
		&p.ApprovedBy,
		&p.ApprovedAt,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.PlanStatus(status)
	if err := fromJSON(fabric, &p.Fabric); err != nil {
		return nil, err
	}
	if err := fromJSON(cost, &p.Cost); err != nil {
		return nil, err
	}
	if len(risk) > 0 {
		p.Risk = &model.RiskVerdict{}
		if err := fromJSON(risk, p.Risk); err != nil {
			return nil, err
		}
	}
	return p, nil
}
