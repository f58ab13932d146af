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

// SheetFilter narrows a sheet listing. Empty fields are ignored.
type SheetFilter struct {
	WorkspaceID string
	PlanID      string
	OrderID     string
	Status      model.SheetStatus
	Limit       int
	Offset      int
}

// StartSheet carries the fields stamped when a sheet moves to CUTTING.
type StartSheet struct {
	Operator     string
	Method       string
	Instructions *model.CuttingInstructions
	Risk         *model.RiskVerdict
	StartedAt    time.Time
}

// CutPieceInput is one cut piece reported against a sheet.
type CutPieceInput struct {
	PieceName    string
	Size         string
	Color        string
	Quantity     int
	PositionX    float64
	PositionY    float64
	QualityCheck model.QualityCheck
	DefectNotes  *string
}

// SheetUpdate describes a sheet mutation. From is the status the sheet must
// still have for the update to apply.
type SheetUpdate struct {
	From        model.SheetStatus
	To          *model.SheetStatus
	Notes       *string
	CompletedAt *time.Time
	Pieces      []CutPieceInput
}

// SheetRepository stores cutting sheets and the pieces cut from them.
type SheetRepository struct {
	db *database.DB
}

// NewSheetRepository creates a new sheet repository
func NewSheetRepository(db *database.DB) *SheetRepository {
	return &SheetRepository{db: db}
}

const sheetColumns = `id, workspace_id, plan_id, order_id, sheet_number, fabric_type, width_cm,
	length_cm, pieces_count, layout_data, status, cut_by, cutting_method, notes,
	cutting_instructions, start_risk, started_at, completed_at, created_at, updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func insertSheet(ctx context.Context, tx pgx.Tx, s *model.CuttingSheet) error {
	layout, err := toJSON(s.Layout)
	if err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = newID()
	}
	if s.Status == "" {
		s.Status = model.SheetOpen
	}

	query := `
		INSERT INTO cutting_sheets (id, workspace_id, plan_id, order_id, sheet_number, fabric_type,
		                            width_cm, length_cm, pieces_count, layout_data, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		s.ID,
		s.WorkspaceID,
		s.PlanID,
		s.OrderID,
		s.SheetNumber,
		s.FabricType,
		s.WidthCM,
		s.LengthCM,
		s.PiecesCount,
		layout,
		string(s.Status),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, fmt.Sprintf("failed to create cutting sheet %d", s.SheetNumber))
	}
	return nil
}

// Get returns one sheet.
func (r *SheetRepository) Get(ctx context.Context, workspaceID, id string) (*model.CuttingSheet, error) {
	query := `SELECT ` + sheetColumns + ` FROM cutting_sheets WHERE id = $1 AND workspace_id = $2`

	s, err := scanSheet(r.db.QueryRow(ctx, query, id, workspaceID))
	if isNoRows(err) {
		return nil, errors.NotFound("cutting_sheet", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get cutting sheet")
	}
	return s, nil
}

// List returns sheets ordered by plan and sheet number.
func (r *SheetRepository) List(ctx context.Context, f SheetFilter) ([]*model.CuttingSheet, error) {
	return listSheets(ctx, r.db, f)
}

func listSheets(ctx context.Context, q querier, f SheetFilter) ([]*model.CuttingSheet, error) {
	where := []string{"workspace_id = $1"}
	args := []interface{}{f.WorkspaceID}
	if f.PlanID != "" {
		args = append(args, f.PlanID)
		where = append(where, fmt.Sprintf("plan_id = $%d", len(args)))
	}
	if f.OrderID != "" {
		args = append(args, f.OrderID)
		where = append(where, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, limitOrDefault(f.Limit), f.Offset)

	query := fmt.Sprintf(`SELECT %s FROM cutting_sheets WHERE %s ORDER BY plan_id, sheet_number LIMIT $%d OFFSET $%d`,
		sheetColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list cutting sheets")
	}
	defer rows.Close()

	sheets := make([]*model.CuttingSheet, 0)
	for rows.Next() {
		s, err := scanSheet(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan cutting sheet")
		}
		sheets = append(sheets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list cutting sheets")
	}
	return sheets, nil
}

// Start moves an OPEN sheet to CUTTING. The status check and the write are a
// single statement, so only one caller can start a sheet.
func (r *SheetRepository) Start(ctx context.Context, workspaceID, id string, st StartSheet) (*model.CuttingSheet, error) {
	instructions, err := toJSON(st.Instructions)
	if err != nil {
		return nil, err
	}
	risk, err := toJSON(st.Risk)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE cutting_sheets
		SET status               = 'CUTTING',
		    cut_by               = $3,
		    cutting_method       = $4,
		    cutting_instructions = $5,
		    start_risk           = $6,
		    started_at           = $7,
		    updated_at           = NOW()
		WHERE id = $1
		  AND workspace_id = $2
		  AND status = 'OPEN'
		RETURNING ` + sheetColumns

	s, err := scanSheet(r.db.QueryRow(ctx, query, id, workspaceID, st.Operator, st.Method, instructions, risk, st.StartedAt))
	if isNoRows(err) {
		return nil, errors.Conflict("cutting sheet %s is no longer OPEN", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to start cutting sheet")
	}
	return s, nil
}

// Update applies a status change, notes and new cut pieces in one
// transaction. Order items for the pieces are created on demand.
func (r *SheetRepository) Update(ctx context.Context, workspaceID, id string, u SheetUpdate) (*model.CuttingSheet, []*model.CutPiece, error) {
	var sheet *model.CuttingSheet
	var pieces []*model.CutPiece

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var to *string
		if u.To != nil {
			v := string(*u.To)
			to = &v
		}

		query := `
			UPDATE cutting_sheets
			SET status       = COALESCE($4, status),
			    notes        = COALESCE($5, notes),
			    completed_at = COALESCE($6, completed_at),
			    updated_at   = NOW()
			WHERE id = $1
			  AND workspace_id = $2
			  AND status = $3
			RETURNING ` + sheetColumns

		s, err := scanSheet(tx.QueryRow(ctx, query, id, workspaceID, string(u.From), to, u.Notes, u.CompletedAt))
		if isNoRows(err) {
			return errors.Conflict("cutting sheet %s is no longer %s", id, u.From)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update cutting sheet")
		}
		sheet = s

		for _, in := range u.Pieces {
			itemID, err := upsertOrderItem(ctx, tx, workspaceID, s.OrderID, in.Size, in.Color)
			if err != nil {
				return err
			}
			p, err := insertCutPiece(ctx, tx, workspaceID, s.ID, itemID, in)
			if err != nil {
				return err
			}
			pieces = append(pieces, p)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sheet, pieces, nil
}

// upsertOrderItem returns the id of the (order, size, color) item, creating
// it with zero quantity and price when it does not exist yet.
func upsertOrderItem(ctx context.Context, tx pgx.Tx, workspaceID, orderID, size, color string) (string, error) {
	query := `
		INSERT INTO order_items (id, workspace_id, order_id, size, color, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, 0, 0)
		ON CONFLICT (order_id, size, color)
		DO UPDATE SET size = EXCLUDED.size
		WHERE order_items.workspace_id = EXCLUDED.workspace_id
		RETURNING id
	`
	var id string
	err := tx.QueryRow(ctx, query, newID(), workspaceID, orderID, size, color).Scan(&id)
	if isNoRows(err) {
		return "", errors.NotFound("order", orderID)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to upsert order item")
	}
	return id, nil
}

func insertCutPiece(ctx context.Context, tx pgx.Tx, workspaceID, sheetID, itemID string, in CutPieceInput) (*model.CutPiece, error) {
	qc := in.QualityCheck
	if qc == "" {
		qc = model.QCOpen
	}
	p := &model.CutPiece{
		ID:           newID(),
		WorkspaceID:  workspaceID,
		SheetID:      sheetID,
		OrderItemID:  itemID,
		PieceName:    in.PieceName,
		Size:         in.Size,
		Color:        in.Color,
		Quantity:     in.Quantity,
		PositionX:    in.PositionX,
		PositionY:    in.PositionY,
		QualityCheck: qc,
		DefectNotes:  in.DefectNotes,
	}

	query := `
		INSERT INTO cut_pieces (id, workspace_id, sheet_id, order_item_id, piece_name, size, color,
		                        quantity, position_x, position_y, quality_check, defect_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		p.ID,
		p.WorkspaceID,
		p.SheetID,
		p.OrderItemID,
		p.PieceName,
		p.Size,
		p.Color,
		p.Quantity,
		p.PositionX,
		p.PositionY,
		string(p.QualityCheck),
		p.DefectNotes,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to record cut piece")
	}
	return p, nil
}

// Pieces returns the cut pieces recorded against a sheet.
func (r *SheetRepository) Pieces(ctx context.Context, workspaceID, sheetID string) ([]*model.CutPiece, error) {
	query := `
		SELECT id, workspace_id, sheet_id, order_item_id, piece_name, size, color, quantity,
		       position_x, position_y, quality_check, defect_notes, created_at
		FROM cut_pieces
		WHERE sheet_id = $1 AND workspace_id = $2
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, sheetID, workspaceID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list cut pieces")
	}
	defer rows.Close()

	pieces := make([]*model.CutPiece, 0)
	for rows.Next() {
		p := &model.CutPiece{}
		var qc string
		err := rows.Scan(
			&p.ID,
			&p.WorkspaceID,
			&p.SheetID,
			&p.OrderItemID,
			&p.PieceName,
			&p.Size,
			&p.Color,
			&p.Quantity,
			&p.PositionX,
			&p.PositionY,
			&qc,
			&p.DefectNotes,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan cut piece")
		}
		p.QualityCheck = model.QualityCheck(qc)
		pieces = append(pieces, p)
	}
	return pieces, rows.Err()
}

// Progress derives the progress view of a sheet from its cut pieces.
func (r *SheetRepository) Progress(ctx context.Context, workspaceID, sheetID string) (model.SheetProgress, error) {
	query := `
		SELECT s.pieces_count,
		       COALESCE(SUM(p.quantity), 0),
		       COALESCE(SUM(p.quantity) FILTER (WHERE p.quality_check = 'PASS'), 0),
		       COALESCE(SUM(p.quantity) FILTER (WHERE p.quality_check = 'FAIL'), 0)
		FROM cutting_sheets s
		LEFT JOIN cut_pieces p ON p.sheet_id = s.id
		WHERE s.id = $1 AND s.workspace_id = $2
		GROUP BY s.pieces_count
	`
	progress := model.SheetProgress{SheetID: sheetID}
	err := r.db.QueryRow(ctx, query, sheetID, workspaceID).Scan(
		&progress.TotalPieces,
		&progress.CutPieces,
		&progress.PassedQC,
		&progress.FailedQC,
	)
	if isNoRows(err) {
		return model.SheetProgress{}, errors.NotFound("cutting_sheet", sheetID)
	}
	if err != nil {
		return model.SheetProgress{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to compute sheet progress")
	}
	return progress, nil
}

func scanSheet(row rowScanner) (*model.CuttingSheet, error) {
	s := &model.CuttingSheet{}
	var layout, instructions, risk []byte
	var status string
	err := row.Scan(
		&s.ID,
		&s.WorkspaceID,
		&s.PlanID,
		&s.OrderID,
		&s.SheetNumber,
		&s.FabricType,
		&s.WidthCM,
		&s.LengthCM,
		&s.PiecesCount,
		&layout,
		&status,
		&s.CutBy,
		&s.CuttingMethod,
		&s.Notes,
		&instructions,
		&risk,
		&s.StartedAt,
		&s.CompletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = model.SheetStatus(status)
	if err := fromJSON(layout, &s.Layout); err != nil {
		return nil, err
	}
	if len(instructions) > 0 {
		s.Instructions = &model.CuttingInstructions{}
		if err := fromJSON(instructions, s.Instructions); err != nil {
			return nil, err
		}
	}
	if len(risk) > 0 {
		s.StartRisk = &model.RiskVerdict{}
		if err := fromJSON(risk, s.StartRisk); err != nil {
			return nil, err
		}
	}
	return s, nil
}
