package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/piwi3910/FabriCut/internal/database"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// BundleRepository reads and advances cutting bundles. Bundles are created
// together with their lay plan status change, see LayPlanRepository.CreateBundles.
type BundleRepository struct {
	db *database.DB
}

// NewBundleRepository creates a new bundle repository
func NewBundleRepository(db *database.DB) *BundleRepository {
	return &BundleRepository{db: db}
}

const bundleColumns = `id, workspace_id, lay_plan_id, bundle_number, sequence, size_breakdown,
	total_pieces, status, created_at, updated_at`

func insertBundle(ctx context.Context, tx pgx.Tx, b *model.CuttingBundle) error {
	breakdown, err := toJSON(b.SizeBreakdown)
	if err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = newID()
	}
	if b.Status == "" {
		b.Status = model.BundleReady
	}

	query := `
		INSERT INTO cutting_bundles (id, workspace_id, lay_plan_id, bundle_number, sequence,
		                             size_breakdown, total_pieces, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		b.ID,
		b.WorkspaceID,
		b.LayPlanID,
		b.BundleNumber,
		b.Sequence,
		breakdown,
		b.TotalPieces,
		string(b.Status),
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create cutting bundle")
	}
	return nil
}

// Get returns one bundle.
func (r *BundleRepository) Get(ctx context.Context, workspaceID, id string) (*model.CuttingBundle, error) {
	query := `SELECT ` + bundleColumns + ` FROM cutting_bundles WHERE id = $1 AND workspace_id = $2`

	b, err := scanBundle(r.db.QueryRow(ctx, query, id, workspaceID))
	if isNoRows(err) {
		return nil, errors.NotFound("cutting_bundle", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get cutting bundle")
	}
	return b, nil
}

// ListByLayPlan returns the bundles of a lay plan in sequence order.
func (r *BundleRepository) ListByLayPlan(ctx context.Context, workspaceID, layPlanID string) ([]*model.CuttingBundle, error) {
	query := `SELECT ` + bundleColumns + `
		FROM cutting_bundles
		WHERE lay_plan_id = $1 AND workspace_id = $2
		ORDER BY sequence`

	rows, err := r.db.Query(ctx, query, layPlanID, workspaceID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list cutting bundles")
	}
	defer rows.Close()

	bundles := make([]*model.CuttingBundle, 0)
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan cutting bundle")
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list cutting bundles")
	}
	return bundles, nil
}

// UpdateStatus moves a bundle from one status to the next.
func (r *BundleRepository) UpdateStatus(ctx context.Context, workspaceID, id string, from, to model.BundleStatus) (*model.CuttingBundle, error) {
	query := `
		UPDATE cutting_bundles
		SET status = $4, updated_at = NOW()
		WHERE id = $1 AND workspace_id = $2 AND status = $3
		RETURNING ` + bundleColumns

	b, err := scanBundle(r.db.QueryRow(ctx, query, id, workspaceID, string(from), string(to)))
	if isNoRows(err) {
		return nil, errors.Conflict("cutting bundle %s is no longer %s", id, from)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to update cutting bundle")
	}
	return b, nil
}

func scanBundle(row rowScanner) (*model.CuttingBundle, error) {
	b := &model.CuttingBundle{}
	var breakdown []byte
	var status string
	err := row.Scan(
		&b.ID,
		&b.WorkspaceID,
		&b.LayPlanID,
		&b.BundleNumber,
		&b.Sequence,
		&breakdown,
		&b.TotalPieces,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = model.BundleStatus(status)
	if err := fromJSON(breakdown, &b.SizeBreakdown); err != nil {
		return nil, err
	}
	return b, nil
}
