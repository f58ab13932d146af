package repository

import (
	"context"

	"github.com/piwi3910/FabriCut/internal/database"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// OrderRepository reads the order rows replicated from the order service.
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetOrder returns an order of the workspace.
func (r *OrderRepository) GetOrder(ctx context.Context, workspaceID, id string) (*model.Order, error) {
	query := `
		SELECT id, workspace_id, po_number, product_type, total_qty, brand, brand_code, client
		FROM orders
		WHERE id = $1 AND workspace_id = $2
	`
	o := &model.Order{}
	err := r.db.QueryRow(ctx, query, id, workspaceID).Scan(
		&o.ID,
		&o.WorkspaceID,
		&o.PONumber,
		&o.ProductType,
		&o.TotalQty,
		&o.Brand,
		&o.BrandCode,
		&o.Client,
	)
	if isNoRows(err) {
		return nil, errors.NotFound("order", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get order")
	}
	return o, nil
}

// Save inserts or refreshes an order row.
func (r *OrderRepository) Save(ctx context.Context, o *model.Order) error {
	if o.ID == "" {
		o.ID = newID()
	}
	query := `
		INSERT INTO orders (id, workspace_id, po_number, product_type, total_qty, brand, brand_code, client)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET po_number    = EXCLUDED.po_number,
		    product_type = EXCLUDED.product_type,
		    total_qty    = EXCLUDED.total_qty,
		    brand        = EXCLUDED.brand,
		    brand_code   = EXCLUDED.brand_code,
		    client       = EXCLUDED.client
		WHERE orders.workspace_id = EXCLUDED.workspace_id
	`
	_, err := r.db.Exec(ctx, query,
		o.ID, o.WorkspaceID, o.PONumber, o.ProductType, o.TotalQty, o.Brand, o.BrandCode, o.Client)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to save order")
	}
	return nil
}

// Items returns the size/color lines of an order.
func (r *OrderRepository) Items(ctx context.Context, workspaceID, orderID string) ([]*model.OrderItem, error) {
	query := `
		SELECT id, workspace_id, order_id, size, color, quantity, unit_price
		FROM order_items
		WHERE order_id = $1 AND workspace_id = $2
		ORDER BY size, color
	`
	rows, err := r.db.Query(ctx, query, orderID, workspaceID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list order items")
	}
	defer rows.Close()

	items := make([]*model.OrderItem, 0)
	for rows.Next() {
		it := &model.OrderItem{}
		if err := rows.Scan(&it.ID, &it.WorkspaceID, &it.OrderID, &it.Size, &it.Color, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan order item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
