// Package client holds the collaborators the cutting services talk to: the
// order lookup and the audit sinks.
package client

import (
	"context"

	"github.com/piwi3910/FabriCut/internal/model"
)

// OrderSource resolves an order inside a workspace. Implementations return a
// NotFound error for unknown ids and for orders of other workspaces.
type OrderSource interface {
	GetOrder(ctx context.Context, workspaceID, orderID string) (*model.Order, error)
}

// AuditSink receives audit events after a mutation has committed.
type AuditSink interface {
	Record(ctx context.Context, event model.AuditEvent) error
}
