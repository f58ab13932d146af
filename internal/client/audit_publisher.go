package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/piwi3910/FabriCut/internal/model"
)

// AuditPublisher publishes audit events to NATS.
//
// Subject convention: <prefix>.<entity_type>.<action>, for example
// audit.cutting.cutting_plan.create
type AuditPublisher struct {
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// NewAuditPublisher creates a publisher on an open connection. A nil
// connection turns Record into a no-op.
func NewAuditPublisher(nc *nats.Conn, prefix string, log zerolog.Logger) *AuditPublisher {
	if prefix == "" {
		prefix = "audit.cutting"
	}
	return &AuditPublisher{nc: nc, prefix: prefix, log: log}
}

// Subject returns the subject an event is published on.
func (p *AuditPublisher) Subject(e model.AuditEvent) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, token(e.EntityType), token(e.Action))
}

// token makes a value safe to use as a single subject token.
func token(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}

// Record publishes the event.
func (p *AuditPublisher) Record(ctx context.Context, e model.AuditEvent) error {
	if p.nc == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	subject := p.Subject(e)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	p.log.Debug().
		Str("subject", subject).
		Str("entity_id", e.EntityID).
		Msg("audit: event published")
	return nil
}

// Close drains the connection.
func (p *AuditPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
