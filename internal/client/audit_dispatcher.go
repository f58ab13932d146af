package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/piwi3910/FabriCut/internal/model"
)

// AuditDispatcher fans audit events out to every sink in the background.
// Sink failures are logged and never reach the caller.
type AuditDispatcher struct {
	sinks   []AuditSink
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewAuditDispatcher creates a dispatcher over the given sinks. Nil sinks
// are skipped.
func NewAuditDispatcher(log zerolog.Logger, timeout time.Duration, sinks ...AuditSink) *AuditDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &AuditDispatcher{timeout: timeout, log: log}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Dispatch hands the event to all sinks and returns immediately. The event
// outlives ctx cancellation but keeps its values.
func (d *AuditDispatcher) Dispatch(ctx context.Context, e model.AuditEvent) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	base := context.WithoutCancel(ctx)

	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink AuditSink) {
			defer d.wg.Done()
			sctx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()

			if err := sink.Record(sctx, e); err != nil {
				d.log.Warn().Err(err).
					Str("workspace_id", e.WorkspaceID).
					Str("entity_type", e.EntityType).
					Str("entity_id", e.EntityID).
					Str("action", e.Action).
					Msg("audit: failed to record event (non-fatal)")
			}
		}(sink)
	}
}

// Wait blocks until every dispatched event has been handled.
func (d *AuditDispatcher) Wait() {
	d.wg.Wait()
}
