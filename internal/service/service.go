// Package service implements the cutting-room operations: plan creation and
// approval, the sheet state machine, lay planning and bundling.
package service

import (
	"context"
	stderrors "errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
)

// PlanStore persists cutting plans.
type PlanStore interface {
	Create(ctx context.Context, plan *model.CuttingPlan) error
	Get(ctx context.Context, workspaceID, id string) (*model.CuttingPlan, error)
	List(ctx context.Context, f repository.PlanFilter) ([]*model.CuttingPlan, error)
	Update(ctx context.Context, workspaceID, id string, u repository.PlanUpdate) (*model.CuttingPlan, error)
}

// SheetStore persists cutting sheets and cut pieces.
type SheetStore interface {
	Get(ctx context.Context, workspaceID, id string) (*model.CuttingSheet, error)
	List(ctx context.Context, f repository.SheetFilter) ([]*model.CuttingSheet, error)
	Start(ctx context.Context, workspaceID, id string, st repository.StartSheet) (*model.CuttingSheet, error)
	Update(ctx context.Context, workspaceID, id string, u repository.SheetUpdate) (*model.CuttingSheet, []*model.CutPiece, error)
	Pieces(ctx context.Context, workspaceID, sheetID string) ([]*model.CutPiece, error)
	Progress(ctx context.Context, workspaceID, sheetID string) (model.SheetProgress, error)
}

// BatchStore reads fabric batches.
type BatchStore interface {
	Get(ctx context.Context, workspaceID, id string) (*model.FabricBatch, error)
}

// LayPlanStore persists lay plans.
type LayPlanStore interface {
	Create(ctx context.Context, plan *model.LayPlan) error
	Get(ctx context.Context, workspaceID, id string) (*model.LayPlan, error)
	List(ctx context.Context, f repository.LayPlanFilter) ([]*model.LayPlan, error)
	CreateBundles(ctx context.Context, workspaceID, layPlanID string, bundles []*model.CuttingBundle, at time.Time) (*model.LayPlan, error)
	Approve(ctx context.Context, workspaceID, id string) (*model.LayPlan, error)
}

// BundleStore reads and advances bundles.
type BundleStore interface {
	Get(ctx context.Context, workspaceID, id string) (*model.CuttingBundle, error)
	ListByLayPlan(ctx context.Context, workspaceID, layPlanID string) ([]*model.CuttingBundle, error)
	UpdateStatus(ctx context.Context, workspaceID, id string, from, to model.BundleStatus) (*model.CuttingBundle, error)
}

// AuditReader reads the audit trail.
type AuditReader interface {
	List(ctx context.Context, workspaceID, entityType, entityID string) ([]*model.AuditRecord, error)
}

// AuditDispatcher records audit events without blocking the caller.
type AuditDispatcher interface {
	Dispatch(ctx context.Context, event model.AuditEvent)
}

// Entity types used in audit events.
const (
	EntityCuttingPlan   = "cutting_plan"
	EntityCuttingSheet  = "cutting_sheet"
	EntityLayPlan       = "lay_plan"
	EntityFabricBatch   = "fabric_batch"
	EntityCuttingBundle = "cutting_bundle"
)

// AutoApprover is recorded as approver of plans approved by a GREEN verdict.
const AutoApprover = "system:risk-gate"

var tracer = otel.Tracer("github.com/piwi3910/FabriCut/internal/service")

func startSpan(ctx context.Context, name, workspaceID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("workspace_id", workspaceID))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan closes span, recording err when set.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(errors.CodeOf(err)))
	}
	span.End()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateRequest checks the validate tags of req and reports every failing
// field by its json name.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields[ns] = fe.Tag()
	}
	if len(fields) == 1 {
		for field, tag := range fields {
			return &errors.Error{Code: errors.ErrCodeInvalidInput, Message: "validation failed: " + tag, Field: field, Fields: fields}
		}
	}
	return errors.InvalidFields(fields)
}

// readWithRetry runs an idempotent read and repeats it once when it fails
// with an internal error. Mutations must not use it.
func readWithRetry[T any](ctx context.Context, log *logger.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || errors.CodeOf(err) != errors.ErrCodeInternal || ctx.Err() != nil {
		return v, err
	}
	log.Warn().Err(err).Str("operation", op).Msg("Read failed, retrying once")
	return fn(ctx)
}

// internal wraps an unexpected error so callers see an opaque failure. Errors
// that already carry a code pass through.
func internal(err error, message string) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.Wrap(err, errors.ErrCodeInternal, message)
}

func ptr[T any](v T) *T {
	return &v
}
