package app

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chefkeenan/Lume/internal/domain"
)

var tracer = otel.Tracer("lume-app")

func refAttrs(ref domain.ResourceRef) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("resource.kind", string(ref.Kind)),
		attribute.String("resource.id", ref.ID),
	)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// DisplayCounter mirrors remaining capacity for read-heavy views. It is
// written after commit and never read back by a capacity decision.
type DisplayCounter interface {
	StoreRemaining(ctx context.Context, ref domain.ResourceRef, remaining int) error
}

type noopCounter struct{}

func (noopCounter) StoreRemaining(context.Context, domain.ResourceRef, int) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// publishRemaining queues a display counter refresh for after commit.
func publishRemaining(ctx context.Context, tx TxRunner, counters DisplayCounter, log *slog.Logger, ref domain.ResourceRef, remaining int) {
	tx.AfterCommit(ctx, func(ctx context.Context) {
		if err := counters.StoreRemaining(ctx, ref, remaining); err != nil {
			log.Warn("display counter refresh failed", "kind", ref.Kind, "resource_id", ref.ID, "err", err)
		}
	})
}
