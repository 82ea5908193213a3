package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

const engineTracerName = "torrentsession/engine"

// TracedEngine records a span around every blocking engine call.
type TracedEngine struct {
	next   ports.Engine
	tracer trace.Tracer
}

func TraceEngine(next ports.Engine) *TracedEngine {
	return &TracedEngine{next: next, tracer: otel.Tracer(engineTracerName)}
}

func (e *TracedEngine) Create(ctx context.Context, id domain.TransferID, src domain.TransferSource) (ports.CreateResult, error) {
	kind := "magnet"
	if src.Magnet == "" {
		kind = "metainfo"
	}
	ctx, span := e.start(ctx, "engine.create", id, attribute.String("transfer.source_kind", kind))
	defer span.End()
	res, err := e.next.Create(ctx, id, src)
	endSpan(span, err)
	return res, err
}

func (e *TracedEngine) Pause(ctx context.Context, id domain.TransferID) error {
	ctx, span := e.start(ctx, "engine.pause", id)
	defer span.End()
	err := e.next.Pause(ctx, id)
	endSpan(span, err)
	return err
}

func (e *TracedEngine) Resume(ctx context.Context, id domain.TransferID) error {
	ctx, span := e.start(ctx, "engine.resume", id)
	defer span.End()
	err := e.next.Resume(ctx, id)
	endSpan(span, err)
	return err
}

func (e *TracedEngine) Remove(ctx context.Context, id domain.TransferID) error {
	ctx, span := e.start(ctx, "engine.remove", id)
	defer span.End()
	err := e.next.Remove(ctx, id)
	endSpan(span, err)
	return err
}

func (e *TracedEngine) Alerts() <-chan domain.Alert {
	return e.next.Alerts()
}

func (e *TracedEngine) Close() error {
	return e.next.Close()
}

func (e *TracedEngine) start(ctx context.Context, name string, id domain.TransferID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.Int64("transfer.id", int64(id)))
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
