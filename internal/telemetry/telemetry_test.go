package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
)

func TestParseSampleRate(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", 0.1},
		{"0.5", 0.5},
		{"1", 1},
		{"0", 0},
		{"-0.1", 0.1},
		{"1.5", 0.1},
		{"abc", 0.1},
	}
	for _, tc := range tests {
		if got := parseSampleRate(tc.raw); got != tc.want {
			t.Errorf("parseSampleRate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestStripScheme(t *testing.T) {
	for in, want := range map[string]string{
		"http://collector:4318":  "collector:4318",
		"https://collector:4318": "collector:4318",
		"collector:4318":         "collector:4318",
	} {
		if got := stripScheme(in); got != want {
			t.Errorf("stripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

type stubEngine struct {
	err    error
	alerts chan domain.Alert
}

func (s *stubEngine) Create(ctx context.Context, id domain.TransferID, src domain.TransferSource) (ports.CreateResult, error) {
	return ports.CreateResult{Name: "x"}, s.err
}
func (s *stubEngine) Pause(ctx context.Context, id domain.TransferID) error  { return s.err }
func (s *stubEngine) Resume(ctx context.Context, id domain.TransferID) error { return s.err }
func (s *stubEngine) Remove(ctx context.Context, id domain.TransferID) error { return s.err }
func (s *stubEngine) Alerts() <-chan domain.Alert                            { return s.alerts }
func (s *stubEngine) Close() error                                           { return nil }

func TestTracedEngineRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	stub := &stubEngine{alerts: make(chan domain.Alert)}
	engine := TraceEngine(stub)

	res, err := engine.Create(context.Background(), 1, domain.TransferSource{Magnet: "magnet:?xt=urn:btih:abc"})
	if err != nil || res.Name != "x" {
		t.Fatalf("Create = %+v, %v", res, err)
	}
	stub.err = errors.New("boom")
	if err := engine.Pause(context.Background(), 1); err == nil {
		t.Fatalf("expected pause error to pass through")
	}
	if engine.Alerts() != (<-chan domain.Alert)(stub.alerts) {
		t.Fatalf("Alerts must return the wrapped channel")
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "engine.create" || spans[0].Status().Code == codes.Error {
		t.Fatalf("unexpected create span: %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Name() != "engine.pause" || spans[1].Status().Code != codes.Error {
		t.Fatalf("unexpected pause span: %s %v", spans[1].Name(), spans[1].Status())
	}
}
