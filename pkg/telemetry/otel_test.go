package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased"},
	}

	for _, tt := range tests {
		if got := Sampler(tt.ratio).Description(); !strings.HasPrefix(got, tt.want) {
			t.Errorf("Sampler(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestInitDisabled(t *testing.T) {
	e := NewOTLPExporter(OTLPConfig{Enabled: false})
	shutdown, err := e.Init(context.Background())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if e.IsInitialized() {
		t.Error("disabled exporter should not initialize")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestDefaultOTLPConfig(t *testing.T) {
	cfg := DefaultOTLPConfig("textsniff")
	if cfg.Enabled {
		t.Error("export should be opt-in")
	}
	if cfg.ServiceName != "textsniff" || cfg.Endpoint == "" || cfg.SamplingRatio != 1.0 {
		t.Errorf("DefaultOTLPConfig() = %+v", cfg)
	}
}

func TestStartAndRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := Start(context.Background(), SpanDetect, attribute.String(AttrSource, "a.txt"))
	SetSpanAttributes(ctx, attribute.String(AttrEncoding, "utf-8"))
	AddSpanEvent(ctx, "detector.degraded")
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	s := ended[0]
	if s.Name() != SpanDetect {
		t.Errorf("span name = %s", s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want error", s.Status())
	}

	attrs := map[attribute.Key]string{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value.AsString()
	}
	if attrs[AttrSource] != "a.txt" || attrs[AttrEncoding] != "utf-8" {
		t.Errorf("attributes = %v", attrs)
	}

	var names []string
	for _, ev := range s.Events() {
		names = append(names, ev.Name)
	}
	if len(names) != 2 || names[0] != "detector.degraded" {
		t.Errorf("events = %v, want detector.degraded then the error", names)
	}
}
