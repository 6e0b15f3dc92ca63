package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tbourn/go-garden-backend/internal/config"
)

// keepGlobals restores the otel globals SetupOTel replaces.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func enabled(insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: "go-garden-backend",
		SampleRatio: 1,
	}
}

func TestSetupOTel_DisabledIsNoOp(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Endpoint: "ignored:4317"}, "v0")
	if err != nil || shutdown == nil {
		t.Fatalf("SetupOTel = shutdown!=nil:%v, %v", shutdown != nil, err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled tracing replaced the global provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
}

func TestSetupOTel_InstallsProviderAndPropagators(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepGlobals(t)

		shutdown, err := SetupOTel(context.Background(), enabled(insecure), "v1.2.3")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: global provider is %T", insecure, otel.GetTracerProvider())
		}

		// Sampled spans are propagated as W3C traceparent.
		ctx, span := otel.Tracer("ledger").Start(context.Background(), "CompleteTask")
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		span.End()
		if !strings.HasPrefix(carrier.Get("traceparent"), "00-") {
			t.Fatalf("traceparent not injected: %v", carrier)
		}

		// Nothing listens on the endpoint; the queued span cannot be delivered.
		sctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(sctx)
		cancel()
	}
}

func TestSetupOTel_ShutdownWithNothingQueued(t *testing.T) {
	keepGlobals(t)
	shutdown, err := SetupOTel(context.Background(), enabled(true), "v1")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupOTel_FailuresLeaveGlobalsAlone(t *testing.T) {
	cases := []struct {
		name  string
		patch func() func()
	}{
		{"exporter", func() func() {
			orig := newOTLPExporterFn
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("boom-exporter")
			}
			return func() { newOTLPExporterFn = orig }
		}},
		{"resource", func() func() {
			orig := newServiceResourceFn
			newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("boom-resource")
			}
			return func() { newServiceResourceFn = orig }
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keepGlobals(t)
			t.Cleanup(tc.patch())
			tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()

			if _, err := SetupOTel(context.Background(), enabled(true), "v0"); err == nil || !strings.Contains(err.Error(), "boom-"+tc.name) {
				t.Fatalf("err = %v", err)
			}
			if otel.GetTracerProvider() != tp || otel.GetTextMapPropagator() != prop {
				t.Fatalf("globals changed on failure")
			}
		})
	}
}

func TestSetupOTel_ResourceCarriesNamespace(t *testing.T) {
	res, err := newServiceResourceFn(context.Background(), "go-garden-backend", "v1")
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs[string(semconv.ServiceNamespaceKey)] != serviceNamespace ||
		attrs[string(semconv.ServiceNameKey)] != "go-garden-backend" ||
		attrs[string(semconv.ServiceVersionKey)] != "v1" ||
		attrs["garden.component"] != "ledger" {
		t.Fatalf("attributes = %v", attrs)
	}
}

func Test_sampler(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased"},
	}
	for _, tc := range cases {
		if got := sampler(tc.ratio).Description(); !strings.HasPrefix(got, tc.want) {
			t.Fatalf("sampler(%v) = %q; want %s", tc.ratio, got, tc.want)
		}
	}
}
