package telemetry_test

import (
	"context"
	"testing"

	"github.com/llamaedge/nexus-gateway/internal/telemetry"
)

func TestInitWithEmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := telemetry.Init(telemetry.Config{ServiceName: "gateway-test"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("Init() returned a nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v, want nil for the disabled no-op path", err)
	}
}

func TestInitWithEndpointConstructsProvider(t *testing.T) {
	shutdown, err := telemetry.Init(telemetry.Config{
		Endpoint:       "127.0.0.1:4317",
		ServiceName:    "gateway-test",
		ServiceVersion: "0.0.0-test",
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("Init() returned a nil shutdown func")
	}
	// The OTLP exporter dials lazily, so construction succeeds even with
	// no collector listening; shutdown must still complete cleanly.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
