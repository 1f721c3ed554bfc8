package otel

import (
	"context"
	"testing"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("POTAUDIT_OTEL_ENDPOINT", "")
	t.Setenv("POTAUDIT_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "potaudit-test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup returned nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupNoopWhenDisabled(t *testing.T) {
	t.Setenv("POTAUDIT_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("POTAUDIT_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "potaudit-test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// 192.0.2.0/24 is reserved for documentation; the exporter batches in
	// the background and never connects during this test.
	t.Setenv("POTAUDIT_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("POTAUDIT_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "potaudit-test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup returned nil shutdown")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Shutdown with a cancelled context returns promptly without flushing
	// to the unreachable endpoint.
	_ = shutdown(ctx)
}
