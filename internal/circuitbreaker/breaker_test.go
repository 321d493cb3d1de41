package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if !b.Allow() {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i+1)
		}
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}
	if b.Allow() {
		t.Error("open breaker allowed a request")
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := New(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Errorf("success must reset the failure count, state is %s", b.State())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := New(1, 10*time.Millisecond)

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)

	// First request after the open window is the probe
	if !b.Allow() {
		t.Fatal("expected probe to be allowed after open duration")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	// Only one probe in flight
	if b.Allow() {
		t.Error("half-open breaker allowed a second request")
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	b.Allow()
	b.RecordSuccess()

	if b.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker rejected a request")
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	b.Allow()
	b.RecordFailure()

	if b.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}
	if b.Allow() {
		t.Error("reopened breaker allowed a request immediately")
	}
}
