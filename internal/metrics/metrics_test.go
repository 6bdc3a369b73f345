package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.ObserveModelCall("synthesis", nil, time.Second)
	m.ObserveModelCall("synthesis", errors.New("boom"), time.Second)
	m.ObserveDecodePath(PathSecondary)
	m.ObserveFailure("rate_limited")
	m.ObserveCatalogueSource(SourceInline)

	if got := testutil.ToFloat64(m.ModelCalls.WithLabelValues("synthesis", OutcomeError)); got != 1 {
		t.Fatalf("expected 1 failed call, got %v", got)
	}
	if got := testutil.ToFloat64(m.DecodePaths.WithLabelValues(PathSecondary)); got != 1 {
		t.Fatalf("expected secondary path counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("rate_limited")); got != 1 {
		t.Fatalf("expected failure counted, got %v", got)
	}
	if got := testutil.CollectAndCount(m.ModelDuration); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestMetricsRejectDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveModelCall("extraction", nil, time.Millisecond)
	m.ObserveDecodePath(PathPrimary)
	m.ObserveFailure("upstream_error")
	m.ObserveCatalogueSource(SourceNone)
}
