package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if err := m.Track("dashboard:group_digest").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := m.Track("dashboard:group_digest").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error to pass through, got %v", err)
	}

	if got := testutil.ToFloat64(m.runs.WithLabelValues("dashboard:group_digest", "ok")); got != 1 {
		t.Fatalf("expected 1 ok run, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("dashboard:group_digest")); got <= 0 {
		t.Fatalf("expected last success timestamp, got %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("dashboard:group_digest")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestAddDigestPharmacies(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddDigestPharmacies("daily", 3, 0)
	m.AddDigestPharmacies("daily", 1, 2)

	if got := testutil.ToFloat64(m.digest.WithLabelValues("daily", "loaded")); got != 4 {
		t.Fatalf("expected 4 loaded, got %v", got)
	}
	if got := testutil.ToFloat64(m.digest.WithLabelValues("daily", "failed")); got != 2 {
		t.Fatalf("expected 2 failed, got %v", got)
	}

	var nilMetrics *Metrics
	nilMetrics.AddDigestPharmacies("daily", 1, 1)
	if err := nilMetrics.Track("noop").End(nil); err != nil {
		t.Fatalf("nil tracker should be inert: %v", err)
	}
}
