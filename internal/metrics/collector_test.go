package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/oriys/edgeharness/internal/domain"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write metric failed: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordInvocation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordInvocation("echo", domain.InvocationStatusSuccess, true, 12)
	m.RecordInvocation("echo", domain.InvocationStatusSuccess, true, 3)
	m.RecordInvocation("echo", domain.InvocationStatusFailed, false, 1)

	if got := counterValue(t, m.InvocationsTotal.WithLabelValues("echo", "success", "debug")); got != 2 {
		t.Errorf("success/debug = %v, want 2", got)
	}
	if got := counterValue(t, m.InvocationsTotal.WithLabelValues("echo", "failed", "plain")); got != 1 {
		t.Errorf("failed/plain = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() != "test_invocation_duration_ms" {
			continue
		}
		found = true
		for _, metric := range mf.GetMetric() {
			if metric.GetHistogram().GetSampleCount() == 0 {
				t.Errorf("histogram has no samples: %v", metric)
			}
		}
	}
	if !found {
		t.Error("duration histogram not registered")
	}
}

func TestRecordLogs(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	m.RecordLogs("echo", []domain.LogRecord{
		{Level: domain.LogLevelInfo},
		{Level: domain.LogLevelInfo},
		{Level: domain.LogLevelError},
	})

	tests := []struct {
		level string
		want  float64
	}{
		{"info", 2},
		{"error", 1},
		{"warn", 0},
	}
	for _, tt := range tests {
		if got := counterValue(t, m.CapturedRecords.WithLabelValues("echo", tt.level)); got != tt.want {
			t.Errorf("%s records = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestRecordPanicAndConflict(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	m.RecordPanic("fail")
	m.RecordRedirectConflict()
	m.RecordRedirectConflict()

	if got := counterValue(t, m.HandlerPanics.WithLabelValues("fail")); got != 1 {
		t.Errorf("panics = %v, want 1", got)
	}
	if got := counterValue(t, m.RedirectConflicts); got != 2 {
		t.Errorf("conflicts = %v, want 2", got)
	}
}
