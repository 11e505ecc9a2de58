package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistered(t *testing.T) {
	UpdatesTotal.WithLabelValues("Success")
	HTTPRequestsTotal.WithLabelValues("/health", "200")
	HTTPRequestDuration.WithLabelValues("/health")
	DispatchErrorsTotal.WithLabelValues("slack")

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	expected := map[string]bool{
		"hoister_sweeps_total":                    false,
		"hoister_sweep_duration_seconds":          false,
		"hoister_updates_total":                   false,
		"hoister_pull_duration_seconds":           false,
		"hoister_snapshot_duration_seconds":        false,
		"hoister_http_requests_total":             false,
		"hoister_http_request_duration_seconds":   false,
		"hoister_sse_subscribers":                 false,
		"hoister_deployment_write_duration_seconds": false,
		"hoister_dispatch_errors_total":            false,
	}

	for _, mf := range mfs {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestCounterIncrements(t *testing.T) {
	SweepsTotal.Add(1)
	UpdatesTotal.WithLabelValues("Failed").Inc()
}

func TestGaugeSets(t *testing.T) {
	SSESubscribers.Set(3)
}
