package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func TestRegistryContainsGoAndProcessCollectors(t *testing.T) {
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	if !names["go_goroutines"] {
		t.Error("expected go_goroutines metric from GoCollector")
	}
	if !names["process_cpu_seconds_total"] {
		t.Error("expected process_cpu_seconds_total from ProcessCollector")
	}
}

func TestBrokerMetricsRegistered(t *testing.T) {
	reg := newTestRegistry()
	m := newBrokerMetricsOn(reg)

	m.DecisionsTotal.WithLabelValues("deny").Inc()
	m.EvalDuration.WithLabelValues("deny").Observe(0.001)
	m.ReloadsTotal.WithLabelValues("ok").Inc()
	m.ApprovalsTotal.WithLabelValues("session", "yes").Inc()
	m.ActivePolicyInfo.WithLabelValues("default", "enforce").Set(1)

	names := gatherNames(t, reg)
	for _, n := range []string{
		"substrate_broker_decisions_total",
		"substrate_broker_eval_duration_seconds",
		"substrate_broker_reloads_total",
		"substrate_broker_approvals_total",
		"substrate_broker_active_policy_info",
	} {
		if !names[n] {
			t.Errorf("expected metric %q not found", n)
		}
	}
}

func TestWorldMetricsRegistered(t *testing.T) {
	reg := newTestRegistry()
	m := newWorldMetricsOn(reg)

	m.SessionsTotal.WithLabelValues("linux-native", "ok").Inc()
	m.SessionsActive.Set(1)
	m.ExecTotal.WithLabelValues("linux-native", "0").Inc()
	m.ExecDuration.WithLabelValues("linux-native").Observe(0.2)
	m.FsDiffBytes.WithLabelValues("linux-native").Observe(4096)
	m.BackendInfo.WithLabelValues("linux-native", "true").Set(1)

	names := gatherNames(t, reg)
	for _, n := range []string{
		"substrate_world_sessions_total",
		"substrate_world_sessions_active",
		"substrate_world_exec_total",
		"substrate_world_exec_duration_seconds",
		"substrate_world_fs_diff_bytes",
		"substrate_world_backend_info",
	} {
		if !names[n] {
			t.Errorf("expected metric %q not found", n)
		}
	}
}

func TestShimMetricsRegistered(t *testing.T) {
	reg := newTestRegistry()
	m := newShimMetricsOn(reg)

	m.InterceptsTotal.WithLabelValues("curl", "allow").Inc()
	m.CheckDuration.Observe(0.001)
	m.ExecFailures.WithLabelValues("binary_not_found").Inc()

	names := gatherNames(t, reg)
	for _, n := range []string{
		"substrate_shim_intercepts_total",
		"substrate_shim_check_duration_seconds",
		"substrate_shim_exec_failures_total",
	} {
		if !names[n] {
			t.Errorf("expected metric %q not found", n)
		}
	}
}

func TestTraceMetricsRegistered(t *testing.T) {
	reg := newTestRegistry()
	m := newTraceMetricsOn(reg)

	m.SpansWritten.WithLabelValues("command_complete").Inc()
	m.WriteErrors.Inc()
	m.RotationsTotal.Inc()
	m.RedactionsHit.WithLabelValues("key_value").Inc()

	names := gatherNames(t, reg)
	for _, n := range []string{
		"substrate_trace_spans_written_total",
		"substrate_trace_write_errors_total",
		"substrate_trace_rotations_total",
		"substrate_trace_redactions_total",
	} {
		if !names[n] {
			t.Errorf("expected metric %q not found", n)
		}
	}
}

func TestMetricsServerStartStop(t *testing.T) {
	logger := zap.NewNop()
	srv := NewServer(19876, logger)
	srv.Start()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19876/healthz")
	if err != nil {
		t.Fatalf("failed to reach healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get("http://localhost:19876/metrics")
	if err != nil {
		t.Fatalf("failed to reach metrics: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp2.StatusCode)
	}

	body, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected go_goroutines in metrics output")
	}

	srv.Stop()
}

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}
