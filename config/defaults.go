package config

// Default values for Substrate's runtime configuration.
const (
	// DefaultPolicyDir is where named policy YAML files live, relative to
	// the user's home directory.
	DefaultPolicyDir = ".substrate/policies"

	// DefaultTraceLogPath is the JSONL trace span sink.
	DefaultTraceLogPath = ".substrate/trace.jsonl"

	// DefaultTraceLogMaxSize bounds the trace log before rotation.
	DefaultTraceLogMaxSize = "200MB"

	// DefaultShimDir is where the PATH shim binary and its per-command
	// symlinks/hardlinks are installed.
	DefaultShimDir = ".substrate/shim"

	// DefaultShell is the fallback downstream shell when $SHELL is unset.
	DefaultShell = "/bin/sh"

	// DefaultMetricsPort is the default Prometheus exporter port.
	DefaultMetricsPort = 9090

	// DefaultWorldBackend is the default SUBSTRATE_WORLD_BACKEND value. Only
	// "disabled" is recognised by name; any other value, "auto" included,
	// probes the host platform and picks its implementation.
	DefaultWorldBackend = "auto"

	// DefaultApprovalCachePath holds remembered "always" policy decisions.
	DefaultApprovalCachePath = ".substrate/approvals.json"
)
