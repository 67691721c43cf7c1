package config

// Defaults written back into the configuration when their options are absent.
const (
	// DefaultEntry is the argv invoked on the downloaded stage-2 binary.
	DefaultEntry = "run"

	// DefaultJournalPath is where the run journal database lives.
	DefaultJournalPath = "/var/lib/graft/graft.db"

	// DefaultPluginDir is scanned for external deployment-handler plugins.
	DefaultPluginDir = "/usr/lib/graft/plugins"

	// DefaultPolicyDir is scanned for site policy files.
	DefaultPolicyDir = "/etc/graft.d/policies"

	// DefaultOTLPEndpoint is the collector address for otlp tracing.
	DefaultOTLPEndpoint = "localhost:4317"

	// Disabled is the sentinel value that turns a sink or subsystem off.
	Disabled = "DISABLED"
)

// BootstrapConfig is the [bootstrap] section: where the stage-1 stub fetches
// the full binary from, and what it invokes on it.
type BootstrapConfig struct {
	// Source is the artifact URI (http, https or file).
	Source string `ini:"source" validate:"required,uri"`

	// Entry is the whitespace-separated argv appended to the downloaded
	// binary's invocation.
	Entry string `ini:"entry" validate:"required"`
}

// LoggingConfig is the [logging] section. Level values are the standard
// severity names or the Disabled sentinel; parsing happens in logsetup.
type LoggingConfig struct {
	Console        string `ini:"console" validate:"required"`
	Syslog         string `ini:"syslog" validate:"required"`
	SyslogFacility string `ini:"syslog_facility" validate:"required"`
}

// StateConfig is the [state] section.
type StateConfig struct {
	// Journal is the run journal database path, or Disabled.
	Journal string `ini:"journal" validate:"required"`
}

// PluginsConfig is the [plugins] section.
type PluginsConfig struct {
	// Dir is the directory scanned for *.wasm handler plugins.
	Dir string `ini:"dir" validate:"required"`
}

// PolicyConfig is the [policy] section.
type PolicyConfig struct {
	// Dir is the directory scanned for *.rego policy files.
	Dir string `ini:"dir" validate:"required"`

	// Builtin toggles the compiled-in hygiene policies.
	Builtin bool `ini:"builtin"`
}

// TelemetryConfig is the [telemetry] section.
type TelemetryConfig struct {
	// Tracing selects the span exporter.
	Tracing string `ini:"tracing" validate:"required,oneof=disabled stdout otlp"`

	// OTLPEndpoint is the gRPC collector address for tracing=otlp.
	OTLPEndpoint string `ini:"otlp_endpoint" validate:"omitempty,hostname_port"`

	// MetricsFile is the textfile-collector path metrics are written to at
	// the end of a run; empty disables metrics output.
	MetricsFile string `ini:"metrics_file"`
}

// Bootstrap resolves and validates the [bootstrap] section.
func (c *Config) Bootstrap() (*BootstrapConfig, error) {
	if _, err := c.Absorb("bootstrap", []string{"source"}, map[string]string{"entry": DefaultEntry}); err != nil {
		return nil, err
	}
	var bc BootstrapConfig
	return &bc, c.mapSection("bootstrap", &bc)
}

// Logging resolves the [logging] section, applying the documented defaults.
func (c *Config) Logging() (*LoggingConfig, error) {
	defaults := map[string]string{
		"console":         "INFO",
		"syslog":          Disabled,
		"syslog_facility": "user",
	}
	if _, err := c.Absorb("logging", nil, defaults); err != nil {
		return nil, err
	}
	var lc LoggingConfig
	return &lc, c.mapSection("logging", &lc)
}

// State resolves the [state] section.
func (c *Config) State() (*StateConfig, error) {
	if _, err := c.Absorb("state", nil, map[string]string{"journal": DefaultJournalPath}); err != nil {
		return nil, err
	}
	var sc StateConfig
	return &sc, c.mapSection("state", &sc)
}

// Plugins resolves the [plugins] section.
func (c *Config) Plugins() (*PluginsConfig, error) {
	if _, err := c.Absorb("plugins", nil, map[string]string{"dir": DefaultPluginDir}); err != nil {
		return nil, err
	}
	var pc PluginsConfig
	return &pc, c.mapSection("plugins", &pc)
}

// Policy resolves the [policy] section.
func (c *Config) Policy() (*PolicyConfig, error) {
	defaults := map[string]string{
		"dir":     DefaultPolicyDir,
		"builtin": "true",
	}
	if _, err := c.Absorb("policy", nil, defaults); err != nil {
		return nil, err
	}
	var pc PolicyConfig
	return &pc, c.mapSection("policy", &pc)
}

// Telemetry resolves the [telemetry] section.
func (c *Config) Telemetry() (*TelemetryConfig, error) {
	defaults := map[string]string{
		"tracing":       "disabled",
		"otlp_endpoint": DefaultOTLPEndpoint,
	}
	if _, err := c.Absorb("telemetry", nil, defaults); err != nil {
		return nil, err
	}
	var tc TelemetryConfig
	return &tc, c.mapSection("telemetry", &tc)
}

// mapSection maps a resolved section onto a struct view and validates it.
func (c *Config) mapSection(section string, v any) error {
	if err := c.file.Section(section).MapTo(v); err != nil {
		return &ConfigurationError{Section: section, Reason: "malformed section", Err: err}
	}
	if err := c.validate.Struct(v); err != nil {
		return &ConfigurationError{Section: section, Reason: "invalid option value", Err: err}
	}
	return nil
}
