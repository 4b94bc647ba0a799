package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/torosent/protoduel/internal/idrange"
	"github.com/torosent/protoduel/internal/placeholders"
)

// Defaults mirror the sample backends shipped under scripts/testservers.
const (
	DefaultRESTURL  = "http://localhost:8080"
	DefaultRESTPath = "/api/users/{{id}}"
	DefaultGRPCURL  = "localhost:9090"
	DefaultWorkers  = 100
	DefaultTimeout  = 30 * time.Second
	DefaultOutput   = "console"
	DefaultIDRange  = "1-10000"
)

var outputFormats = []string{"console", "json", "csv", "yaml"}

// Extensions gonum/plot can save to.
var chartExtensions = map[string]bool{
	".png": true, ".svg": true, ".pdf": true, ".jpg": true, ".jpeg": true, ".eps": true, ".tif": true, ".tiff": true,
}

type Config struct {
	Requests   int           `mapstructure:"requests"`
	IDRange    string        `mapstructure:"id_range"`
	IDsFile    string        `mapstructure:"ids_file"`
	Seed       uint64        `mapstructure:"seed"`
	Workers    int           `mapstructure:"workers"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Output     string        `mapstructure:"output"`
	OutputFile string        `mapstructure:"output_file"`
	Chart      string        `mapstructure:"chart"`
	Dashboard  bool          `mapstructure:"dashboard"`
	Verbose    bool          `mapstructure:"verbose"`
	REST       RESTConfig    `mapstructure:"rest"`
	GRPC       GRPCConfig    `mapstructure:"grpc"`
	Tracing    TracingConfig `mapstructure:"tracing"`
	ConfigFile string        `mapstructure:"-"`
}

type RESTConfig struct {
	URL     string            `mapstructure:"url"`
	Path    string            `mapstructure:"path"`
	Headers map[string]string `mapstructure:"headers"`
}

type GRPCConfig struct {
	Target    string            `mapstructure:"url"`
	ProtoFile string            `mapstructure:"proto_file"`
	Service   string            `mapstructure:"service"`
	Method    string            `mapstructure:"method"`
	Message   string            `mapstructure:"message"`
	Metadata  map[string]string `mapstructure:"metadata"`
	TLS       bool              `mapstructure:"tls"`
	Insecure  bool              `mapstructure:"insecure"`
}

// TracingConfig configures optional OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	// Propagate overrides whether trace context is injected into requests.
	// Nil means "propagate when tracing is enabled".
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether an OTLP endpoint is configured, either directly
// or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")) != ""
}

func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Range returns the parsed identifier range, or the default range when none
// is configured.
func (c Config) Range() (idrange.Range, error) {
	if strings.TrimSpace(c.IDRange) == "" {
		return idrange.Default, nil
	}
	return idrange.Parse(c.IDRange)
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate collects every problem with the configuration before failing.
func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if c.Requests < 1 {
		issues = append(issues, "requests must be >= 1 (use --help for usage information)")
	}
	if strings.TrimSpace(c.IDsFile) == "" {
		if _, err := c.Range(); err != nil {
			issues = append(issues, err.Error())
		}
	}
	if c.Workers < 1 {
		issues = append(issues, "workers must be >= 1")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be greater than 0")
	}

	if !validOutput(c.Output) {
		issues = append(issues, fmt.Sprintf("output must be one of %s", strings.Join(outputFormats, ", ")))
	}
	if c.Chart != "" && !chartExtensions[strings.ToLower(filepath.Ext(c.Chart))] {
		issues = append(issues, "chart must end in .png, .svg, .pdf, .jpg, .eps or .tif")
	}
	if c.Dashboard && c.OutputFile == "" && validOutput(c.Output) && normalizeOutput(c.Output) != "console" {
		warnings = append(warnings, "WARNING: --dashboard with a machine-readable --output prints the report after the dashboard closes; consider --output-file.")
	}

	issues = append(issues, validateREST(c.REST)...)
	issues = append(issues, validateGRPC(c.GRPC)...)
	issues = append(issues, validateTracing(c.Tracing)...)

	if c.Workers > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.", c.Workers))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateREST(r RESTConfig) []string {
	var issues []string
	u, err := url.Parse(strings.TrimSpace(r.URL))
	switch {
	case strings.TrimSpace(r.URL) == "":
		issues = append(issues, "rest-url is required")
	case err != nil:
		issues = append(issues, fmt.Sprintf("rest-url: %v", err))
	case u.Scheme != "http" && u.Scheme != "https":
		issues = append(issues, "rest-url must use http or https")
	case u.Host == "":
		issues = append(issues, "rest-url must include a host")
	}
	if p := strings.TrimSpace(r.Path); p != "" {
		if !strings.HasPrefix(p, "/") {
			issues = append(issues, "rest-path must start with /")
		}
		if !placeholders.References(p, placeholders.IDKey) {
			issues = append(issues, "rest-path must contain the {{id}} placeholder")
		}
	}
	for k := range r.Headers {
		if strings.TrimSpace(k) == "" {
			issues = append(issues, "rest header key cannot be empty")
		}
	}
	return issues
}

func validateGRPC(g GRPCConfig) []string {
	var issues []string
	if strings.TrimSpace(g.Target) == "" {
		issues = append(issues, "grpc-url is required")
	} else if strings.Contains(g.Target, "://") {
		issues = append(issues, "grpc-url must be host:port without a scheme")
	}
	if m := strings.TrimSpace(g.Message); m != "" && !placeholders.References(m, placeholders.IDKey) {
		issues = append(issues, "grpc-message must contain the {{id}} placeholder")
	}
	if g.Insecure && !g.TLS {
		issues = append(issues, "grpc-insecure requires grpc-tls")
	}
	if g.ProtoFile != "" {
		if _, err := os.Stat(g.ProtoFile); err != nil {
			issues = append(issues, fmt.Sprintf("grpc-proto-file: %v", err))
		}
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing sample rate must be between 0 and 1")
	}
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, "tracing protocol must be grpc or http")
	}
	return issues
}

func normalizeOutput(s string) string {
	f := strings.ToLower(strings.TrimSpace(s))
	if f == "yml" {
		return "yaml"
	}
	return f
}

func validOutput(s string) bool {
	f := normalizeOutput(s)
	for _, known := range outputFormats {
		if f == known {
			return true
		}
	}
	return false
}
