package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads, e.g.
// PROTODUEL_REQUESTS or PROTODUEL_REST_URL.
const EnvPrefix = "PROTODUEL"

// Loader handles loading configuration from files, the environment and
// command-line arguments, in increasing order of precedence.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Scalar settings that may come from the environment.
var envKeys = []string{
	"requests", "id_range", "ids_file", "seed", "workers", "timeout",
	"output", "output_file", "chart", "dashboard", "verbose",
	"rest.url", "rest.path", "rest.headers",
	"grpc.url", "grpc.metadata", "grpc.proto_file", "grpc.service", "grpc.method", "grpc.message", "grpc.tls", "grpc.insecure",
	"tracing.endpoint", "tracing.protocol", "tracing.service_name", "tracing.sample_rate", "tracing.insecure", "tracing.propagate",
}

// Load parses command-line arguments and configuration sources into a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" && os.Getenv(EnvPrefix+"_REQUESTS") == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	cfgViper.SetEnvPrefix(EnvPrefix)
	cfgViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range envKeys {
		if err := cfgViper.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		IDRange:    DefaultIDRange,
		Workers:    DefaultWorkers,
		Timeout:    DefaultTimeout,
		Output:     DefaultOutput,
		ConfigFile: configPath,
		REST: RESTConfig{
			URL:     DefaultRESTURL,
			Path:    DefaultRESTPath,
			Headers: map[string]string{},
		},
		GRPC: GRPCConfig{
			Target:   DefaultGRPCURL,
			Metadata: map[string]string{},
		},
		Tracing: TracingConfig{SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Output = normalizeOutput(cfg.Output)
	cfg.REST.URL = strings.TrimRight(strings.TrimSpace(cfg.REST.URL), "/")
	cfg.GRPC.Target = strings.TrimSpace(cfg.GRPC.Target)
	cfg.IDsFile = strings.TrimSpace(cfg.IDsFile)
	return cfg, nil
}

// applyConfigSettings applies settings from a config file or the
// environment to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "requests"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("requests: %w", err)
		}
		cfg.Requests = val
	}
	if raw, ok := lookupSetting(settings, "id_range"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("id_range: %w", err)
		}
		cfg.IDRange = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "ids_file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("ids_file: %w", err)
		}
		cfg.IDsFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if val < 0 {
			return fmt.Errorf("seed: must be >= 0")
		}
		cfg.Seed = uint64(val)
	}
	if raw, ok := lookupSetting(settings, "workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = val
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}
	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if val != "" {
			cfg.Output = val
		}
	}
	if raw, ok := lookupSetting(settings, "output_file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output_file: %w", err)
		}
		cfg.OutputFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "chart"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("chart: %w", err)
		}
		cfg.Chart = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}
	if raw, ok := lookupSetting(settings, "verbose"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("verbose: %w", err)
		}
		cfg.Verbose = val
	}

	if raw, ok := lookupSetting(settings, "rest"); ok {
		if err := applyRESTSettings(&cfg.REST, raw); err != nil {
			return fmt.Errorf("rest: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "grpc"); ok {
		if err := applyGRPCSettings(&cfg.GRPC, raw); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	return nil
}

func applyRESTSettings(rest *RESTConfig, value interface{}) error {
	settings, err := asSection(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		rest.URL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("path: %w", err)
		}
		rest.Path = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asPairs(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if rest.Headers == nil {
			rest.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			rest.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}
	return nil
}

func applyGRPCSettings(g *GRPCConfig, value interface{}) error {
	settings, err := asSection(value)
	if err != nil {
		return err
	}
	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"url", "target"}, &g.Target},
		{[]string{"proto_file"}, &g.ProtoFile},
		{[]string{"service"}, &g.Service},
		{[]string{"method"}, &g.Method},
		{[]string{"message"}, &g.Message},
	}
	for _, s := range strs {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "metadata"); ok {
		md, err := asPairs(raw)
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		if g.Metadata == nil {
			g.Metadata = map[string]string{}
		}
		for k, v := range md {
			g.Metadata[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	if raw, ok := lookupSetting(settings, "tls"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
		g.TLS = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		g.Insecure = val
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, value interface{}) error {
	settings, err := asSection(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "service_name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "sample_rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}
