package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "protoduel",
		Short:         "Benchmark a REST API against a gRPC API serving the same data",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Workload
	flags.IntP("requests", "r", 0, "Number of requests to execute for each protocol (required)")
	flags.String("id-range", DefaultIDRange, "Inclusive range of entity ids to sample, as min-max")
	flags.String("ids-file", "", "CSV (id column) or JSON array of ids to request instead of random sampling")
	flags.Uint64("seed", 0, "Seed for id sampling (0 picks a random seed)")
	flags.IntP("workers", "w", DefaultWorkers, "Maximum concurrent requests per protocol")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")

	// REST
	flags.String("rest-url", DefaultRESTURL, "Base URL of the REST server")
	flags.String("rest-path", DefaultRESTPath, "Request path template; {{id}} is replaced by the entity id")
	flags.StringSlice("rest-header", nil, "Additional REST request header in key=value form (repeatable)")

	// gRPC
	flags.String("grpc-url", DefaultGRPCURL, "Address of the gRPC server (host:port)")
	flags.String("grpc-proto-file", "", "Path to .proto file (defaults to the built-in user service)")
	flags.String("grpc-service", "", "Fully qualified gRPC service (default userservice.UserService)")
	flags.String("grpc-method", "", "Unary method to call (default GetUser)")
	flags.String("grpc-message", "", `Request message as JSON; {{id}} is replaced by the entity id (default {"user_id": {{id}}})`)
	flags.StringToString("grpc-metadata", nil, "gRPC metadata key=value pairs")
	flags.Bool("grpc-tls", false, "Use TLS for the gRPC connection")
	flags.Bool("grpc-insecure", false, "Skip TLS certificate verification for gRPC")

	// Output
	flags.StringP("output", "o", DefaultOutput, "Report format: console, json, csv or yaml")
	flags.String("output-file", "", "Write the report to this file instead of stdout")
	flags.String("chart", "", "Save a latency box plot to this image file (.png, .svg, .pdf)")
	flags.Bool("dashboard", false, "Show live terminal dashboard while requests run")
	flags.BoolP("verbose", "v", false, "Log progress every 100 completed requests")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "service.name reported with spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace, between 0 and 1")
	flags.Bool("tracing-insecure", false, "Use plaintext to reach the OTLP collector")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context into requests (default: when tracing is enabled)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\nUsage: %s\n\nFlags:\n", cmd.Short, cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"id-range", &cfg.IDRange},
		{"ids-file", &cfg.IDsFile},
		{"rest-url", &cfg.REST.URL},
		{"rest-path", &cfg.REST.Path},
		{"grpc-url", &cfg.GRPC.Target},
		{"grpc-proto-file", &cfg.GRPC.ProtoFile},
		{"grpc-service", &cfg.GRPC.Service},
		{"grpc-method", &cfg.GRPC.Method},
		{"grpc-message", &cfg.GRPC.Message},
		{"output", &cfg.Output},
		{"output-file", &cfg.OutputFile},
		{"chart", &cfg.Chart},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, s := range strs {
		if !fs.Changed(s.name) {
			continue
		}
		val, err := fs.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(val)
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"requests", &cfg.Requests},
		{"workers", &cfg.Workers},
	}
	for _, i := range ints {
		if !fs.Changed(i.name) {
			continue
		}
		val, err := fs.GetInt(i.name)
		if err != nil {
			return err
		}
		*i.dst = val
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"grpc-tls", &cfg.GRPC.TLS},
		{"grpc-insecure", &cfg.GRPC.Insecure},
		{"dashboard", &cfg.Dashboard},
		{"verbose", &cfg.Verbose},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	}
	for _, b := range bools {
		if !fs.Changed(b.name) {
			continue
		}
		val, err := fs.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = val
	}

	if fs.Changed("seed") {
		val, err := fs.GetUint64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	headers, err := fs.GetStringSlice("rest-header")
	if err != nil {
		return err
	}
	if len(headers) > 0 {
		if cfg.REST.Headers == nil {
			cfg.REST.Headers = map[string]string{}
		}
		for _, entry := range headers {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.REST.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if fs.Changed("grpc-metadata") {
		md, err := fs.GetStringToString("grpc-metadata")
		if err != nil {
			return err
		}
		if cfg.GRPC.Metadata == nil {
			cfg.GRPC.Metadata = map[string]string{}
		}
		for k, v := range md {
			cfg.GRPC.Metadata[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return nil
}
