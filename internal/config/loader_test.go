package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{"  padded ", "padded"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
	if _, err := asString(map[string]interface{}{"a": 1}); err == nil {
		t.Error("asString(map) should fail")
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
	for _, bad := range []interface{}{2.5, "ten", true} {
		if _, err := asInt(bad); err == nil {
			t.Errorf("asInt(%v) should fail", bad)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{"1m", time.Minute},
		{10, 10 * time.Second}, // bare numbers are seconds
		{2.5, 2500 * time.Millisecond},
		{"3", 3 * time.Second},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := &Config{}
	settings := map[string]interface{}{
		"requests": 250,
		"id_range": "10-20",
		"workers":  "8",
		"timeout":  "5s",
		"seed":     42,
		"rest": map[string]interface{}{
			"url":     "http://api.local:8080",
			"path":    "/entity/{{id}}",
			"headers": []interface{}{"x-api-key=abc"},
		},
		"grpc": map[string]interface{}{
			"url":      "api.local:9090",
			"service":  "catalog.Catalog",
			"metadata": map[string]interface{}{"X-Tenant": "blue"},
			"tls":      "true",
		},
		"tracing": map[string]interface{}{
			"endpoint":    "otel:4317",
			"sample_rate": 0.25,
			"propagate":   false,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Requests != 250 || cfg.IDRange != "10-20" || cfg.Workers != 8 || cfg.Seed != 42 {
		t.Errorf("workload settings = %+v", cfg)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.REST.URL != "http://api.local:8080" || cfg.REST.Path != "/entity/{{id}}" {
		t.Errorf("REST = %+v", cfg.REST)
	}
	if cfg.REST.Headers["X-Api-Key"] != "abc" {
		t.Errorf("REST.Headers = %v", cfg.REST.Headers)
	}
	if cfg.GRPC.Target != "api.local:9090" || cfg.GRPC.Service != "catalog.Catalog" || !cfg.GRPC.TLS {
		t.Errorf("GRPC = %+v", cfg.GRPC)
	}
	if cfg.GRPC.Metadata["x-tenant"] != "blue" {
		t.Errorf("GRPC.Metadata = %v", cfg.GRPC.Metadata)
	}
	if cfg.Tracing.Endpoint != "otel:4317" || cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.Propagate == nil || *cfg.Tracing.Propagate {
		t.Errorf("Tracing.Propagate = %v, want explicit false", cfg.Tracing.Propagate)
	}
}

func TestApplyConfigSettingsErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
	}{
		{name: "bad requests", settings: map[string]interface{}{"requests": "many"}},
		{name: "negative seed", settings: map[string]interface{}{"seed": -1}},
		{name: "bad timeout", settings: map[string]interface{}{"timeout": "soon"}},
		{name: "rest not a map", settings: map[string]interface{}{"rest": "http://x"}},
		{name: "bad header entry", settings: map[string]interface{}{"rest": map[string]interface{}{"headers": []interface{}{"novalue"}}}},
		{name: "bad tls", settings: map[string]interface{}{"grpc": map[string]interface{}{"tls": "maybe"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := applyConfigSettings(&Config{}, tt.settings); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := &Config{
		Workers: 100,
		REST:    RESTConfig{URL: "http://from-file:8080"},
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"-r", "500",
		"--workers=5",
		"--rest-url= http://flag:8080 ",
		"--rest-header=X-Test=123",
		"--grpc-metadata=X-Client=cli",
		"--seed=7",
		"--tracing-propagate",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Requests != 500 || cfg.Workers != 5 || cfg.Seed != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.REST.URL != "http://flag:8080" {
		t.Errorf("REST.URL = %q", cfg.REST.URL)
	}
	if cfg.REST.Headers["X-Test"] != "123" {
		t.Errorf("REST.Headers = %v", cfg.REST.Headers)
	}
	if cfg.GRPC.Metadata["x-client"] != "cli" {
		t.Errorf("GRPC.Metadata = %v", cfg.GRPC.Metadata)
	}
	if cfg.Tracing.Propagate == nil || !*cfg.Tracing.Propagate {
		t.Error("Tracing.Propagate should be forced on")
	}
}

func TestApplyFlagOverridesKeepsUnchanged(t *testing.T) {
	cfg := &Config{Workers: 12, Output: "json"}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"-r", "1"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}
	if cfg.Workers != 12 || cfg.Output != "json" {
		t.Errorf("flag defaults overrode file values: %+v", cfg)
	}
}

func TestAsPairs(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  map[string]string
	}{
		{name: "map", input: map[string]interface{}{"A": "1", "Retries": 3}, want: map[string]string{"A": "1", "Retries": "3"}},
		{name: "list", input: []interface{}{"B = 2", "C=x=y"}, want: map[string]string{"B": "2", "C": "x=y"}},
		{name: "env string", input: "x-tenant=blue, x-team=red,", want: map[string]string{"x-tenant": "blue", "x-team": "red"}},
		{name: "nil", input: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asPairs(tt.input)
			if err != nil {
				t.Fatalf("asPairs() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("asPairs() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("asPairs()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}

	for _, bad := range []interface{}{[]interface{}{"=v"}, []interface{}{42}, "novalue", 7} {
		if _, err := asPairs(bad); err == nil {
			t.Errorf("asPairs(%v) should fail", bad)
		}
	}
}

func TestLookupSettingSpellings(t *testing.T) {
	for _, key := range []string{"ids_file", "ids-file", "idsfile"} {
		settings := map[string]interface{}{key: "ids.csv"}
		if got, ok := lookupSetting(settings, "ids_file"); !ok || got != "ids.csv" {
			t.Errorf("lookupSetting(%q) = %v, %v", key, got, ok)
		}
	}
	if _, ok := lookupSetting(map[string]interface{}{"target": "x"}, "url"); ok {
		t.Error("unrelated key should not match")
	}
	if got, _ := lookupSetting(map[string]interface{}{"target": "x"}, "url", "target"); got != "x" {
		t.Errorf("alias lookup = %v", got)
	}
}
