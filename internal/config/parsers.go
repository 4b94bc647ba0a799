// Package config loads protoduel settings from flags, an optional YAML or
// JSON file and PROTODUEL_* environment variables, then validates them.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Values reaching these helpers come from viper.AllSettings: YAML yields
// ints, JSON yields float64s, the environment yields strings, and nested
// sections arrive as map[string]interface{}.

// lookupSetting returns the first key present in settings. Each key is also
// tried with hyphens or with no separator in place of underscores, so
// "ids_file", "ids-file" and "idsfile" all match.
func lookupSetting(settings map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		key = strings.ToLower(key)
		for _, spelling := range []string{key, strings.ReplaceAll(key, "_", "-"), strings.ReplaceAll(key, "_", "")} {
			if val, ok := settings[spelling]; ok {
				return val, true
			}
		}
	}
	return nil, false
}

// asSection reads a nested block such as rest: or grpc:. Keys are lowercased.
func asSection(value interface{}) (map[string]interface{}, error) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a section, got %T", value)
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

func asString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", value)
	}
}

// asInt rejects fractional numbers; "requests: 2.5" is an operator mistake.
func asInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("expected an integer, got %T", value)
	}
}

func asFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("expected true or false, got %T", value)
	}
}

// asDuration parses Go duration strings. Bare numbers are seconds, so
// "timeout: 2.5" means 2.5s.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return time.ParseDuration(v)
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected a duration, got %T", value)
	}
}

// asPairs reads REST headers and gRPC metadata. A config file gives a map or
// a list of "key=value" entries; the environment gives one comma separated
// "key=value,key=value" string.
func asPairs(value interface{}) (map[string]string, error) {
	var entries []string
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, raw := range v {
			if strings.TrimSpace(k) == "" {
				return nil, fmt.Errorf("key cannot be empty")
			}
			val, err := asString(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[strings.TrimSpace(k)] = val
		}
		return out, nil
	case []interface{}:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("entry %d: expected key=value, got %T", i, item)
			}
			entries = append(entries, s)
		}
	case string:
		entries = strings.Split(v, ",")
	default:
		return nil, fmt.Errorf("expected a map or key=value list, got %T", value)
	}

	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		k, val, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("entry must be in key=value format: %s", entry)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return out, nil
}
