package metrics

import (
	"fmt"
	"strings"
	"unicode"
)

// Error kinds shared by every driver. Protocol specific kinds (HTTP_404,
// NOT_FOUND, ...) are produced by NormalizeKind.
const (
	KindTimeout           = "TIMEOUT"
	KindCancelled         = "CANCELLED"
	KindConnection        = "CONNECTION_ERROR"
	KindMalformedResponse = "MALFORMED_RESPONSE"
	KindRead              = "READ_ERROR"
	KindPanic             = "PANIC"
	KindUnknown           = "UNKNOWN"
)

// HTTPStatusKind returns the error kind for a non-success HTTP status code.
func HTTPStatusKind(code int) string {
	return fmt.Sprintf("HTTP_%d", code)
}

// NormalizeKind turns a status or type name into an upper snake case kind:
// "NotFound" -> "NOT_FOUND", "deadline exceeded" -> "DEADLINE_EXCEEDED".
func NormalizeKind(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return KindUnknown
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", ".", "_", "-", "_")
	words := strings.Split(replacer.Replace(trimmed), "_")
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		parts = append(parts, splitCamel(w)...)
	}
	normalized := strings.ToUpper(strings.Join(parts, "_"))
	if normalized == "" {
		return KindUnknown
	}
	return normalized
}

// KindFromError derives a kind from the Go type of err, e.g. *url.Error -> URL_ERROR.
func KindFromError(err error) string {
	if err == nil {
		return ""
	}
	typeName := fmt.Sprintf("%T", err)
	typeName = strings.TrimPrefix(typeName, "*")
	if idx := strings.LastIndex(typeName, "/"); idx != -1 {
		typeName = typeName[idx+1:]
	}
	pkg := ""
	if idx := strings.LastIndex(typeName, "."); idx != -1 {
		pkg = typeName[:idx]
		typeName = typeName[idx+1:]
	}
	// Unexported stdlib types such as errors.errorString say nothing useful.
	if typeName != "" && unicode.IsLower([]rune(typeName)[0]) {
		if pkg == "" || pkg == "errors" || pkg == "fmt" {
			return KindUnknown
		}
		typeName = pkg + "_" + typeName
	}
	if pkg == "url" && typeName == "Error" {
		typeName = "URLError"
	}
	return NormalizeKind(typeName)
}

func splitCamel(name string) []string {
	var words []string
	var current []rune
	runes := []rune(name)

	flush := func() {
		if len(current) == 0 {
			return
		}
		words = append(words, string(current))
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return words
}
