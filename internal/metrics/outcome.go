package metrics

import "time"

// Outcome is the result of one attempted fetch. Values are built with
// Succeeded or Failed and never modified afterwards.
type Outcome struct {
	Success      bool    `json:"success"`
	LatencyMs    float64 `json:"latency_ms"`
	PayloadBytes int     `json:"payload_bytes"`
	ID           int     `json:"id"`
	ErrorKind    string  `json:"error_kind,omitempty"`
	ErrorDetail  string  `json:"error_detail,omitempty"`
}

// Succeeded records a completed fetch of id that returned payloadBytes bytes.
func Succeeded(id int, latency time.Duration, payloadBytes int) Outcome {
	if payloadBytes < 0 {
		payloadBytes = 0
	}
	return Outcome{
		Success:      true,
		LatencyMs:    DurationMs(latency),
		PayloadBytes: payloadBytes,
		ID:           id,
	}
}

// Failed records a failed fetch of id. An empty kind is replaced by KindUnknown.
func Failed(id int, latency time.Duration, kind, detail string) Outcome {
	if kind == "" {
		kind = KindUnknown
	}
	return Outcome{
		LatencyMs:   DurationMs(latency),
		ID:          id,
		ErrorKind:   kind,
		ErrorDetail: detail,
	}
}

// Valid reports whether o is either a clean success or a failure with a kind.
func (o Outcome) Valid() bool {
	if o.Success {
		return o.ErrorKind == "" && o.ErrorDetail == ""
	}
	return o.ErrorKind != "" && o.PayloadBytes == 0
}

// DurationMs converts d to fractional milliseconds.
func DurationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
