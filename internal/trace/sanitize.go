package trace

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	maxStringLen  = 2000
	maxBinaryLen  = 1024 * 1024
	binarySampleN = 1024
)

var sensitiveKeyParts = []string{
	"password", "token", "api_key", "apikey", "secret", "auth", "credential",
	"authorization", "bearer", "private", "cookie", "jwt", "access_token",
	"refresh_token", "certificate",
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// sanitize recursively prepares data for trace storage: it redacts
// sensitive map keys, truncates long strings, and replaces binary blobs
// with a base64 payload (or a metadata-only record past the size cap).
// An unhandled type becomes a type=object record with its %T class and a
// truncated %+v repr. It never panics — a panic during sanitisation is
// recovered into a sanitization_error record rather than failing the
// request (spec §4.9).
func sanitize(data any) (result any) {
	defer func() {
		if r := recover(); r != nil {
			result = map[string]any{
				"type":  "sanitization_error",
				"error": fmt.Sprintf("%v", r),
			}
		}
	}()
	return doSanitize(data)
}

func doSanitize(data any) any {
	switch v := data.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if isSensitiveKey(k) {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = doSanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = doSanitize(item)
		}
		return out
	case string:
		return sanitizeString(v)
	case []byte:
		return sanitizeBinary(v)
	case error:
		return sanitizeString(v.Error())
	case fmt.Stringer:
		return sanitizeString(v.String())
	case bool, int, int32, int64, float32, float64, uint, uint32, uint64:
		return v
	default:
		return map[string]any{
			"type":  "object",
			"class": fmt.Sprintf("%T", data),
			"repr":  sanitizeString(fmt.Sprintf("%+v", data)),
		}
	}
}

func sanitizeString(s string) any {
	if len(s) <= maxStringLen {
		return s
	}
	return map[string]any{
		"type":              "truncated_string",
		"original_length":   len(s),
		"truncated_content": s[:maxStringLen],
	}
}

func sanitizeBinary(b []byte) any {
	if len(b) > maxBinaryLen {
		n := binarySampleN
		if n > len(b) {
			n = len(b)
		}
		return map[string]any{
			"type":        "large_binary_data",
			"size_bytes":  len(b),
			"sample_data": base64.StdEncoding.EncodeToString(b[:n]) + "...[truncated]",
		}
	}
	return map[string]any{
		"type":        "binary_data",
		"size_bytes":  len(b),
		"base64_data": base64.StdEncoding.EncodeToString(b),
	}
}

// estimateSize returns a rough byte-size estimate of v for the trace's
// total-data-size cap — cheap and approximate by design (§4.9).
func estimateSize(v any) int {
	return len(fmt.Sprintf("%+v", v))
}
