package logger

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"

	cstr "github.com/wagtee/go-client/string"
)

// secretKeys are metadata keys whose values never reach a log line in clear.
var secretKeys = map[string]bool{
	"authorization": true,
	"password":      true,
	"token":         true,
	"access":        true,
	"refresh":       true,
	"access_token":  true,
	"refresh_token": true,
}

// Redact returns a copy of fields with secret values masked.
func Redact(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if !secretKeys[strings.ToLower(k)] {
			out[k] = v
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = cstr.Mask(s)
		} else {
			out[k] = "[redacted]"
		}
	}
	return out
}

// TraceFields returns the trace and span id of the span in ctx, or nil when
// ctx carries no recording span context.
func TraceFields(ctx context.Context) map[string]interface{} {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return map[string]interface{}{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}
