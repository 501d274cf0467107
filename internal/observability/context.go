package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

type contextKey int

const (
	traceIDKey contextKey = iota
	spanIDKey
	requestIDKey
	operationKey
	providerKey
	modelKey

	numKeys
)

// fieldNames are the log field names of the context keys, in key order.
//
//nolint:gochecknoglobals // read-only lookup table
var fieldNames = [numKeys]string{"trace_id", "span_id", "request_id", "operation", "provider", "model"}

const (
	traceIDBytes = 16 // OpenTelemetry trace ID size in bytes
	spanIDBytes  = 8  // OpenTelemetry span ID size in bytes
)

// with stores v under key. Empty values leave ctx untouched so a caller that
// does not know the provider yet cannot erase one set further up.
func with(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func get(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithTraceID injects trace ID into context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, traceIDKey, traceID)
}

// WithSpanID injects span ID into context.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return with(ctx, spanIDKey, spanID)
}

// WithRequestID injects request ID into context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

// WithProvider tags the context with the provider discriminator.
func WithProvider(ctx context.Context, provider string) context.Context {
	return with(ctx, providerKey, provider)
}

// WithModel tags the context with the resolved model id.
func WithModel(ctx context.Context, model string) context.Context {
	return with(ctx, modelKey, model)
}

// WithCall tags the context with one dispatched call: the gateway operation
// (chat, embedding, imagine, task, change), its provider and its model.
func WithCall(ctx context.Context, operation, provider, model string) context.Context {
	ctx = with(ctx, operationKey, operation)
	ctx = with(ctx, providerKey, provider)
	return with(ctx, modelKey, model)
}

// GetTraceID extracts trace ID from context.
func GetTraceID(ctx context.Context) string { return get(ctx, traceIDKey) }

// GetSpanID extracts span ID from context.
func GetSpanID(ctx context.Context) string { return get(ctx, spanIDKey) }

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string { return get(ctx, requestIDKey) }

// GetOperation returns the gateway operation of the call in ctx.
func GetOperation(ctx context.Context) string { return get(ctx, operationKey) }

// GetProvider returns the provider discriminator of the call in ctx.
func GetProvider(ctx context.Context) string { return get(ctx, providerKey) }

// GetModel returns the model of the call in ctx.
func GetModel(ctx context.Context) string { return get(ctx, modelKey) }

// GenerateTraceID generates an OpenTelemetry-compatible trace ID (32 hex chars).
func GenerateTraceID() string {
	bytes := make([]byte, traceIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(bytes)
}

// GenerateSpanID generates an OpenTelemetry-compatible span ID (16 hex chars).
func GenerateSpanID() string {
	bytes := make([]byte, spanIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return uuid.New().String()[:16]
	}
	return hex.EncodeToString(bytes)
}

// GenerateRequestID generates a unique request identifier (UUID).
func GenerateRequestID() string {
	return uuid.New().String()
}
