package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeyPatterns lists substrings that indicate a log attribute key holds a secret value.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"private_key",
	"api_key",
	"auth_token",
	"credential",
	"authorization",
}

// bearerPattern matches an Authorization header value.
var bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._\-]+`)

// ethPrivateKeyPattern matches Ethereum-style private keys (0x followed by 64 hex chars).
// Transaction hashes share this shape, so keys named *_hash are exempt below.
var ethPrivateKeyPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]{64}\b`)

// bareKeyPattern matches a 64 hex char secret without prefix, as DAG wallets use.
var bareKeyPattern = regexp.MustCompile(`\b[0-9a-fA-F]{64}\b`)

// RedactingHandler wraps an slog.Handler and redacts sensitive values before they
// are passed to the inner handler.
type RedactingHandler struct {
	inner slog.Handler
}

// NewRedactingHandler creates a RedactingHandler that wraps the given inner handler.
func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	if rh, ok := inner.(*RedactingHandler); ok {
		return rh
	}
	return &RedactingHandler{inner: inner}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle redacts sensitive attribute values and forwards the record to the inner handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	var redacted []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		redacted = append(redacted, redactAttr(a))
		return true
	})

	newRecord := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	newRecord.AddAttrs(redacted...)

	return h.inner.Handle(ctx, newRecord)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(redacted)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

// redactAttr returns a copy of the attribute with its value redacted if necessary.
func redactAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)

	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(key, pattern) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}

	// Hashes and ids are public and must stay greppable
	if strings.HasSuffix(key, "hash") || strings.HasSuffix(key, "_id") || key == "address" {
		return a
	}

	val := a.Value.String()
	if redacted := redactString(val); redacted != val {
		return slog.String(a.Key, redacted)
	}
	return a
}

// redactString scans a string value and replaces known secret patterns.
func redactString(val string) string {
	val = bearerPattern.ReplaceAllString(val, "Bearer [REDACTED]")

	val = ethPrivateKeyPattern.ReplaceAllStringFunc(val, func(match string) string {
		return match[:6] + "..." + match[len(match)-4:]
	})

	val = bareKeyPattern.ReplaceAllStringFunc(val, func(match string) string {
		return match[:4] + "...[REDACTED]"
	})

	return val
}
