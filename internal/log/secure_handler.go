package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue replaces redacted secrets.
const MaskValue = "***REDACTED***"

// secretKeyWords mark an attribute whose whole value is a secret when its
// key contains one of them. "key" and "token" are missing on purpose:
// "regKeyEvent/..." and the "token" attribute are rule vocabulary.
var secretKeyWords = []string{
	"password", "passwd", "secret", "authoriz", "credential",
	"cookie", "private", "api_key", "apikey", "session",
}

// redaction masks the secret part of a value. Text matched by the
// submatches named "keep" and "tail" survives, so a command line keeps its
// executable and arguments and only the credential disappears.
type redaction struct {
	pattern *regexp.Regexp
}

func newRedaction(expr string) redaction {
	return redaction{pattern: regexp.MustCompile(expr)}
}

func (r redaction) apply(s string) string {
	keep := r.pattern.SubexpIndex("keep")
	tail := r.pattern.SubexpIndex("tail")
	return r.pattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := r.pattern.FindStringSubmatch(m)
		var sb strings.Builder
		if keep > 0 {
			sb.WriteString(sub[keep])
		}
		sb.WriteString(MaskValue)
		if tail > 0 {
			sb.WriteString(sub[tail])
		}
		return sb.String()
	})
}

// redactions cover the credentials that show up in processCmdLine,
// httpHeader and registry values of rules.
var redactions = []redaction{
	// password=..., pwd:..., -p:... style arguments
	newRedaction(`(?i)(?P<keep>\b(?:password|passwd|pwd|pass)\s*[=:]\s*)[^\s"']+`),
	// net use \\host\share <password> /user:name
	newRedaction(`(?i)(?P<keep>\bnet(?:\.exe)?\s+use\s+\\\\\S+\s+)[^\s/]+(?P<tail>\s+/user:)`),
	// Authorization headers
	newRedaction(`(?i)(?P<keep>\b(?:bearer|basic|digest|ntlm|negotiate)\s+)[A-Za-z0-9._~+/=-]{4,}`),
	// Cookie headers
	newRedaction(`(?i)(?P<keep>\b(?:set-)?cookie\s*:\s*)[^\r\n]+`),
	// user:password@host in URLs
	newRedaction(`(?i)(?P<keep>\b[a-z][a-z0-9+.-]*://[^/\s:@]+:)[^@\s/]+(?P<tail>@)`),
	// JWTs
	newRedaction(`eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`),
	// AWS access key IDs
	newRedaction(`\bAKIA[0-9A-Z]{16}\b`),
	// PEM private keys, with or without their body
	newRedaction(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?(?:-----END [A-Z ]*PRIVATE KEY-----|$)`),
}

// Redact returns s with every recognized credential replaced by MaskValue.
// Hashes, addresses and paths are indicators and pass through unchanged.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.apply(s)
	}
	return s
}

// isSecretKey reports whether an attribute key names a secret.
func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, w := range secretKeyWords {
		if strings.Contains(key, w) {
			return true
		}
	}
	return false
}

// SecureHandler wraps an slog.Handler and redacts credentials from
// attribute values before they are written.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(redacted)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// redactAttr masks a whole attribute whose key names a secret and redacts
// credentials inside string, Stringer and error values.
func redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		group := v.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSecretKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	var text string
	switch v.Kind() {
	case slog.KindString:
		text = v.String()
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			text = x.Error()
		case interface{ String() string }:
			text = x.String()
		default:
			return a
		}
	default:
		return a
	}

	if redacted := Redact(text); redacted != text {
		return slog.String(a.Key, redacted)
	}
	return a
}

// NewSecureLogger returns a text logger that redacts credentials.
// verbose enables Debug; otherwise only warnings and errors are written.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
