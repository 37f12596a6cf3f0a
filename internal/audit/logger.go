// Package audit writes security-relevant events (logins, session lifecycle,
// admission denials) as structured log lines tagged audit=security.
package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventAuthFailure     EventType = "auth_failure"
	EventSessionCreate   EventType = "session_create"
	EventSessionDelete   EventType = "session_delete"
	EventSessionReaped   EventType = "session_reaped"
	EventAdmissionDenied EventType = "admission_denied"
	EventHistoryDelete   EventType = "history_delete"
)

type Event struct {
	Type         EventType
	UserID       int64
	SessionToken string
	IP           string
	UserAgent    string
	Details      map[string]interface{}
}

// Log writes event through the request logger on ctx when there is one, so
// the line carries the request id, and through the global logger otherwise.
func Log(ctx context.Context, event Event) {
	e := loggerFor(ctx).Info().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now())

	if event.UserID != 0 {
		e = e.Int64("user_id", event.UserID)
	}
	if event.SessionToken != "" {
		e = e.Str("session_token", event.SessionToken)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", event.UserAgent)
	}

	for k, v := range event.Details {
		e = addField(e, k, v)
	}
	e.Msg("security audit event")
}

func loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case error:
		return e.AnErr(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = clientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return RemoteHost(r)
}

// RemoteHost is the host part of r.RemoteAddr, without the port. Behind
// chimiddleware.RealIP this is already the forwarded client address.
func RemoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
