// Package audit keeps a durable JSON-lines trail of requests served with the
// service-role client.
package audit

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileName is the trail's file inside the configured directory.
const FileName = "service_role_fallback.log"

// Entry describes one privileged action.
type Entry struct {
	Route     string
	Method    string
	Action    string
	Resource  string
	ID        string
	UserID    string
	UserEmail string
	Reason    string
}

// Logger appends entries to the trail. A nil *Logger records nothing, so
// callers need no checks.
type Logger struct {
	out zerolog.Logger
	c   io.Closer
}

// Open creates dir when needed and opens dir/FileName for appending.
func Open(dir, env string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, err
	}
	return New(f, env), nil
}

// New writes the trail to w. w is closed by Close when it is an io.Closer.
func New(w io.Writer, env string) *Logger {
	l := &Logger{
		out: zerolog.New(zerolog.SyncWriter(w)).With().Timestamp().Str("env", env).Logger(),
	}
	if c, ok := w.(io.Closer); ok {
		l.c = c
	}
	return l
}

// Record writes e to the trail and echoes it on the request logger.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	ev := l.out.Log().
		Str("route", e.Route).
		Str("method", e.Method).
		Str("action", e.Action).
		Str("reason", e.Reason)
	if e.Resource != "" {
		ev = ev.Str("resource", e.Resource)
	}
	if e.ID != "" {
		ev = ev.Str("id", e.ID)
	}
	if e.UserID != "" || e.UserEmail != "" {
		ev = ev.Dict("user", zerolog.Dict().Str("id", e.UserID).Str("email", e.UserEmail))
	}
	ev.Send()

	log.Ctx(ctx).Warn().Str("route", e.Route).Str("action", e.Action).Str("reason", e.Reason).Msg("audit")
}

func (l *Logger) Close() error {
	if l == nil || l.c == nil {
		return nil
	}
	return l.c.Close()
}
