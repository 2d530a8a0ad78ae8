// Package audit keeps an append-only record of privileged actions. Writes
// are best-effort: a failed append degrades to a diagnostic log line and
// never fails or blocks the business operation it accompanies.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"sentra.dev/internal/ids"
	"sentra.dev/internal/obs"
)

// Entry is one immutable audit record. Details should be enough to
// reconstruct what changed (e.g. the list of changed field names), not
// necessarily full before/after values.
type Entry struct {
	ID           string         `json:"id"`
	ActorUserID  string         `json:"actor_user_id"`
	ActorEmail   string         `json:"actor_email"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Filter narrows a query. Zero values mean "any".
type Filter struct {
	ActorID      string
	Action       string
	ResourceType string
	Start        time.Time
	End          time.Time
	Limit        int
	Offset       int
}

// Store is the durable backend.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Query(ctx context.Context, f Filter) ([]Entry, error)
}

// Logger owns the best-effort policy so call sites do not re-implement it.
type Logger struct {
	store Store
	now   func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(l *Logger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLogger constructs a Logger. A nil store is tolerated: every entry then
// goes to the diagnostic log.
func NewLogger(store Store, opts ...Option) *Logger {
	l := &Logger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one entry, filling in id and timestamp. On any store
// failure it emits a single diagnostic line and returns normally.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if strings.TrimSpace(e.Action) == "" {
		return
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now().UTC()
	}
	if l.store != nil {
		if err := l.store.Append(ctx, &e); err == nil {
			return
		}
	}
	l.fallback(e)
}

func (l *Logger) fallback(e Entry) {
	obs.CountAuditFallback()
	line := map[string]any{
		"ts":    l.now().UTC().Format(time.RFC3339Nano),
		"level": "warn",
		"type":  "audit",
		"msg":   "audit store unavailable, entry logged locally",
		"entry": e,
	}
	data, err := json.Marshal(line)
	if err != nil {
		obs.Logger().Println(`{"level":"error","type":"audit","msg":"audit entry not serializable"}`)
		return
	}
	obs.Logger().Println(string(data))
}

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// Query returns entries newest first. Unlike Record, reads surface their
// errors: an audit review must not silently see a partial picture.
func (l *Logger) Query(ctx context.Context, f Filter) ([]Entry, error) {
	if l.store == nil {
		return nil, ErrStoreUnavailable
	}
	if f.Limit <= 0 {
		f.Limit = defaultQueryLimit
	}
	if f.Limit > maxQueryLimit {
		f.Limit = maxQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return l.store.Query(ctx, f)
}
