// Package ledger is the append-only registration timeline behind the
// "recent registrations" feed.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"skillforge/cmd/identity"
	"skillforge/cmd/identity/ids"
	"skillforge/cmd/internal/kv"
)

// DefaultRecentLimit is the feed size used when callers do not pick one.
const DefaultRecentLimit = 5

const recordVersion = 1

// Event records one signup. Events are never edited or removed.
type Event struct {
	ID          string        `json:"id" yaml:"id"`
	Seq         int64         `json:"seq" yaml:"seq"`
	IdentityID  string        `json:"identity_id" yaml:"identity_id"`
	DisplayName string        `json:"name" yaml:"name"`
	Email       string        `json:"email" yaml:"email"`
	Role        identity.Role `json:"role" yaml:"role"`
	OccurredAt  time.Time     `json:"occurred_at" yaml:"occurred_at"`
}

// FromIdentity builds the event for a freshly registered identity.
func FromIdentity(id identity.Identity) Event {
	return Event{
		IdentityID:  id.ID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		Role:        id.Role,
		OccurredAt:  id.CreatedAt,
	}
}

type record struct {
	Version int     `json:"version"`
	Events  []Event `json:"events"`
}

// Ledger keeps events in append order; Seq is the tie-breaker for equal
// OccurredAt values and always matches slice order.
type Ledger struct {
	st  kv.Store
	key string
	log *slog.Logger
	now func() time.Time

	mu     sync.RWMutex
	seq    int64
	events []Event
	loaded bool
}

type Option func(*Ledger)

func WithLogger(l *slog.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) {
		if now != nil {
			lg.now = now
		}
	}
}

// New constructs an empty ledger persisting under key.
func New(st kv.Store, key string, opts ...Option) (*Ledger, error) {
	if st == nil {
		return nil, identity.OpError{Op: "ledger.New", Kind: identity.ErrInvalidInput, Msg: "nil store"}
	}
	if strings.TrimSpace(key) == "" {
		return nil, identity.OpError{Op: "ledger.New", Kind: identity.ErrInvalidInput, Msg: "empty key"}
	}

	lg := &Ledger{
		st:     st,
		key:    key,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return time.Now().UTC() },
		events: make([]Event, 0, 64),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(lg)
		}
	}
	return lg, nil
}

// Load hydrates the ledger from the store. It must run before the first Append.
func (lg *Ledger) Load(ctx context.Context) error {
	const op = "ledger.Load"

	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := lg.st.Get(ctx, lg.key)
	if err != nil {
		lg.mu.Lock()
		lg.loaded = true
		lg.mu.Unlock()
		if kv.IsNotFound(err) {
			return nil
		}
		return identity.OpError{Op: op, Kind: identity.ErrPersistenceUnavailable, Msg: err.Error()}
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "corrupt registrations record: " + err.Error()}
	}
	if rec.Version != recordVersion {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: fmt.Sprintf("unsupported registrations record version %d", rec.Version)}
	}

	// Seq is authoritative for order; it is renumbered densely below.
	sort.SliceStable(rec.Events, func(i, j int) bool { return rec.Events[i].Seq < rec.Events[j].Seq })

	lg.mu.Lock()
	defer lg.mu.Unlock()

	if lg.loaded || len(lg.events) > 0 {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "already loaded"}
	}
	for i := range rec.Events {
		rec.Events[i].Seq = int64(i + 1)
	}
	lg.events = append(lg.events, rec.Events...)
	lg.seq = int64(len(lg.events))
	lg.loaded = true

	lg.log.Debug("ledger.loaded", "events", len(lg.events))
	return nil
}

// Append adds ev at the end of the timeline and returns it with ID, Seq and
// OccurredAt filled in. If the store rejects the write, the event stays
// appended in memory and the error wraps ErrPersistenceUnavailable.
func (lg *Ledger) Append(ctx context.Context, ev Event) (Event, error) {
	const op = "ledger.Append"

	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(ev.Email) == "" || !ev.Role.Valid() {
		return Event{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "event needs email and role"}
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = lg.now()
	}
	if ev.ID == "" {
		id, err := ids.NewULID(ev.OccurredAt)
		if err != nil {
			return Event{}, fmt.Errorf("%s: id: %w", op, err)
		}
		ev.ID = id
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	lg.seq++
	ev.Seq = lg.seq
	lg.events = append(lg.events, ev)

	if err := lg.persistLocked(ctx); err != nil {
		return ev, identity.OpError{Op: op, Kind: identity.ErrPersistenceUnavailable, Msg: err.Error()}
	}
	return ev, nil
}

func (lg *Ledger) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(record{Version: recordVersion, Events: lg.events})
	if err != nil {
		return err
	}
	return lg.st.Set(ctx, lg.key, raw)
}

// Recent returns up to limit events, newest first. limit <= 0 returns none.
func (lg *Ledger) Recent(limit int) []Event {
	return lg.recent(limit, func(Event) bool { return true })
}

// RecentByRole is Recent restricted to one role.
func (lg *Ledger) RecentByRole(role identity.Role, limit int) []Event {
	return lg.recent(limit, func(ev Event) bool { return ev.Role == role })
}

func (lg *Ledger) recent(limit int, keep func(Event) bool) []Event {
	if limit <= 0 {
		return []Event{}
	}

	lg.mu.RLock()
	defer lg.mu.RUnlock()

	out := make([]Event, 0, min(limit, len(lg.events)))
	for i := len(lg.events) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(lg.events[i]) {
			out = append(out, lg.events[i])
		}
	}
	return out
}

// CountByRole reports how many signups each role has had.
func (lg *Ledger) CountByRole() map[identity.Role]int {
	lg.mu.RLock()
	defer lg.mu.RUnlock()

	out := make(map[identity.Role]int, 3)
	for _, ev := range lg.events {
		out[ev.Role]++
	}
	return out
}

// Len reports the number of events appended so far.
func (lg *Ledger) Len() int {
	lg.mu.RLock()
	defer lg.mu.RUnlock()
	return len(lg.events)
}
