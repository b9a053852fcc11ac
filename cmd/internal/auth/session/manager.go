package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"skillforge/cmd/identity"
	"skillforge/cmd/internal/kv"
)

const recordVersion = 1

// Session is the signed-in principal. ID is an opaque handle for log
// correlation; it carries no authority.
type Session struct {
	ID         string        `json:"id" yaml:"id"`
	IdentityID string        `json:"identity_id" yaml:"identity_id"`
	Role       identity.Role `json:"role" yaml:"role"`
	IssuedAt   time.Time     `json:"issued_at" yaml:"issued_at"`
}

type record struct {
	Version int     `json:"version"`
	Session Session `json:"session"`
}

// Manager owns the single active session.
type Manager struct {
	st  kv.Store
	key string
	log *slog.Logger
	now func() time.Time

	mu       sync.Mutex
	cur      *Session
	hydrated bool
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a Manager persisting under key. Nothing is read until
// the first Current.
func NewManager(st kv.Store, key string, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, identity.OpError{Op: "session.NewManager", Kind: identity.ErrInvalidInput, Msg: "nil store"}
	}
	if strings.TrimSpace(key) == "" {
		return nil, identity.OpError{Op: "session.NewManager", Kind: identity.ErrInvalidInput, Msg: "empty key"}
	}

	m := &Manager{
		st:  st,
		key: key,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Establish replaces the active session with one for id. The returned
// session is active even when the error wraps ErrPersistenceUnavailable.
func (m *Manager) Establish(ctx context.Context, id identity.Identity) (Session, error) {
	const op = "session.Establish"

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if id.ID == "" || !id.Role.Valid() {
		return Session{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "identity without id or role"}
	}

	s := Session{
		ID:         uuid.NewString(),
		IdentityID: id.ID,
		Role:       id.Role,
		IssuedAt:   m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cur = &s
	m.hydrated = true

	raw, err := json.Marshal(record{Version: recordVersion, Session: s})
	if err != nil {
		return s, err
	}
	if err := m.st.Set(ctx, m.key, raw); err != nil {
		return s, identity.OpError{Op: op, Kind: identity.ErrPersistenceUnavailable, Msg: err.Error()}
	}
	return s, nil
}

// Current returns the active session, reading the store only on the first
// call after start. ErrNoSession means nobody is signed in; when the store
// could not be read the error also wraps ErrPersistenceUnavailable.
func (m *Manager) Current(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hydrated {
		if err := m.hydrateLocked(ctx); err != nil {
			return Session{}, err
		}
	}
	if m.cur == nil {
		return Session{}, ErrNoSession
	}
	return *m.cur, nil
}

func (m *Manager) hydrateLocked(ctx context.Context) error {
	const op = "session.Current"

	if err := ctx.Err(); err != nil {
		return err
	}
	m.hydrated = true

	raw, err := m.st.Get(ctx, m.key)
	if err != nil {
		if kv.IsNotFound(err) {
			return nil
		}
		return errors.Join(ErrNoSession, identity.OpError{Op: op, Kind: identity.ErrPersistenceUnavailable, Msg: err.Error()})
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Version != recordVersion {
		m.log.Warn("session.hydrate.ignored", "reason", "unreadable record")
		return nil
	}
	if rec.Session.IdentityID == "" || !rec.Session.Role.Valid() {
		m.log.Warn("session.hydrate.ignored", "reason", "incomplete record")
		return nil
	}

	s := rec.Session
	m.cur = &s
	m.log.Debug("session.hydrated", "session_id", s.ID, "role", s.Role)
	return nil
}

// Clear signs out. Memory is always cleared; a failed delete of the durable
// record is reported as ErrPersistenceUnavailable.
func (m *Manager) Clear(ctx context.Context) error {
	const op = "session.Clear"

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cur = nil
	m.hydrated = true

	if err := m.st.Delete(ctx, m.key); err != nil {
		return identity.OpError{Op: op, Kind: identity.ErrPersistenceUnavailable, Msg: err.Error()}
	}
	return nil
}
