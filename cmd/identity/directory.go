package identity

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"skillforge/cmd/identity/ids"
	"skillforge/cmd/internal/kv"
)

const usersRecordVersion = 1

// usersRecord is the durable form of the dynamically registered identities.
// Seed identities are never persisted; they are rebuilt on every start.
type usersRecord struct {
	Version    int        `json:"version"`
	Identities []Identity `json:"identities"`
}

// RegisterInput describes a new identity. Secret is the raw secret; Directory
// seals it with its SecretScheme.
type RegisterInput struct {
	DisplayName string
	Email       string
	Role        Role
	Secret      string
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Role   Role
	Search string
}

// Directory is the credential store: seed plus dynamically registered identities.
//
// Email uniqueness is enforced on the normalized form. Verify is keyed by the
// pair (normalized email, role): a correct email and secret under the wrong
// role does not authenticate.
//
// All state is guarded by one mutex; persistence of the dynamic set happens in
// the same critical section as the mutation it records.
//
// Seed secrets are held as given and sealed on their first successful
// Verify, so a process start never pays the scheme's cost for them.
type Directory struct {
	st     kv.Store
	key    string
	log    *slog.Logger
	scheme SecretScheme
	now    func() time.Time
	newID  func(time.Time) (string, error)

	mu      sync.RWMutex
	all     []Identity // creation order, seeds first
	seeds   int
	byEmail map[string]int
	byCred  map[credentialKey]int
	byID    map[string]int
	seeded  bool
	loaded  bool

	// dummy keeps Verify's cost the same whether or not the email exists.
	// It is sealed on first use.
	dummyOnce sync.Once
	dummy     string
}

// Option configures a Directory.
type Option func(*Directory)

func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.log = l
		}
	}
}

func WithScheme(s SecretScheme) Option {
	return func(d *Directory) {
		if s != nil {
			d.scheme = s
		}
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDirectory builds an empty directory persisting its dynamic set under key.
func NewDirectory(st kv.Store, key string, opts ...Option) (*Directory, error) {
	const op = "identity.NewDirectory"

	if st == nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if strings.TrimSpace(key) == "" {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty key"}
	}

	d := &Directory{
		st:      st,
		key:     key,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		scheme:  PlaintextScheme{},
		now:     func() time.Time { return time.Now().UTC() },
		newID:   ids.NewULID,
		byEmail: make(map[string]int),
		byCred:  make(map[credentialKey]int),
		byID:    make(map[string]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

const dummySecret = "skillforge-no-such-identity"

func (d *Directory) dummySealed() string {
	d.dummyOnce.Do(func() {
		sealed, err := d.scheme.Seal(dummySecret)
		if err != nil {
			d.log.Warn("identity.dummy.seal_failed", "err", err)
			sealed = dummySecret
		}
		d.dummy = sealed
	})
	return d.dummy
}

// Scheme returns the configured secret scheme.
func (d *Directory) Scheme() SecretScheme { return d.scheme }

// Seed installs the bootstrap identities. It must be called once, before Load
// and Register. Any collision inside the seed set is an error.
func (d *Directory) Seed(ctx context.Context, seed []Identity) error {
	const op = "identity.Seed"

	if err := ctx.Err(); err != nil {
		return err
	}

	prepared := make([]Identity, 0, len(seed))
	emails := make(map[string]struct{}, len(seed))
	idset := make(map[string]struct{}, len(seed))
	now := d.now()

	for i, in := range seed {
		id, err := d.prepare(op, in, now, false)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		if _, dup := emails[id.EmailNorm]; dup {
			return fmt.Errorf("seed[%d]: %w", i, ConflictError{Op: op, Field: "email"})
		}
		if _, dup := idset[id.ID]; dup {
			return fmt.Errorf("seed[%d]: %w", i, ConflictError{Op: op, Field: "id"})
		}
		emails[id.EmailNorm] = struct{}{}
		idset[id.ID] = struct{}{}
		prepared = append(prepared, id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seeded || len(d.all) > 0 {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "directory already populated"}
	}
	for _, id := range prepared {
		d.insertLocked(id)
	}
	d.seeds = len(prepared)
	d.seeded = true
	return nil
}

// prepare normalizes one seed or persisted identity. With seal set, a secret
// the scheme does not recognise is sealed now.
func (d *Directory) prepare(op string, in Identity, now time.Time, seal bool) (Identity, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.Email == "" {
		return Identity{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
	}
	role, err := ParseRole(string(in.Role))
	if err != nil {
		return Identity{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid role for " + in.Email}
	}
	in.Role = role
	in.EmailNorm = NormalizeEmail(in.Email)

	if in.ID == "" {
		if in.ID, err = d.newID(now); err != nil {
			return Identity{}, err
		}
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	if in.Secret == "" {
		return Identity{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty secret for " + in.Email}
	}
	// Seed files may carry secrets already sealed by the active scheme.
	if seal && !d.scheme.Sealed(in.Secret) {
		if in.Secret, err = d.scheme.Seal(in.Secret); err != nil {
			return Identity{}, fmt.Errorf("%s: seal: %w", op, err)
		}
	}
	return in, nil
}

// Load hydrates the dynamic set from the store. A missing record is not an
// error. Persisted identities that collide with a seed are skipped.
func (d *Directory) Load(ctx context.Context) error {
	const op = "identity.Load"

	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := d.st.Get(ctx, d.key)
	if err != nil {
		if kv.IsNotFound(err) {
			d.markLoaded()
			return nil
		}
		d.markLoaded()
		return persistenceError(op, err)
	}

	var rec usersRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "corrupt users record: " + err.Error()}
	}
	if rec.Version != usersRecordVersion {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: fmt.Sprintf("unsupported users record version %d", rec.Version)}
	}

	now := d.now()
	prepared := make([]Identity, 0, len(rec.Identities))
	for _, in := range rec.Identities {
		id, err := d.prepare(op, in, now, true)
		if err != nil {
			d.log.Warn("identity.load.skip", "err", err)
			continue
		}
		prepared = append(prepared, id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "already loaded"}
	}
	for _, id := range prepared {
		if _, dup := d.byEmail[id.EmailNorm]; dup {
			d.log.Warn("identity.load.skip", "reason", "email_collision", "id", id.ID)
			continue
		}
		if _, dup := d.byID[id.ID]; dup {
			d.log.Warn("identity.load.skip", "reason", "id_collision", "id", id.ID)
			continue
		}
		d.insertLocked(id)
	}
	d.loaded = true
	return nil
}

func (d *Directory) markLoaded() {
	d.mu.Lock()
	d.loaded = true
	d.mu.Unlock()
}

// Register adds a new identity. The uniqueness check and the insert are one
// critical section. When the in-memory insert succeeds but the store cannot
// persist it, the new identity is returned together with an error wrapping
// ErrPersistenceUnavailable.
func (d *Directory) Register(ctx context.Context, in RegisterInput) (Identity, error) {
	const op = "identity.Register"

	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	name := strings.TrimSpace(in.DisplayName)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" || in.Secret == "" {
		return Identity{}, OpError{Op: op, Kind: ErrMissingFields}
	}
	if !in.Role.Valid() {
		return Identity{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid role"}
	}

	norm := NormalizeEmail(email)

	// Cheap pre-check so a duplicate never pays for sealing.
	d.mu.RLock()
	_, exists := d.byEmail[norm]
	d.mu.RUnlock()
	if exists {
		return Identity{}, ConflictError{Op: op, Field: "email"}
	}

	sealed, err := d.scheme.Seal(in.Secret)
	if err != nil {
		return Identity{}, fmt.Errorf("%s: seal: %w", op, err)
	}

	now := d.now()
	id, err := d.newID(now)
	if err != nil {
		return Identity{}, fmt.Errorf("%s: id: %w", op, err)
	}

	out := Identity{
		ID:          id,
		DisplayName: name,
		Email:       email,
		EmailNorm:   norm,
		Role:        in.Role,
		Secret:      sealed,
		CreatedAt:   now,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.byEmail[norm]; dup {
		return Identity{}, ConflictError{Op: op, Field: "email"}
	}
	if _, dup := d.byID[id]; dup {
		return Identity{}, ConflictError{Op: op, Field: "id"}
	}
	d.insertLocked(out)

	if err := d.persistLocked(ctx); err != nil {
		return out.public(), persistenceError(op, err)
	}
	return out.public(), nil
}

func (d *Directory) insertLocked(id Identity) {
	idx := len(d.all)
	d.all = append(d.all, id)
	d.byEmail[id.EmailNorm] = idx
	d.byCred[id.credentialKey()] = idx
	d.byID[id.ID] = idx
}

func (d *Directory) persistLocked(ctx context.Context) error {
	rec := usersRecord{
		Version:    usersRecordVersion,
		Identities: append([]Identity(nil), d.all[d.seeds:]...),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return d.st.Set(ctx, d.key, raw)
}

// Verify returns the identity registered under (email, role) whose secret
// matches. It gives no hint about which of the three did not match.
func (d *Directory) Verify(ctx context.Context, email, secret string, role Role) (Identity, bool) {
	if ctx.Err() != nil {
		return Identity{}, false
	}

	key := credentialKey{emailNorm: NormalizeEmail(email), role: role}

	d.mu.RLock()
	idx, ok := d.byCred[key]
	var found Identity
	if ok {
		found = d.all[idx]
	}
	d.mu.RUnlock()

	if !ok {
		_ = d.scheme.Match(d.dummySealed(), secret)
		return Identity{}, false
	}
	if secret == "" {
		return Identity{}, false
	}
	if d.scheme.Sealed(found.Secret) {
		if !d.scheme.Match(found.Secret, secret) {
			return Identity{}, false
		}
		return found.public(), true
	}

	// Unsealed seed secret.
	if subtle.ConstantTimeCompare([]byte(found.Secret), []byte(secret)) != 1 {
		_ = d.scheme.Match(d.dummySealed(), secret)
		return Identity{}, false
	}
	d.sealSeed(idx, found.ID, found.Secret)
	return found.public(), true
}

// sealSeed replaces the raw secret at idx with its sealed form, unless it
// changed in the meantime.
func (d *Directory) sealSeed(idx int, id, raw string) {
	sealed, err := d.scheme.Seal(raw)
	if err != nil {
		d.log.Warn("identity.seed.seal_failed", "id", id, "err", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.all[idx].Secret == raw {
		d.all[idx].Secret = sealed
	}
}

// FindByEmail is a case-insensitive lookup for management views.
func (d *Directory) FindByEmail(email string) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, ok := d.byEmail[NormalizeEmail(email)]
	if !ok {
		return Identity{}, false
	}
	return d.all[idx].public(), true
}

func (d *Directory) FindByID(id string) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, ok := d.byID[id]
	if !ok {
		return Identity{}, false
	}
	return d.all[idx].public(), true
}

// Get is FindByID with a typed not-found error.
func (d *Directory) Get(id string) (Identity, error) {
	out, ok := d.FindByID(id)
	if !ok {
		return Identity{}, NotFoundError{Op: "identity.Get", Resource: "identity"}
	}
	return out, nil
}

// List returns identities in creation order, filtered by role and by a
// case-insensitive substring of name or email.
func (d *Directory) List(f ListFilter) []Identity {
	search := normalizeSearch(f.Search)

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Identity, 0, len(d.all))
	for _, id := range d.all {
		if f.Role != "" && id.Role != f.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(id.EmailNorm, search) &&
			!strings.Contains(normalizeSearch(id.DisplayName), search) {
			continue
		}
		out = append(out, id.public())
	}
	return out
}

// Len reports how many identities are held (seed plus dynamic).
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.all)
}
