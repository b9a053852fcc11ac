package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"skillforge/cmd/internal/kv"
	"skillforge/cmd/internal/kv/kvtest"
	"skillforge/cmd/security/password"
)

const usersKey = "skillforge_users"

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newSeeded(t *testing.T, st kv.Store, opts ...Option) *Directory {
	t.Helper()

	d, err := NewDirectory(st, usersKey, append([]Option{WithLogger(discardLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if err := d.Seed(context.Background(), DefaultSeed()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return d
}

func TestDirectory_VerifyIsKeyedByEmailAndRole(t *testing.T) {
	t.Parallel()

	d := newSeeded(t, kv.NewMemory())
	ctx := context.Background()

	cases := []struct {
		name   string
		email  string
		secret string
		role   Role
		ok     bool
	}{
		{"exact", "admin@skillforge.com", "admin123", RoleAdmin, true},
		{"email casing", "  ADMIN@SkillForge.com ", "admin123", RoleAdmin, true},
		{"wrong role", "admin@skillforge.com", "admin123", RoleTeacher, false},
		{"wrong secret", "admin@skillforge.com", "admin124", RoleAdmin, false},
		{"secret casing", "admin@skillforge.com", "ADMIN123", RoleAdmin, false},
		{"unknown email", "ghost@skillforge.com", "admin123", RoleAdmin, false},
		{"empty secret", "admin@skillforge.com", "", RoleAdmin, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := d.Verify(ctx, tc.email, tc.secret, tc.role)
			if ok != tc.ok {
				t.Fatalf("Verify ok=%v, want %v", ok, tc.ok)
			}
			if ok {
				if got.ID != "1" || got.Role != RoleAdmin {
					t.Fatalf("unexpected identity: %+v", got)
				}
				if got.Secret != "" {
					t.Fatalf("Verify must not hand out the stored secret")
				}
			}
		})
	}
}

func TestDirectory_SeedRejectsCollisions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		seed  []Identity
		check func(error) bool
	}{
		{
			name: "email differs only by case",
			seed: []Identity{
				{DisplayName: "A", Email: "A@x.com", Role: RoleAdmin, Secret: "secret1"},
				{DisplayName: "B", Email: "a@X.com", Role: RoleStudent, Secret: "secret2"},
			},
			check: func(err error) bool { return errors.Is(err, ErrEmailAlreadyRegistered) },
		},
		{
			name: "duplicate id",
			seed: []Identity{
				{ID: "1", DisplayName: "A", Email: "a@x.com", Role: RoleAdmin, Secret: "secret1"},
				{ID: "1", DisplayName: "B", Email: "b@x.com", Role: RoleStudent, Secret: "secret2"},
			},
			check: IsConflict,
		},
		{
			name:  "unknown role",
			seed:  []Identity{{DisplayName: "A", Email: "a@x.com", Role: "root", Secret: "secret1"}},
			check: IsInvalidInput,
		},
		{
			name:  "empty email",
			seed:  []Identity{{DisplayName: "A", Role: RoleAdmin, Secret: "secret1"}},
			check: IsInvalidInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d, err := NewDirectory(kv.NewMemory(), usersKey)
			if err != nil {
				t.Fatalf("NewDirectory: %v", err)
			}
			err = d.Seed(context.Background(), tc.seed)
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected seed error: %v", err)
			}
			if d.Len() != 0 {
				t.Fatalf("failed seed must not install anything, have %d", d.Len())
			}
		})
	}
}

func TestDirectory_SeedTwice(t *testing.T) {
	t.Parallel()

	d := newSeeded(t, kv.NewMemory())
	if err := d.Seed(context.Background(), DefaultSeed()); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input on second seed, got %v", err)
	}
}

func TestDirectory_RegisterRejectsCaseInsensitiveDuplicate(t *testing.T) {
	t.Parallel()

	d := newSeeded(t, kv.NewMemory())
	ctx := context.Background()

	first, err := d.Register(ctx, RegisterInput{DisplayName: "Ann", Email: "A@x.com", Role: RoleStudent, Secret: "abc123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if first.ID == "" || first.Email != "A@x.com" || first.EmailNorm != "a@x.com" {
		t.Fatalf("unexpected identity: %+v", first)
	}

	_, err = d.Register(ctx, RegisterInput{DisplayName: "Ann 2", Email: "a@X.com", Role: RoleTeacher, Secret: "abc123"})
	if !errors.Is(err, ErrEmailAlreadyRegistered) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}

	// Seed emails count too.
	_, err = d.Register(ctx, RegisterInput{DisplayName: "Imposter", Email: "Teacher@SkillForge.com", Role: RoleTeacher, Secret: "abc123"})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered for seed email, got %v", err)
	}
}

func TestDirectory_RegisterRejectsIncompleteInput(t *testing.T) {
	t.Parallel()

	d := newSeeded(t, kv.NewMemory())
	ctx := context.Background()

	if _, err := d.Register(ctx, RegisterInput{Email: "x@x.com", Role: RoleStudent, Secret: "abc123"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if _, err := d.Register(ctx, RegisterInput{DisplayName: "X", Email: "x@x.com", Role: "owner", Secret: "abc123"}); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input for bad role, got %v", err)
	}
}

func TestDirectory_ConcurrentRegisterSameEmail(t *testing.T) {
	t.Parallel()

	d := newSeeded(t, kv.NewMemory())

	const n = 32
	var wins, conflicts atomic.Int64
	var g errgroup.Group
	for i := 0; i < n; i++ {
		email := "race@x.com"
		if i%2 == 1 {
			email = "RACE@X.COM"
		}
		g.Go(func() error {
			_, err := d.Register(context.Background(), RegisterInput{
				DisplayName: fmt.Sprintf("racer %d", i),
				Email:       email,
				Role:        RoleStudent,
				Secret:      "abc123",
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrEmailAlreadyRegistered):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wins.Load() != 1 || conflicts.Load() != n-1 {
		t.Fatalf("wins=%d conflicts=%d", wins.Load(), conflicts.Load())
	}
	if got := len(d.List(ListFilter{Search: "race@x.com"})); got != 1 {
		t.Fatalf("expected one stored identity, got %d", got)
	}
}

func TestDirectory_PersistsDynamicSetOnly(t *testing.T) {
	t.Parallel()

	st := kv.NewMemory()
	ctx := context.Background()

	d := newSeeded(t, st)
	created, err := d.Register(ctx, RegisterInput{DisplayName: "Nora", Email: "nora@x.com", Role: RoleTeacher, Secret: "nora123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	raw, err := st.Get(ctx, usersKey)
	if err != nil {
		t.Fatalf("users record missing: %v", err)
	}
	var rec usersRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Version != usersRecordVersion || len(rec.Identities) != 1 || rec.Identities[0].ID != created.ID {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Restart over the same store.
	d2 := newSeeded(t, st)
	if d2.Len() != len(DefaultSeed())+1 {
		t.Fatalf("expected seed plus one, got %d", d2.Len())
	}
	got, ok := d2.Verify(ctx, "NORA@x.com", "nora123", RoleTeacher)
	if !ok || got.ID != created.ID {
		t.Fatalf("restored identity does not verify: ok=%v id=%q", ok, got.ID)
	}
}

func TestDirectory_LoadSkipsSeedCollisions(t *testing.T) {
	t.Parallel()

	st := kv.NewMemory()
	ctx := context.Background()

	rec := usersRecord{Version: usersRecordVersion, Identities: []Identity{
		{ID: "x1", DisplayName: "Fake Admin", Email: "Admin@skillforge.com", Role: RoleAdmin, Secret: "pwned1"},
		{ID: "x2", DisplayName: "Kept", Email: "kept@x.com", Role: RoleStudent, Secret: "kept123"},
	}}
	raw, _ := json.Marshal(rec)
	if err := st.Set(ctx, usersKey, raw); err != nil {
		t.Fatalf("Set: %v", err)
	}

	d := newSeeded(t, st)
	if d.Len() != len(DefaultSeed())+1 {
		t.Fatalf("expected collision to be skipped, len=%d", d.Len())
	}
	if _, ok := d.Verify(ctx, "admin@skillforge.com", "pwned1", RoleAdmin); ok {
		t.Fatalf("persisted record must not shadow a seed identity")
	}
	if _, ok := d.FindByID("x2"); !ok {
		t.Fatalf("non-colliding identity should load")
	}
}

func TestDirectory_LoadRejectsCorruptRecord(t *testing.T) {
	t.Parallel()

	st := kv.NewMemory()
	ctx := context.Background()
	_ = st.Set(ctx, usersKey, []byte("{not json"))

	d, err := NewDirectory(st, usersKey)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if err := d.Load(ctx); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDirectory_RegisterKeepsIdentityWhenPersistenceFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kvtest.NewFailing()
	guard := kv.NewGuard(backend, discardLogger())
	d := newSeeded(t, guard)

	backend.Broken.Store(true)
	created, err := d.Register(ctx, RegisterInput{DisplayName: "Off Line", Email: "offline@x.com", Role: RoleStudent, Secret: "abc123"})
	if !IsPersistenceUnavailable(err) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
	if created.ID == "" {
		t.Fatalf("identity should still be returned")
	}
	if _, ok := d.Verify(ctx, "offline@x.com", "abc123", RoleStudent); !ok {
		t.Fatalf("in-memory identity must remain usable")
	}
}

func TestDirectory_LoadReportsUnavailableStore(t *testing.T) {
	t.Parallel()

	guard := kv.NewGuard(kvtest.NewBroken(), discardLogger())
	d, err := NewDirectory(guard, usersKey)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if err := d.Seed(context.Background(), DefaultSeed()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := d.Load(context.Background()); !IsPersistenceUnavailable(err) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
	if _, ok := d.Verify(context.Background(), "student@skillforge.com", "student123", RoleStudent); !ok {
		t.Fatalf("seeds must work without persistence")
	}
}

func TestDirectory_ListFiltersAndSearches(t *testing.T) {
	t.Parallel()

	d := newSeeded(t, kv.NewMemory())

	teachers := d.List(ListFilter{Role: RoleTeacher})
	if len(teachers) != 4 {
		t.Fatalf("expected 4 teachers, got %d", len(teachers))
	}
	for i := 1; i < len(teachers); i++ {
		if teachers[i-1].ID > teachers[i].ID {
			t.Fatalf("List must keep creation order: %q before %q", teachers[i-1].ID, teachers[i].ID)
		}
	}

	hits := d.List(ListFilter{Search: "CHEN"})
	if len(hits) != 1 || hits[0].Email != "michael@skillforge.com" {
		t.Fatalf("unexpected search hits: %+v", hits)
	}

	if hits := d.List(ListFilter{Role: RoleStudent, Search: "sarah"}); len(hits) != 0 {
		t.Fatalf("role filter must apply with search, got %+v", hits)
	}

	for _, id := range d.List(ListFilter{}) {
		if id.Secret != "" {
			t.Fatalf("List leaked a secret for %s", id.Email)
		}
	}
}

func TestDirectory_Lookups(t *testing.T) {
	t.Parallel()

	d := newSeeded(t, kv.NewMemory())

	if got, ok := d.FindByEmail("LISA@skillforge.com"); !ok || got.ID != "8" {
		t.Fatalf("FindByEmail: ok=%v got=%+v", ok, got)
	}
	if _, ok := d.FindByEmail("nobody@skillforge.com"); ok {
		t.Fatalf("unexpected hit")
	}
	if _, err := d.Get("404"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDirectory_Argon2idSealsSecrets(t *testing.T) {
	t.Parallel()

	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1

	st := kv.NewMemory()
	ctx := context.Background()
	d := newSeeded(t, st, WithScheme(Argon2idScheme{Config: cfg}))

	if _, ok := d.Verify(ctx, "teacher@skillforge.com", "teacher123", RoleTeacher); !ok {
		t.Fatalf("sealed seed secret should verify")
	}
	if _, err := d.Register(ctx, RegisterInput{DisplayName: "Hash Me", Email: "hash@x.com", Role: RoleStudent, Secret: "abc123"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	raw, err := st.Get(ctx, usersKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if strings.Contains(string(raw), "abc123") || !strings.Contains(string(raw), "$argon2id$") {
		t.Fatalf("persisted record should carry a sealed secret: %s", raw)
	}
	if _, ok := d.Verify(ctx, "hash@x.com", "abc123", RoleStudent); !ok {
		t.Fatalf("registered identity should verify")
	}
}

// countingScheme is a fast Argon2idScheme that counts Seal calls.
type countingScheme struct {
	Argon2idScheme
	seals atomic.Int32
}

func (s *countingScheme) Seal(secret string) (string, error) {
	s.seals.Add(1)
	return s.Argon2idScheme.Seal(secret)
}

func TestDirectory_SeedSecretsAreSealedOnFirstVerify(t *testing.T) {
	t.Parallel()

	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	scheme := &countingScheme{Argon2idScheme: Argon2idScheme{Config: cfg}}

	ctx := context.Background()
	d := newSeeded(t, kv.NewMemory(), WithScheme(scheme))

	if n := scheme.seals.Load(); n != 0 {
		t.Fatalf("start-up sealed %d secrets, want 0", n)
	}

	stored := func(email string) string {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.all[d.byEmail[email]].Secret
	}

	if _, ok := d.Verify(ctx, "teacher@skillforge.com", "wrong-secret", RoleTeacher); ok {
		t.Fatalf("wrong secret verified")
	}
	if password.IsEncoded(stored("teacher@skillforge.com")) {
		t.Fatalf("failed verify should not seal")
	}

	if _, ok := d.Verify(ctx, "teacher@skillforge.com", "teacher123", RoleTeacher); !ok {
		t.Fatalf("seed secret should verify")
	}
	if !password.IsEncoded(stored("teacher@skillforge.com")) {
		t.Fatalf("seed secret not sealed after first verify")
	}
	if stored("student@skillforge.com") != "student123" {
		t.Fatalf("untouched seed should still be held as given")
	}
	before := scheme.seals.Load()

	if _, ok := d.Verify(ctx, "teacher@skillforge.com", "teacher123", RoleTeacher); !ok {
		t.Fatalf("sealed seed secret should verify")
	}
	if _, ok := d.Verify(ctx, "teacher@skillforge.com", "teacher124", RoleTeacher); ok {
		t.Fatalf("wrong secret verified against sealed seed")
	}
	if n := scheme.seals.Load(); n != before {
		t.Fatalf("verify against a sealed seed called Seal (%d -> %d)", before, n)
	}
}

func TestDirectory_PlaintextVerifyIsUnchanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newSeeded(t, kv.NewMemory())

	for i := 0; i < 2; i++ {
		if _, ok := d.Verify(ctx, "admin@skillforge.com", "admin123", RoleAdmin); !ok {
			t.Fatalf("verify %d failed", i)
		}
	}
	if _, ok := d.Verify(ctx, "admin@skillforge.com", "", RoleAdmin); ok {
		t.Fatalf("empty secret verified")
	}
}
