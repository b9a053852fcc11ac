package kv

import (
	"context"
	"path/filepath"
	"testing"
)

func TestBolt_Contract(t *testing.T) {
	t.Parallel()

	st, err := OpenBolt(filepath.Join(t.TempDir(), "directory.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	runStoreContract(t, st)
}

func TestBolt_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "directory.db")

	st, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	if err := st.Set(ctx, "skillforge_user", []byte(`{"identity_id":"1"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen bolt: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	v, err := reopened.Get(ctx, "skillforge_user")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(v) != `{"identity_id":"1"}` {
		t.Fatalf("value mismatch after reopen: %q", v)
	}
}

func TestOpenBolt_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenBolt(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
