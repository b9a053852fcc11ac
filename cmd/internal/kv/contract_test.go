package kv

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, st Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := "skillforge_contract_" + time.Now().UTC().Format("150405.000000000")

	if _, err := st.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: expected ErrNotFound, got %v", err)
	}

	if err := st.Set(ctx, key, []byte(`{"version":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte(`{"version":1}`)) {
		t.Fatalf("get mismatch: %q", got)
	}

	// Last write wins.
	if err := st.Set(ctx, key, []byte(`{"version":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = st.Get(ctx, key)
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if !bytes.Equal(got, []byte(`{"version":2}`)) {
		t.Fatalf("overwrite mismatch: %q", got)
	}

	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: expected ErrNotFound, got %v", err)
	}

	// Deleting a missing key is fine.
	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("delete missing: %v", err)
	}

	if err := st.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
