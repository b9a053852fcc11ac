package ids

import (
	"sort"
	"testing"
	"time"
)

func TestNewULID_MonotonicWithinMillisecond(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := make([]string, 0, 64)
	for i := 0; i < 64; i++ {
		id, err := NewULID(now)
		if err != nil {
			t.Fatalf("NewULID: %v", err)
		}
		if len(id) != 26 {
			t.Fatalf("unexpected ulid length %d: %q", len(id), id)
		}
		got = append(got, id)
	}

	if !sort.StringsAreSorted(got) {
		t.Fatalf("ulids minted in the same millisecond are not increasing: %v", got)
	}
}

func TestNewULID_ZeroTimeUsesNow(t *testing.T) {
	t.Parallel()

	if _, err := NewULID(time.Time{}); err != nil {
		t.Fatalf("NewULID(zero): %v", err)
	}
}
