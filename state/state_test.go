package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/chwatch/dbopen"
	"github.com/hazyhaar/chwatch/target"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return NewStore(db)
}

func TestBaseline_UnknownTarget(t *testing.T) {
	st := testStore(t)
	_, ok, err := st.Baseline(context.Background(), "/never/seen")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no baseline for unknown target")
	}
}

func TestSaveBaseline_Roundtrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	tgt := target.New("/etc/hosts", time.Minute)

	if err := st.SaveBaseline(ctx, tgt, "abc123", true, false); err != nil {
		t.Fatal(err)
	}

	b, ok, err := st.Baseline(ctx, "/etc/hosts")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected baseline")
	}
	if b.Fingerprint != "abc123" || !b.Present {
		t.Fatalf("unexpected baseline %+v", b)
	}
}

func TestSaveBaseline_UpsertKeepsChangedAt(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	tgt := target.New("/etc/hosts", time.Minute)

	if err := st.SaveBaseline(ctx, tgt, "v1", true, true); err != nil {
		t.Fatal(err)
	}
	first, _, err := st.Baseline(ctx, "/etc/hosts")
	if err != nil {
		t.Fatal(err)
	}

	// An unchanged cycle must not move last_changed_at.
	if err := st.SaveBaseline(ctx, tgt, "v1", true, false); err != nil {
		t.Fatal(err)
	}
	second, _, err := st.Baseline(ctx, "/etc/hosts")
	if err != nil {
		t.Fatal(err)
	}
	if !second.ChangedAt.Equal(first.ChangedAt) {
		t.Fatalf("last_changed_at moved on unchanged cycle: %v vs %v", first.ChangedAt, second.ChangedAt)
	}
}

func TestSaveBaseline_AbsentTransition(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	tgt := target.New("/etc/hosts", time.Minute)

	if err := st.SaveBaseline(ctx, tgt, "v1", true, false); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveBaseline(ctx, tgt, "", false, true); err != nil {
		t.Fatal(err)
	}

	b, _, err := st.Baseline(ctx, "/etc/hosts")
	if err != nil {
		t.Fatal(err)
	}
	if b.Present || b.Fingerprint != "" {
		t.Fatalf("expected absent baseline, got %+v", b)
	}
}

func TestLogCheckAndCleanup(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	var n int
	st := NewStore(db, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("chk_%04d", n)
	}))
	ctx := context.Background()

	old := Check{
		Target:    "/etc/hosts",
		Status:    "unchanged",
		CheckedAt: time.Now().Add(-48 * time.Hour),
	}
	recent := Check{
		Target:    "/etc/hosts",
		Status:    "changed",
		CheckedAt: time.Now(),
	}
	if err := st.LogCheck(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := st.LogCheck(ctx, recent); err != nil {
		t.Fatal(err)
	}

	if err := st.Cleanup(ctx, 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	var id string
	if err := st.db.QueryRow("SELECT id FROM check_log").Scan(&id); err != nil {
		t.Fatal(err)
	}
	if id != "chk_0002" {
		t.Fatalf("expected only the recent check to survive, got %q", id)
	}
}
