package state

import (
	"context"
	"testing"
	"time"
)

func TestRecordAndRetrieveBuilds(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	started := time.Now().Add(-time.Minute)

	rec := BuildRecord{
		ID:       "build-1",
		Target:   "novel",
		Started:  started,
		Finished: started.Add(30 * time.Second),
		Status:   "ok",
		Rules: []RuleOutcome{
			{Rule: "map-image", Ran: false, Reason: "up to date"},
			{Rule: "chapters", Ran: true, Reason: "chapter 01: source changed", Duration: 1200 * time.Millisecond},
			{Rule: "novel", Ran: true, Reason: "input newer than outputs", Duration: 8 * time.Second},
		},
	}
	if err := store.RecordBuild(ctx, rec); err != nil {
		t.Fatalf("failed to record build: %v", err)
	}

	records, err := store.RecentBuilds(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list builds: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 build, got %d", len(records))
	}

	got := records[0]
	if got.ID != "build-1" || got.Target != "novel" || got.Status != "ok" {
		t.Errorf("unexpected record: %+v", got)
	}
	if len(got.Rules) != 3 {
		t.Fatalf("expected 3 rule outcomes, got %d", len(got.Rules))
	}
	if got.Rules[1].Rule != "chapters" || !got.Rules[1].Ran {
		t.Errorf("unexpected chapters outcome: %+v", got.Rules[1])
	}
	if got.Rules[0].Ran {
		t.Errorf("map-image should be recorded as skipped")
	}
	if got.Rules[2].Duration != 8*time.Second {
		t.Errorf("expected 8s duration, got %v", got.Rules[2].Duration)
	}
}

func TestRecentBuilds_NewestFirstAndLimited(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := BuildRecord{
			ID:       string(rune('a' + i)),
			Target:   "novel",
			Started:  base.Add(time.Duration(i) * time.Minute),
			Finished: base.Add(time.Duration(i)*time.Minute + 10*time.Second),
			Status:   "ok",
		}
		if err := store.RecordBuild(ctx, rec); err != nil {
			t.Fatalf("failed to record build %d: %v", i, err)
		}
	}

	records, err := store.RecentBuilds(ctx, 3)
	if err != nil {
		t.Fatalf("failed to list builds: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 builds, got %d", len(records))
	}
	if records[0].ID != "e" || records[2].ID != "c" {
		t.Errorf("expected newest first, got %s..%s", records[0].ID, records[2].ID)
	}
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir + "/.novelbuilder/history.db")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	_ = store.Close()
}
