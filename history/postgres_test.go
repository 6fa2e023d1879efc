//go:build integration
// +build integration

package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nlpinitiative/discrimination-classifier/classifier"
	"github.com/nlpinitiative/discrimination-classifier/config"
)

// newTestPostgresStore connects with the DB_* environment. Each test uses a
// fresh session id so runs against a shared database do not collide.
func newTestPostgresStore(t *testing.T) (*PostgresStore, string) {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("Skipping: DB_HOST not set")
	}

	cfg := config.DefaultConfig()
	config.ApplyEnv(cfg)

	store, err := NewPostgresStore(context.Background(), cfg.Database)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	session := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_ = store.Clear(context.Background(), session)
		_ = store.Close()
	})
	return store, session
}

func discriminatoryResult(text string) *classifier.ClassificationResult {
	scores := classifier.CategoryScores{0.75, 1, 0, 0.25, 0, 0.5}
	return &classifier.ClassificationResult{
		TextInput: text,
		SentenceResults: []classifier.SentenceResult{
			{
				Sentence:             text,
				BinaryClassification: classifier.BinaryOutcome{Label: classifier.LabelDiscriminatory, PredictedClass: 1},
				MultilabelScores:     &scores,
			},
			{
				Sentence:             "Fine.",
				BinaryClassification: classifier.BinaryOutcome{Label: classifier.LabelNonDiscriminatory, PredictedClass: 0},
			},
		},
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store, session := newTestPostgresStore(t)
	ctx := context.Background()

	appended, err := store.Append(ctx, session, discriminatoryResult("Group X are all criminals."))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := store.List(ctx, session, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.ID != appended.ID || got.SessionID != session {
		t.Errorf("entry identity changed: %+v vs %+v", got, appended)
	}
	if got.Result.TextInput != "Group X are all criminals." || len(got.Result.SentenceResults) != 2 {
		t.Fatalf("result not preserved: %+v", got.Result)
	}
	scores := got.Result.SentenceResults[0].MultilabelScores
	if scores == nil || *scores != (classifier.CategoryScores{0.75, 1, 0, 0.25, 0, 0.5}) {
		t.Errorf("scores not preserved: %v", scores)
	}
	if got.Result.SentenceResults[1].MultilabelScores != nil {
		t.Error("non-discriminatory sentence should keep null scores")
	}
}

func TestPostgresStoreListNewestFirst(t *testing.T) {
	store, session := newTestPostgresStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := store.Append(ctx, session, newResult(fmt.Sprintf("text %d", i))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	testCases := []struct {
		name   string
		limit  int
		offset int
		want   []string
	}{
		{name: "all", limit: 0, offset: 0, want: []string{"text 3", "text 2", "text 1", "text 0"}},
		{name: "limited", limit: 2, offset: 0, want: []string{"text 3", "text 2"}},
		{name: "offset", limit: 2, offset: 1, want: []string{"text 2", "text 1"}},
		{name: "offset past end", limit: 5, offset: 10, want: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := store.List(ctx, session, tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got := texts(entries); fmt.Sprint(got) != fmt.Sprint(tc.want) {
				t.Errorf("List() = %v, want %v", got, tc.want)
			}
		})
	}

	if n, err := store.Count(ctx, session); err != nil || n != 4 {
		t.Errorf("Count() = %d, %v, want 4", n, err)
	}
}

func TestPostgresStoreClear(t *testing.T) {
	store, session := newTestPostgresStore(t)
	ctx := context.Background()
	other := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = store.Clear(context.Background(), other) })

	_, _ = store.Append(ctx, session, newResult("x"))
	_, _ = store.Append(ctx, other, newResult("y"))

	if err := store.Clear(ctx, session); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := store.Count(ctx, session); n != 0 {
		t.Errorf("Count after clear = %d", n)
	}
	if n, _ := store.Count(ctx, other); n != 1 {
		t.Errorf("Clear should not touch other sessions, Count = %d", n)
	}
}

func TestPostgresStoreCleanupOlderThan(t *testing.T) {
	store, session := newTestPostgresStore(t)
	ctx := context.Background()

	old, err := store.Append(ctx, session, newResult("old"))
	if err != nil {
		t.Fatal(err)
	}
	recent, err := store.Append(ctx, session, newResult("recent"))
	if err != nil {
		t.Fatal(err)
	}
	backdate := fmt.Sprintf(`UPDATE %s SET created_at = NOW() - INTERVAL '48 hours' WHERE id = $1`, store.table)
	if _, err := store.db.ExecContext(ctx, backdate, old.ID); err != nil {
		t.Fatalf("failed to backdate entry: %v", err)
	}

	removed, err := store.CleanupOlderThan(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOlderThan() error = %v", err)
	}
	if removed < 1 {
		t.Errorf("removed = %d, want at least 1", removed)
	}

	entries, _ := store.List(ctx, session, 0, 0)
	if len(entries) != 1 || entries[0].ID != recent.ID {
		t.Errorf("expected only the recent entry, got %v", texts(entries))
	}
}
