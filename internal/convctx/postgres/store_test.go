package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voiced/internal/convctx/postgres"
	"github.com/MrWong99/voiced/pkg/types"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if VOICED_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOICED_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOICED_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS conversation_history CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sessionID := "sess-1"
	now := time.Now()
	entries := []types.HistoryEntry{
		{Role: "user", Text: "what's the weather", Timestamp: now.Add(-10 * time.Minute)},
		{Role: "assistant", Text: "it's sunny", Intent: "weather.query", Timestamp: now.Add(-9 * time.Minute)},
		{Role: "user", Text: "thanks", Timestamp: now.Add(-1 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.Append(ctx, sessionID, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := store.Recent(ctx, sessionID, 30*time.Minute)
	if err != nil {
		t.Fatalf("Recent(30m): %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("Recent(30m): want 3, got %d", len(recent))
	}

	narrow, err := store.Recent(ctx, sessionID, 5*time.Minute)
	if err != nil {
		t.Fatalf("Recent(5m): %v", err)
	}
	if len(narrow) != 1 || narrow[0].Text != "thanks" {
		t.Errorf("Recent(5m): want [thanks], got %v", narrow)
	}

	other, err := store.Recent(ctx, "other-session", 30*time.Minute)
	if err != nil {
		t.Fatalf("Recent other: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Recent other: want 0, got %d", len(other))
	}
}
