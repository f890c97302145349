package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/splitpoint/ultimatum/internal/leaderboard"
	"github.com/splitpoint/ultimatum/internal/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "leaderboard.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func submitEntries(t *testing.T, store *Store, entries []leaderboard.Entry) {
	t.Helper()
	for _, entry := range entries {
		if err := store.SubmitEntry(context.Background(), entry); err != nil {
			t.Fatalf("submit %s: %v", entry.SessionID, err)
		}
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestSubmitEntryAndList(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	submitEntries(t, store, []leaderboard.Entry{
		{SessionID: "s1", PlayerName: "Ada", HumanScore: 42, AIScore: 18, CreatedAt: now},
		{SessionID: "s2", PlayerName: "Lin", HumanScore: 35, AIScore: 25, CreatedAt: now.Add(time.Minute)},
	})

	page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByScore, Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(page.Entries))
	}
	if page.Entries[0].SessionID != "s1" || page.Entries[1].SessionID != "s2" {
		t.Fatalf("unexpected order: %q then %q", page.Entries[0].SessionID, page.Entries[1].SessionID)
	}
	if page.TotalPages != 1 {
		t.Fatalf("total pages = %d, want 1", page.TotalPages)
	}
	if !page.Entries[0].CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", page.Entries[0].CreatedAt, now)
	}
}

func TestSubmitEntryIsIdempotentPerSession(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	first := leaderboard.Entry{SessionID: "s1", PlayerName: "Ada", HumanScore: 42, AIScore: 18, CreatedAt: now}

	if err := store.SubmitEntry(context.Background(), first); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// A second submission for the same session keeps the first record.
	second := first
	second.PlayerName = "Someone Else"
	second.HumanScore = 60
	if err := store.SubmitEntry(context.Background(), second); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByScore, Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(page.Entries))
	}
	if page.Entries[0].PlayerName != "Ada" || page.Entries[0].HumanScore != 42 {
		t.Fatalf("first record replaced: %+v", page.Entries[0])
	}
}

func TestSubmitEntryRejectsBlankName(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	err := store.SubmitEntry(context.Background(), leaderboard.Entry{SessionID: "s1", PlayerName: "   "})
	if err == nil {
		t.Fatal("expected error for blank player name")
	}
}

func TestListEntriesSortByDifference(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	submitEntries(t, store, []leaderboard.Entry{
		// s1 has the higher score, s2 the wider margin.
		{SessionID: "s1", PlayerName: "Ada", HumanScore: 40, AIScore: 30, CreatedAt: now},
		{SessionID: "s2", PlayerName: "Lin", HumanScore: 35, AIScore: 10, CreatedAt: now.Add(time.Minute)},
	})

	page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByDifference, Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if page.Entries[0].SessionID != "s2" {
		t.Fatalf("expected s2 first by difference, got %q", page.Entries[0].SessionID)
	}
}

func TestListEntriesTieBreaksByEarliestSubmission(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	submitEntries(t, store, []leaderboard.Entry{
		{SessionID: "late", PlayerName: "Lin", HumanScore: 40, AIScore: 20, CreatedAt: now.Add(time.Hour)},
		{SessionID: "early", PlayerName: "Ada", HumanScore: 40, AIScore: 20, CreatedAt: now},
	})

	page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByScore, Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if page.Entries[0].SessionID != "early" {
		t.Fatalf("expected earliest submission first, got %q", page.Entries[0].SessionID)
	}
}

func TestListEntriesFullTieOrdersBySessionID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	// Same score and same timestamp: session ID is the final ordering key.
	submitEntries(t, store, []leaderboard.Entry{
		{SessionID: "s-b", PlayerName: "Lin", HumanScore: 40, AIScore: 20, CreatedAt: now},
		{SessionID: "s-a", PlayerName: "Ada", HumanScore: 40, AIScore: 20, CreatedAt: now},
		{SessionID: "s-c", PlayerName: "Mae", HumanScore: 40, AIScore: 20, CreatedAt: now},
	})

	for _, sortBy := range []leaderboard.SortBy{leaderboard.SortByScore, leaderboard.SortByDifference} {
		page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
			SortBy: sortBy, Page: 1, PageSize: 10,
		})
		if err != nil {
			t.Fatalf("list entries (%s): %v", sortBy, err)
		}
		var got []string
		for _, entry := range page.Entries {
			got = append(got, entry.SessionID)
		}
		want := []string{"s-a", "s-b", "s-c"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order (%s) = %v, want %v", sortBy, got, want)
			}
		}
	}
}

func TestListEntriesPagination(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	entries := make([]leaderboard.Entry, 0, 25)
	for i := 0; i < 25; i++ {
		entries = append(entries, leaderboard.Entry{
			SessionID:  fmt.Sprintf("s%02d", i),
			PlayerName: fmt.Sprintf("player-%02d", i),
			HumanScore: 60 - i,
			AIScore:    i,
			CreatedAt:  now.Add(time.Duration(i) * time.Minute),
		})
	}
	submitEntries(t, store, entries)

	seen := make(map[string]bool)
	var lastScore = 61
	for pageNum := 1; pageNum <= 3; pageNum++ {
		page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
			SortBy: leaderboard.SortByScore, Page: pageNum, PageSize: 10,
		})
		if err != nil {
			t.Fatalf("page %d: %v", pageNum, err)
		}
		if page.TotalPages != 3 {
			t.Fatalf("page %d: total pages = %d, want 3", pageNum, page.TotalPages)
		}
		wantLen := 10
		if pageNum == 3 {
			wantLen = 5
		}
		if len(page.Entries) != wantLen {
			t.Fatalf("page %d: entries = %d, want %d", pageNum, len(page.Entries), wantLen)
		}
		for _, entry := range page.Entries {
			if seen[entry.SessionID] {
				t.Fatalf("session %s appeared on two pages", entry.SessionID)
			}
			seen[entry.SessionID] = true
			if entry.HumanScore > lastScore {
				t.Fatalf("score order violated at %s", entry.SessionID)
			}
			lastScore = entry.HumanScore
		}
	}

	// Pages past the end are empty but still report the page count.
	page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByScore, Page: 4, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("page 4: %v", err)
	}
	if len(page.Entries) != 0 {
		t.Fatalf("page 4: entries = %d, want 0", len(page.Entries))
	}
	if page.TotalPages != 3 {
		t.Fatalf("page 4: total pages = %d, want 3", page.TotalPages)
	}
}

func TestListEntriesEmptyBoard(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByScore, Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(page.Entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(page.Entries))
	}
	if page.TotalPages != 1 {
		t.Fatalf("total pages = %d, want 1", page.TotalPages)
	}
}

func TestListEntriesWithFilter(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	submitEntries(t, store, []leaderboard.Entry{
		{SessionID: "s1", PlayerName: "Ada", HumanScore: 42, AIScore: 18, CreatedAt: now},
		{SessionID: "s2", PlayerName: "Lin", HumanScore: 20, AIScore: 40, CreatedAt: now},
	})

	page, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByScore, Page: 1, PageSize: 10,
		Filter: `human_score > 30`,
	})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0].SessionID != "s1" {
		t.Fatalf("unexpected filtered result: %+v", page.Entries)
	}

	if _, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByScore, Page: 1, PageSize: 10,
		Filter: `bogus = 1`,
	}); err == nil {
		t.Fatal("expected error for invalid filter")
	}
}

func TestListEntriesRejectsBadQuery(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortBy("elo"), Page: 1, PageSize: 10,
	}); err == nil {
		t.Fatal("expected error for unknown sort key")
	}
	if _, err := store.ListEntries(context.Background(), storage.LeaderboardQuery{
		SortBy: leaderboard.SortByScore, Page: 0, PageSize: 10,
	}); err == nil {
		t.Fatal("expected error for page 0")
	}
}
