// Package leaderboard models the ranked record of completed, named sessions.
package leaderboard

import (
	"strings"
	"time"

	apperr "github.com/splitpoint/ultimatum/internal/platform/errors"
)

// SortBy selects the leaderboard ordering key.
type SortBy string

const (
	// SortByScore orders by final human score, descending.
	SortByScore SortBy = "score"
	// SortByDifference orders by human score minus counterpart score, descending.
	SortByDifference SortBy = "difference"
)

// IsValid reports whether the sort key is supported.
func (s SortBy) IsValid() bool {
	return s == SortByScore || s == SortByDifference
}

// Entry is one completed, named session's immutable leaderboard record.
type Entry struct {
	SessionID  string
	PlayerName string
	HumanScore int
	AIScore    int
	CreatedAt  time.Time // game completion time
}

// Difference is the derived ranking margin, computed at query time.
func (e Entry) Difference() int {
	return e.HumanScore - e.AIScore
}

// Page is one slice of the ranked entry set.
type Page struct {
	Entries    []Entry
	TotalPages int
}

// NormalizeEntry validates and canonicalizes an entry for submission.
func NormalizeEntry(entry Entry) (Entry, error) {
	entry.SessionID = strings.TrimSpace(entry.SessionID)
	if entry.SessionID == "" {
		return Entry{}, apperr.New(apperr.CodeUnknown, "session id is required")
	}
	entry.PlayerName = strings.TrimSpace(entry.PlayerName)
	if entry.PlayerName == "" {
		return Entry{}, apperr.New(apperr.CodeMissingName, "player name is required")
	}
	return entry, nil
}
