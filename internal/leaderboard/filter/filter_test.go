package filter

import (
	"reflect"
	"testing"
	"time"
)

func TestParseEntryFilter_ScoreComparison(t *testing.T) {
	cond, err := ParseEntryFilter(`human_score > 30`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "human_score > ?" {
		t.Errorf("expected 'human_score > ?', got %q", cond.Clause)
	}
	if len(cond.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(cond.Params))
	}
	if cond.Params[0] != int64(30) {
		t.Errorf("expected 30, got %v", cond.Params[0])
	}
}

func TestParseEntryFilter_Empty(t *testing.T) {
	cond, err := ParseEntryFilter(" ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "" || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseEntryFilter_DifferenceMapsToExpression(t *testing.T) {
	cond, err := ParseEntryFilter(`difference >= 10`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(human_score - ai_score) >= ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseEntryFilter_AndOr(t *testing.T) {
	cond, err := ParseEntryFilter(`player_name = "Ada" AND human_score > 20`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(player_name = ? AND human_score > ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"Ada", int64(20)}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = ParseEntryFilter(`player_name = "Ada" OR player_name = "Lin"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(player_name = ? OR player_name = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseEntryFilter_Timestamp(t *testing.T) {
	cond, err := ParseEntryFilter(`created_at > timestamp("2026-01-01T00:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "created_at > ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if cond.Params[0] != want {
		t.Fatalf("timestamp param = %v, want %d", cond.Params[0], want)
	}
}

func TestParseEntryFilter_InvalidField(t *testing.T) {
	_, err := ParseEntryFilter(`elo > 1000`)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseEntryFilter_InvalidTimestamp(t *testing.T) {
	_, err := ParseEntryFilter(`created_at = timestamp("not-a-time")`)
	if err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}
