package race

import (
	"testing"
	"time"
)

func sampleEntries() []RankEntry {
	return []RankEntry{
		{Rank: 0, RacerID: 2, Name: "Roach 2", Speed: 9.5, Shape: Circle},
		{Rank: 1, RacerID: 1, Name: "Roach 1", Speed: 7.25, Shape: Ellipse},
		{Rank: 2, RacerID: 3, Name: "Roach 3", Speed: 3, Shape: PulsingRadius},
	}
}

func TestResultCursorWraps(t *testing.T) {
	rc := NewResultCursor(sampleEntries())

	cur, ok := rc.Current()
	if !ok || cur.RacerID != 2 {
		t.Fatalf("Expected cursor to start at the leader, got %+v", cur)
	}

	prev, _ := rc.Prev()
	if prev.RacerID != 3 || rc.Index() != 2 {
		t.Errorf("Expected Up from the leader to wrap to last, got racer %d at %d", prev.RacerID, rc.Index())
	}

	next, _ := rc.Next()
	if next.RacerID != 2 || rc.Index() != 0 {
		t.Errorf("Expected Down from last to wrap to leader, got racer %d at %d", next.RacerID, rc.Index())
	}

	next, _ = rc.Next()
	if next.RacerID != 1 {
		t.Errorf("Expected racer 1, got %d", next.RacerID)
	}
}

func TestResultCursorEmpty(t *testing.T) {
	rc := NewResultCursor(nil)

	if _, ok := rc.Current(); ok {
		t.Error("Expected no current entry")
	}
	if _, ok := rc.Next(); ok {
		t.Error("Expected Next to fail on empty listing")
	}
	if _, ok := rc.Prev(); ok {
		t.Error("Expected Prev to fail on empty listing")
	}
}

func TestFormatResult(t *testing.T) {
	e := RankEntry{Name: "Roach 4", Speed: 3.14159, Shape: Ellipse, Elapsed: 12400 * time.Millisecond}

	got := FormatResult(e)
	want := "Roach 4: Speed: 3.14, Trajectory: Ellipse, Time: 12.40 sec"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestResultCursorSeek(t *testing.T) {
	rc := NewResultCursor(sampleEntries())

	e, ok := rc.Seek(2)
	if !ok || e.RacerID != 3 || rc.Index() != 2 {
		t.Errorf("Expected racer 3 at index 2, got racer %d at %d", e.RacerID, rc.Index())
	}
	e, _ = rc.Seek(-1)
	if e.RacerID != 3 {
		t.Errorf("Expected -1 to wrap to the last entry, got racer %d", e.RacerID)
	}
	e, _ = rc.Seek(4)
	if e.RacerID != 1 || rc.Index() != 1 {
		t.Errorf("Expected 4 to wrap to index 1, got racer %d at %d", e.RacerID, rc.Index())
	}
}
