package race

import (
	"fmt"
	"sort"
	"time"
)

// RankEntry is one line of the final results.
type RankEntry struct {
	Rank           int           `json:"rank"` // 0 is the leader
	RacerID        int           `json:"racerId"`
	Name           string        `json:"name"`
	Speed          float64       `json:"speed"`
	Shape          Shape         `json:"shape"`
	Laps           int           `json:"laps"`
	FinishPosition int           `json:"finishPosition"` // 1-based eviction order, 0 if never evicted
	Elapsed        time.Duration `json:"elapsedNs"`
}

// computeRanking sorts the full roster by final speed, fastest first.
// The sort is stable over creation order, so equal speeds keep creation order.
func computeRanking(roster, finishOrder []*Racer, now time.Time) []RankEntry {
	position := make(map[*Racer]int, len(finishOrder))
	for i, r := range finishOrder {
		position[r] = i + 1
	}

	sorted := append([]*Racer(nil), roster...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Speed() > sorted[j].Speed()
	})

	entries := make([]RankEntry, len(sorted))
	for i, r := range sorted {
		entries[i] = RankEntry{
			Rank:           i,
			RacerID:        r.ID(),
			Name:           r.Name(),
			Speed:          r.Speed(),
			Shape:          r.Shape(),
			Laps:           r.Laps(),
			FinishPosition: position[r],
			Elapsed:        r.Elapsed(now),
		}
	}
	return entries
}

// FormatResult renders one results line,
// e.g. "Roach 3: Speed: 4.15, Trajectory: Circle, Time: 31.20 sec".
func FormatResult(e RankEntry) string {
	return fmt.Sprintf("%s: Speed: %.2f, Trajectory: %s, Time: %.2f sec",
		e.Name, e.Speed, e.Shape, e.Elapsed.Seconds())
}

// ResultCursor walks a results listing one entry at a time, wrapping at both ends.
type ResultCursor struct {
	entries []RankEntry
	index   int
}

// NewResultCursor starts at the leader.
func NewResultCursor(entries []RankEntry) *ResultCursor {
	return &ResultCursor{entries: entries}
}

// Current returns the selected entry; false when the listing is empty.
func (rc *ResultCursor) Current() (RankEntry, bool) {
	if len(rc.entries) == 0 {
		return RankEntry{}, false
	}
	return rc.entries[rc.index], true
}

// Index returns the selected rank.
func (rc *ResultCursor) Index() int { return rc.index }

// Next moves down the listing (towards slower racers).
func (rc *ResultCursor) Next() (RankEntry, bool) {
	return rc.move(1)
}

// Prev moves up the listing (towards the leader).
func (rc *ResultCursor) Prev() (RankEntry, bool) {
	return rc.move(-1)
}

// Seek selects rank i, wrapping out-of-range values like repeated Next/Prev.
func (rc *ResultCursor) Seek(i int) (RankEntry, bool) {
	return rc.move(i - rc.index)
}

func (rc *ResultCursor) move(delta int) (RankEntry, bool) {
	n := len(rc.entries)
	if n == 0 {
		return RankEntry{}, false
	}
	rc.index = ((rc.index+delta)%n + n) % n
	return rc.entries[rc.index], true
}
