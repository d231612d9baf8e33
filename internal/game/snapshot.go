package game

import (
	"sync/atomic"
	"time"

	"roach-race/internal/race"
)

// RacerSnapshot is a value copy of one racer for rendering
type RacerSnapshot struct {
	ID             int          `json:"id"`
	Key            string       `json:"key"`
	Name           string       `json:"name"`
	Shape          race.Shape   `json:"shape"`
	X              float64      `json:"x"`
	Y              float64      `json:"y"`
	Angle          float64      `json:"angle"`
	Speed          float64      `json:"speed"`
	Acceleration   float64      `json:"acceleration"`
	Laps           int          `json:"laps"`
	Finished       bool         `json:"finished"`
	FinishPosition int          `json:"finishPosition,omitempty"`
	Trail          []race.Point `json:"trail"`
}

// RaceSnapshot is a complete copy of race state between two ticks.
// Renderers and the API read it without touching the engine lock.
type RaceSnapshot struct {
	Sequence  uint64     `json:"sequence"`
	Timestamp time.Time  `json:"timestamp"`
	RaceID    string     `json:"raceId"`
	Tick      int        `json:"tick"`
	State     race.State `json:"state"`
	LapTarget int        `json:"lapTarget"`
	Track     race.Track `json:"track"`

	Racers        []RacerSnapshot  `json:"racers"` // creation order
	ActiveCount   int              `json:"activeCount"`
	FinishedCount int              `json:"finishedCount"`
	Ranking       []race.RankEntry `json:"ranking,omitempty"` // set once the race is over
}

// Clone returns a deep copy that stays valid after further publishes
func (s *RaceSnapshot) Clone() *RaceSnapshot {
	out := *s
	out.Racers = make([]RacerSnapshot, len(s.Racers))
	for i, r := range s.Racers {
		out.Racers[i] = r
		out.Racers[i].Trail = append([]race.Point(nil), r.Trail...)
	}
	out.Ranking = append([]race.RankEntry(nil), s.Ranking...)
	return &out
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Triple buffering: the producer never writes the slot readers were last given.
type SnapshotPool struct {
	snapshots [3]RaceSnapshot
	writeIdx  uint32 // atomic, last slot handed to the producer
	readIdx   uint32 // atomic, last published slot
	sequence  uint64 // atomic
}

// NewSnapshotPool sizes every slot for numRacers
func NewSnapshotPool(numRacers int) *SnapshotPool {
	pool := &SnapshotPool{}
	for i := range pool.snapshots {
		pool.snapshots[i].Racers = make([]RacerSnapshot, 0, numRacers)
	}
	return pool
}

// AcquireWrite returns the next slot for the producer (engine tick only).
// Racer trails keep their backing arrays between uses.
func (p *SnapshotPool) AcquireWrite() *RaceSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Racers = snap.Racers[:0]
	snap.Ranking = nil
	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()
	return snap
}

// PublishWrite makes the last acquired slot visible to readers
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead returns the latest published snapshot. The pointer stays
// consistent until two more snapshots are published; use Clone to keep it longer.
func (p *SnapshotPool) AcquireRead() *RaceSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// fillSnapshot copies controller state into snap, reusing trail buffers.
func fillSnapshot(snap *RaceSnapshot, raceID string, c *race.Controller, track race.Track) {
	roster := c.Roster()
	finishPos := make(map[int]int, len(roster))
	for i, r := range c.FinishOrder() {
		finishPos[r.ID()] = i + 1
	}

	snap.RaceID = raceID
	snap.Tick = c.TickIndex()
	snap.State = c.State()
	snap.LapTarget = c.LapTarget()
	snap.Track = track
	snap.ActiveCount = len(c.ActiveRacers())
	snap.FinishedCount = len(finishPos)
	snap.Ranking = c.Ranking()

	if cap(snap.Racers) < len(roster) {
		snap.Racers = make([]RacerSnapshot, 0, len(roster))
	}
	snap.Racers = snap.Racers[:len(roster)]

	for i, r := range roster {
		rs := &snap.Racers[i]
		trail := rs.Trail[:0]
		pos := r.Position()
		*rs = RacerSnapshot{
			ID:             r.ID(),
			Key:            r.Key(),
			Name:           r.Name(),
			Shape:          r.Shape(),
			X:              pos.X,
			Y:              pos.Y,
			Angle:          r.Angle(),
			Speed:          r.Speed(),
			Acceleration:   r.Acceleration(),
			Laps:           r.Laps(),
			Finished:       finishPos[r.ID()] > 0,
			FinishPosition: finishPos[r.ID()],
		}
		rs.Trail = r.AppendTrail(trail)
	}
}
