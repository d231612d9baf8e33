// Package race is the simulation core: racers moving along parametric curves,
// advanced once per tick by a Controller until everyone finishes.
//
// The package is passive and single-threaded. It owns no timer and takes no
// locks; a driver calls Tick at whatever cadence it likes and reads state
// between ticks.
package race

import (
	"fmt"
	"math/rand"
	"time"

	"roach-race/internal/config"
)

// State is the controller lifecycle state.
type State int

const (
	Running State = iota
	Finished
)

func (s State) String() string {
	if s == Finished {
		return "finished"
	}
	return "running"
}

// MarshalText lets snapshots carry the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts "running" and "finished".
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "running":
		*s = Running
	case "finished":
		*s = Finished
	default:
		return fmt.Errorf("unknown race state %q", text)
	}
	return nil
}

// LapEvent describes one lap completion during a tick.
type LapEvent struct {
	RacerID  int
	Lap      int
	NewShape Shape
}

// TickReport summarizes what a single Tick changed.
type TickReport struct {
	Tick     int
	Laps     []LapEvent
	Finished []int // racer IDs evicted this tick, in eviction order
	RaceOver bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces time.Now for creation/finish timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the active racer set and the tick loop state machine.
// A finished controller is terminal; restart by creating a new one.
type Controller struct {
	lapTarget int
	now       func() time.Time

	roster      []*Racer // every racer, creation order
	active      []*Racer
	finishOrder []*Racer
	scratch     []*Racer // per-tick iteration snapshot, reused

	tick    int
	state   State
	ranking []RankEntry
}

// CreateRace builds a Running controller with randomly initialized racers:
// uniform shape from Shapes, uniform speed from [SpeedMin, SpeedMax),
// uniform angle from [0, 2π). A nil rng is seeded from cfg.Seed (or the clock).
func CreateRace(cfg config.RaceConfig, rng Rand, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	c := newController(cfg.LapTarget, opts...)
	track := Track{
		Center:        Point{X: cfg.CenterX, Y: cfg.CenterY},
		Radius:        cfg.BaseRadius,
		TrailInterval: cfg.TrailInterval,
	}

	shapes := make([]Shape, cfg.NumRacers)
	for i := range shapes {
		shapes[i] = randomShape(rng)
	}
	speeds := make([]float64, cfg.NumRacers)
	for i := range speeds {
		speeds[i] = cfg.SpeedMin + rng.Float64()*(cfg.SpeedMax-cfg.SpeedMin)
	}

	created := c.now()
	racers := make([]*Racer, cfg.NumRacers)
	for i := range racers {
		angle := rng.Float64() * FullTurn
		racers[i] = NewRacer(i+1, shapes[i], speeds[i], angle, track, rng, created)
	}

	c.setRoster(racers)
	return c, nil
}

// NewController wraps an explicit set of racers, e.g. for scripted scenarios.
func NewController(lapTarget int, racers []*Racer, opts ...Option) (*Controller, error) {
	if lapTarget < 1 {
		return nil, fmt.Errorf("%w: lap target must be positive, got %d", config.ErrInvalidRace, lapTarget)
	}
	if len(racers) == 0 {
		return nil, fmt.Errorf("%w: need at least one racer", config.ErrInvalidRace)
	}
	seen := make(map[int]bool, len(racers))
	for _, r := range racers {
		if seen[r.ID()] {
			return nil, fmt.Errorf("%w: duplicate racer id %d", config.ErrInvalidRace, r.ID())
		}
		seen[r.ID()] = true
	}

	c := newController(lapTarget, opts...)
	c.setRoster(racers)
	return c, nil
}

func newController(lapTarget int, opts ...Option) *Controller {
	c := &Controller{
		lapTarget: lapTarget,
		now:       time.Now,
		state:     Running,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) setRoster(racers []*Racer) {
	c.roster = append([]*Racer(nil), racers...)
	c.active = append(make([]*Racer, 0, len(racers)), racers...)
	c.finishOrder = make([]*Racer, 0, len(racers))
	c.scratch = make([]*Racer, 0, len(racers))
}

// Tick advances every active racer once and evicts finishers.
// Calling Tick on a finished controller changes nothing and returns a zero report.
func (c *Controller) Tick() TickReport {
	if c.state == Finished {
		return TickReport{}
	}

	c.tick++
	report := TickReport{Tick: c.tick}

	// Iterate a stable copy; evictions only touch c.active.
	c.scratch = append(c.scratch[:0], c.active...)
	for _, r := range c.scratch {
		if r.Advance(c.tick) {
			report.Laps = append(report.Laps, LapEvent{
				RacerID:  r.ID(),
				Lap:      r.Laps(),
				NewShape: r.Shape(),
			})
		}
		if r.IsFinished(c.lapTarget) {
			c.evict(r)
			report.Finished = append(report.Finished, r.ID())
		}
	}

	if len(c.active) == 0 {
		c.state = Finished
		c.ranking = computeRanking(c.roster, c.finishOrder, c.now())
		report.RaceOver = true
	}

	return report
}

func (c *Controller) evict(r *Racer) {
	for i, a := range c.active {
		if a == r {
			c.active = append(c.active[:i], c.active[i+1:]...)
			break
		}
	}
	r.markFinished(c.now())
	c.finishOrder = append(c.finishOrder, r)
}

// State returns Running or Finished.
func (c *Controller) State() State { return c.state }

// IsFinished reports whether the race is over.
func (c *Controller) IsFinished() bool { return c.state == Finished }

// TickIndex returns the number of ticks processed.
func (c *Controller) TickIndex() int { return c.tick }

// LapTarget returns the laps each racer must complete.
func (c *Controller) LapTarget() int { return c.lapTarget }

// ActiveRacers returns a copy of the racers still on track, in roster order.
func (c *Controller) ActiveRacers() []*Racer {
	return append([]*Racer(nil), c.active...)
}

// Roster returns every racer ever created, in creation order.
func (c *Controller) Roster() []*Racer {
	return append([]*Racer(nil), c.roster...)
}

// FinishOrder returns evicted racers in the order they finished.
func (c *Controller) FinishOrder() []*Racer {
	return append([]*Racer(nil), c.finishOrder...)
}

// Ranking returns the final results, or nil while the race is running.
func (c *Controller) Ranking() []RankEntry {
	if c.state != Finished {
		return nil
	}
	return append([]RankEntry(nil), c.ranking...)
}

// Leader returns rank 0 once the race is finished.
func (c *Controller) Leader() (RankEntry, bool) {
	if c.state != Finished || len(c.ranking) == 0 {
		return RankEntry{}, false
	}
	return c.ranking[0], true
}
