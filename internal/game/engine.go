// Package game drives a race in real time: a ticker goroutine, triple-buffered
// snapshots for renderers, a live speed leaderboard and a JSONL event log.
package game

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"roach-race/internal/config"
	"roach-race/internal/leaderboard"
	"roach-race/internal/race"
)

// Engine owns the current race controller and advances it on a ticker
type Engine struct {
	mu sync.RWMutex

	cfg     config.EngineConfig
	raceCfg config.RaceConfig
	rng     *rand.Rand
	now     func() time.Time

	controller *race.Controller
	racers     map[int]*race.Racer
	track      race.Track
	raceID     ksuid.KSUID

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}

	// Event callbacks, invoked after the engine lock is released
	onTick     func(race.TickReport)
	onFinish   func(race.RankEntry)
	onRaceOver func([]race.RankEntry)

	leaderboard  *leaderboard.Leaderboard
	snapshotPool *SnapshotPool
	eventLog     *EventLog
}

// Option customizes an Engine
type Option func(*Engine)

// WithClock replaces time.Now for racer timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand fixes the random source used to create every race
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// NewEngine validates raceCfg and creates the first race. The engine is idle
// until Start or Step is called.
func NewEngine(cfg config.EngineConfig, raceCfg config.RaceConfig, opts ...Option) (*Engine, error) {
	if err := raceCfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = config.DefaultEngine().TickInterval
	}

	e := &Engine{
		cfg:          cfg,
		raceCfg:      raceCfg,
		now:          time.Now,
		leaderboard:  leaderboard.New(),
		snapshotPool: NewSnapshotPool(raceCfg.NumRacers),
		eventLog:     NewEventLog(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		seed := raceCfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		e.rng = rand.New(rand.NewSource(seed))
	}

	if err := e.newRace(); err != nil {
		return nil, err
	}
	e.publishSnapshot()
	return e, nil
}

// newRace replaces the controller. Caller holds e.mu (or owns e exclusively).
func (e *Engine) newRace() error {
	c, err := race.CreateRace(e.raceCfg, e.rng, race.WithClock(e.now))
	if err != nil {
		return err
	}

	e.controller = c
	e.raceID = ksuid.New()
	e.track = race.Track{
		Center:        race.Point{X: e.raceCfg.CenterX, Y: e.raceCfg.CenterY},
		Radius:        e.raceCfg.BaseRadius,
		TrailInterval: e.raceCfg.TrailInterval,
	}

	roster := c.Roster()
	e.racers = make(map[int]*race.Racer, len(roster))
	speeds := make(map[string]float64, len(roster))
	for _, r := range roster {
		e.racers[r.ID()] = r
		speeds[r.Key()] = r.Speed()
	}
	e.leaderboard.Clear()
	e.leaderboard.BatchUpdate(speeds)
	activeRacers.Set(float64(len(roster)))

	e.emitRaceStart()
	log.Printf("🏁 Race %s started: %d roaches, %d laps", e.raceID, len(roster), e.raceCfg.LapTarget)
	return nil
}

func (e *Engine) emitRaceStart() {
	e.eventLog.EmitSimple(EventTypeRaceStart, e.raceID.String(), e.controller.TickIndex(), "", RaceStartPayload{
		NumRacers: len(e.racers),
		LapTarget: e.raceCfg.LapTarget,
		Radius:    e.raceCfg.BaseRadius,
	})
}

// Start begins the tick loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	e.ticker = time.NewTicker(e.cfg.TickInterval)
	ticker, stop, done := e.ticker, e.stopChan, e.done
	e.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				e.Step()
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Race engine started, tick every %v", e.cfg.TickInterval)
}

// Stop halts the tick loop and waits for an in-flight tick to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	done := e.done
	e.mu.Unlock()

	<-done
	log.Println("🛑 Race engine stopped")
}

// IsRunning reports whether the tick loop is active
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Step applies one tick. On a finished race it does nothing and returns a zero report.
func (e *Engine) Step() race.TickReport {
	e.mu.Lock()

	if e.controller.IsFinished() {
		e.mu.Unlock()
		return race.TickReport{}
	}

	start := time.Now()
	report := e.controller.Tick()
	raceID := e.raceID.String()

	speeds := make(map[string]float64, len(e.racers))
	for _, r := range e.controller.ActiveRacers() {
		speeds[r.Key()] = r.Speed()
	}
	e.leaderboard.BatchUpdate(speeds)

	e.eventLog.EmitSimple(EventTypeTick, raceID, report.Tick, "", TickPayload{
		Active:   len(speeds),
		Finished: len(e.racers) - len(speeds),
	})
	for _, lap := range report.Laps {
		r := e.racers[lap.RacerID]
		e.eventLog.EmitSimple(EventTypeLap, raceID, report.Tick, r.Key(), LapPayload{
			RacerID:  lap.RacerID,
			Lap:      lap.Lap,
			NewShape: lap.NewShape,
			Speed:    r.Speed(),
		})
		lapsTotal.WithLabelValues(lap.NewShape.String()).Inc()
	}

	finished := make([]race.RankEntry, 0, len(report.Finished))
	finishedBefore := len(e.racers) - len(speeds) - len(report.Finished)
	for i, id := range report.Finished {
		r := e.racers[id]
		entry := race.RankEntry{
			RacerID:        id,
			Name:           r.Name(),
			Speed:          r.Speed(),
			Shape:          r.Shape(),
			Laps:           r.Laps(),
			FinishPosition: finishedBefore + i + 1,
			Elapsed:        r.Elapsed(e.now()),
		}
		finished = append(finished, entry)
		e.eventLog.EmitSimple(EventTypeFinish, raceID, report.Tick, r.Key(), FinishPayload{
			RacerID:   id,
			Position:  entry.FinishPosition,
			Speed:     entry.Speed,
			ElapsedMs: entry.Elapsed.Milliseconds(),
		})
		finishersTotal.Inc()
		log.Printf("🏆 %s finished in position %d (speed %.2f)", entry.Name, entry.FinishPosition, entry.Speed)
	}

	var ranking []race.RankEntry
	if report.RaceOver {
		ranking = e.controller.Ranking()
		e.eventLog.EmitSimple(EventTypeRaceOver, raceID, report.Tick, "", RaceOverPayload{Ranking: ranking})
		racesCompleted.Inc()
		if len(ranking) > 0 {
			log.Printf("🏁 Race %s over after %d ticks, leader %s", raceID, report.Tick, race.FormatResult(ranking[0]))
		}
	}

	e.publishSnapshot()
	recordTick(time.Since(start), len(speeds))
	eventLogDropped.Set(float64(e.eventLog.GetDroppedCount()))

	onTick, onFinish, onRaceOver := e.onTick, e.onFinish, e.onRaceOver
	e.mu.Unlock()

	if onTick != nil {
		onTick(report)
	}
	if onFinish != nil {
		for _, entry := range finished {
			onFinish(entry)
		}
	}
	if onRaceOver != nil && report.RaceOver {
		onRaceOver(ranking)
	}
	return report
}

// publishSnapshot copies controller state into the next buffer slot. Caller holds e.mu.
func (e *Engine) publishSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	fillSnapshot(snap, e.raceID.String(), e.controller, e.track)
	e.snapshotPool.PublishWrite()
}

// Restart discards the current race and creates a new one with a fresh ID
func (e *Engine) Restart() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.raceID.String()
	if err := e.newRace(); err != nil {
		return err
	}
	e.eventLog.EmitSimple(EventTypeRestart, e.raceID.String(), 0, "", RestartPayload{PreviousRaceID: prev})
	restartsTotal.Inc()
	log.Printf("🔄 Race %s replaced by %s", prev, e.raceID)

	e.publishSnapshot()
	return nil
}

// SetCallbacks registers event callbacks. Any of them may be nil.
func (e *Engine) SetCallbacks(onTick func(race.TickReport), onFinish func(race.RankEntry), onRaceOver func([]race.RankEntry)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = onTick
	e.onFinish = onFinish
	e.onRaceOver = onRaceOver
}

// GetSnapshot returns the latest published race snapshot (lock-free)
func (e *Engine) GetSnapshot() *RaceSnapshot {
	return e.snapshotPool.AcquireRead()
}

// RaceID returns the current race identifier
func (e *Engine) RaceID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.raceID.String()
}

// State returns the current race state
func (e *Engine) State() race.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.controller.State()
}

// Results returns the final ranking, or nil while the race runs
func (e *Engine) Results() []race.RankEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.controller.Ranking()
}

// Leaderboard returns the live speed leaderboard
func (e *Engine) Leaderboard() *leaderboard.Leaderboard {
	return e.leaderboard
}

// RaceConfig returns the configuration every race is created from
func (e *Engine) RaceConfig() config.RaceConfig {
	return e.raceCfg
}

// StartEventLog begins writing events to filePath. The current race is
// announced immediately so the log always opens with a race_start.
func (e *Engine) StartEventLog(filePath string) error {
	if err := e.eventLog.Start(filePath); err != nil {
		return err
	}
	e.mu.RLock()
	e.emitRaceStart()
	e.mu.RUnlock()
	return nil
}

// StopEventLog flushes and stops the event log
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}
