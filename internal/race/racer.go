package race

import (
	"fmt"
	"math"
	"time"
)

// Racer owns one participant's kinematic state.
//
// Invariants kept by Advance:
//   - angle stays in [0, 2π)
//   - laps grows by at most one per Advance, only on wraparound
//   - the lap-completing Advance clears the trail and rerolls the shape
//   - speed only changes through the shape's acceleration rule
type Racer struct {
	id    int
	name  string
	track Track
	rng   Rand

	shape        Shape
	angle        float64
	speed        float64
	acceleration float64
	laps         int
	pos          Point

	trail        []Point
	trailCounter int

	createdAt  time.Time
	finishedAt time.Time
}

// NewRacer creates a racer at the given angle and computes its initial position.
// No trail marker is emitted until the first Advance.
func NewRacer(id int, shape Shape, speed, angle float64, track Track, rng Rand, createdAt time.Time) *Racer {
	if track.TrailInterval < 1 {
		track.TrailInterval = 1
	}
	r := &Racer{
		id:        id,
		name:      fmt.Sprintf("Roach %d", id),
		track:     track,
		rng:       rng,
		shape:     shape,
		angle:     normalizeAngle(angle),
		speed:     speed,
		createdAt: createdAt,
	}
	r.pos = r.shape.Position(r.angle, r.track)
	return r
}

// Advance moves the racer one tick along its trajectory.
// Returns true when this call completed a lap.
func (r *Racer) Advance(tick int) bool {
	r.angle += r.speed / AngularStepScale

	lapped := false
	if r.angle >= FullTurn {
		r.angle -= FullTurn
		if r.angle >= FullTurn {
			// one lap per call, even if the step overshoots by several turns
			r.angle = math.Mod(r.angle, FullTurn)
		}
		r.laps++
		r.trail = r.trail[:0]
		r.trailCounter = 0
		r.shape = randomShape(r.rng)
		lapped = true
	}

	r.pos = r.shape.Position(r.angle, r.track)

	if r.trailCounter%r.track.TrailInterval == 0 {
		r.trail = append(r.trail, r.pos)
	}
	r.trailCounter++

	// The shape here is the post-reroll one on a lap-completing tick.
	r.acceleration = r.shape.Acceleration(tick)
	r.speed += r.acceleration

	return lapped
}

// Position returns the last computed coordinates.
func (r *Racer) Position() Point { return r.pos }

// IsFinished reports whether the racer has completed lapTarget laps.
func (r *Racer) IsFinished(lapTarget int) bool { return r.laps >= lapTarget }

func (r *Racer) ID() int { return r.id }
func (r *Racer) Name() string { return r.name }
func (r *Racer) Shape() Shape { return r.shape }
func (r *Racer) Angle() float64 { return r.angle }
func (r *Racer) Speed() float64 { return r.speed }
func (r *Racer) Acceleration() float64 { return r.acceleration }
func (r *Racer) Laps() int { return r.laps }
func (r *Racer) CreatedAt() time.Time { return r.createdAt }
func (r *Racer) FinishedAt() time.Time { return r.finishedAt }
func (r *Racer) TrailEmissionCount() int { return r.trailCounter }

// Key is a stable, sortable identifier: lexical order equals creation order.
func (r *Racer) Key() string { return fmt.Sprintf("roach-%03d", r.id) }

// Trail returns a copy of the markers emitted since the last lap.
func (r *Racer) Trail() []Point {
	out := make([]Point, len(r.trail))
	copy(out, r.trail)
	return out
}

// AppendTrail appends the current markers to dst without allocating a copy.
func (r *Racer) AppendTrail(dst []Point) []Point {
	return append(dst, r.trail...)
}

// Elapsed is the race duration for this racer: creation to finish, or to now
// while it is still running.
func (r *Racer) Elapsed(now time.Time) time.Duration {
	if !r.finishedAt.IsZero() {
		return r.finishedAt.Sub(r.createdAt)
	}
	return now.Sub(r.createdAt)
}

func (r *Racer) markFinished(at time.Time) {
	r.finishedAt = at
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, FullTurn)
	if a < 0 {
		a += FullTurn
	}
	return a
}
