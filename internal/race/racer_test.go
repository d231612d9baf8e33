package race

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

const epsilon = 1e-9

// fixedRand always picks the same shape index and float.
type fixedRand struct {
	shapeIdx int
	f        float64
}

func (r fixedRand) Intn(n int) int   { return r.shapeIdx % n }
func (r fixedRand) Float64() float64 { return r.f }

func testTrack() Track {
	return Track{Center: Point{X: 400, Y: 400}, Radius: 300, TrailInterval: 5}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// TestAdvanceWrapsAngle covers the near-2π scenario: 6.2 + 100/100 wraps to 7.2 - 2π
func TestAdvanceWrapsAngle(t *testing.T) {
	r := NewRacer(1, Circle, 100, 6.2, testTrack(), fixedRand{}, time.Now())

	lapped := r.Advance(1)

	if !lapped {
		t.Fatal("Expected lap completion")
	}
	want := 7.2 - 2*math.Pi
	if !approx(r.Angle(), want) {
		t.Errorf("Expected angle %f, got %f", want, r.Angle())
	}
	if r.Laps() != 1 {
		t.Errorf("Expected 1 lap, got %d", r.Laps())
	}
}

func TestAdvanceKeepsAngleInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 20; i++ {
		speed := rng.Float64() * 50
		r := NewRacer(i+1, Shapes[rng.Intn(3)], speed, rng.Float64()*FullTurn, testTrack(), rng, time.Now())

		prevLaps := r.Laps()
		for tick := 1; tick <= 2000; tick++ {
			r.Advance(tick)

			if r.Angle() < 0 || r.Angle() >= FullTurn {
				t.Fatalf("racer %d tick %d: angle %f out of [0, 2π)", r.ID(), tick, r.Angle())
			}
			delta := r.Laps() - prevLaps
			if delta < 0 || delta > 1 {
				t.Fatalf("racer %d tick %d: laps changed by %d", r.ID(), tick, delta)
			}
			prevLaps = r.Laps()
		}
	}
}

func TestAdvanceOvershootCountsOneLap(t *testing.T) {
	// 2000/100 = 20 rad, more than three full turns in one step
	r := NewRacer(1, Circle, 2000, 0, testTrack(), fixedRand{}, time.Now())

	r.Advance(1)

	if r.Laps() != 1 {
		t.Errorf("Expected exactly 1 lap, got %d", r.Laps())
	}
	if r.Angle() < 0 || r.Angle() >= FullTurn {
		t.Errorf("Angle %f out of range", r.Angle())
	}
	if !approx(r.Angle(), math.Mod(20, FullTurn)) {
		t.Errorf("Expected angle %f, got %f", math.Mod(20, FullTurn), r.Angle())
	}
}

func TestLapClearsTrailAndRerollsShape(t *testing.T) {
	// fixedRand{shapeIdx: 2} rerolls to PulsingRadius
	r := NewRacer(1, Circle, 10, FullTurn-0.55, testTrack(), fixedRand{shapeIdx: 2}, time.Now())

	// ~0.1 rad per advance: five advances stay in the lap, the sixth wraps
	for tick := 1; tick <= 5; tick++ {
		if r.Advance(tick) {
			t.Fatalf("Unexpected lap on tick %d", tick)
		}
	}
	if len(r.Trail()) != 1 {
		t.Fatalf("Expected 1 marker before lap, got %d", len(r.Trail()))
	}
	if r.TrailEmissionCount() != 5 {
		t.Fatalf("Expected emission counter 5, got %d", r.TrailEmissionCount())
	}

	if !r.Advance(6) {
		t.Fatal("Expected lap on sixth advance")
	}
	if r.Shape() != PulsingRadius {
		t.Errorf("Expected shape rerolled to PulsingRadius, got %v", r.Shape())
	}
	// Old markers are gone; only the lap-start position is recorded.
	trail := r.Trail()
	if len(trail) != 1 {
		t.Fatalf("Expected trail reset to the lap-start marker, got %d markers", len(trail))
	}
	if trail[0] != r.Position() {
		t.Errorf("Expected lap-start marker at %v, got %v", r.Position(), trail[0])
	}
	if r.TrailEmissionCount() != 1 {
		t.Errorf("Expected emission counter 1 after reset, got %d", r.TrailEmissionCount())
	}
}

func TestLapTickUsesNewShapeAcceleration(t *testing.T) {
	// Circle would add 0.05 on tick 3; the rerolled Ellipse adds nothing (3 % 10 != 0).
	r := NewRacer(1, Circle, 100, 6.2, testTrack(), fixedRand{shapeIdx: 1}, time.Now())

	r.Advance(3)

	if r.Shape() != Ellipse {
		t.Fatalf("Expected Ellipse after reroll, got %v", r.Shape())
	}
	if r.Acceleration() != 0 {
		t.Errorf("Expected acceleration 0 from Ellipse rule, got %f", r.Acceleration())
	}
	if r.Speed() != 100 {
		t.Errorf("Expected speed unchanged at 100, got %f", r.Speed())
	}
}

func TestCircleAcceleration(t *testing.T) {
	r := NewRacer(1, Circle, 1.0, 0, testTrack(), fixedRand{}, time.Now())

	for tick := 1; tick <= 10; tick++ {
		before := r.Speed()
		r.Advance(tick * 7) // tick value is irrelevant for circles
		if !approx(r.Speed()-before, 0.05) {
			t.Fatalf("tick %d: expected +0.05, got %+f", tick, r.Speed()-before)
		}
		if r.Acceleration() != 0.05 {
			t.Fatalf("tick %d: expected acceleration 0.05, got %f", tick, r.Acceleration())
		}
	}
	if !approx(r.Speed(), 1.5) {
		t.Errorf("Expected speed 1.5 after 10 advances, got %f", r.Speed())
	}
}

func TestPeriodicAcceleration(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		delta float64
	}{
		{"ellipse bursts on tick 0 only", Ellipse, 0.1},
		{"pulsing radius on ticks 0 and 5", PulsingRadius, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRacer(1, tt.shape, 1.0, 0, testTrack(), fixedRand{}, time.Now())
			for tick := 0; tick <= 9; tick++ {
				r.Advance(tick)
			}
			if !approx(r.Speed()-1.0, tt.delta) {
				t.Errorf("Expected total delta %f, got %f", tt.delta, r.Speed()-1.0)
			}
		})
	}
}

func TestAccelerationResetsBetweenBursts(t *testing.T) {
	r := NewRacer(1, Ellipse, 1.0, 0, testTrack(), fixedRand{}, time.Now())

	r.Advance(10)
	if r.Acceleration() != 0.1 {
		t.Errorf("Expected burst 0.1 on tick 10, got %f", r.Acceleration())
	}
	r.Advance(11)
	if r.Acceleration() != 0 {
		t.Errorf("Expected acceleration 0 on tick 11, got %f", r.Acceleration())
	}
}

func TestTrailEmissionInterval(t *testing.T) {
	r := NewRacer(1, Circle, 1.0, 0, testTrack(), fixedRand{}, time.Now())

	var emitted []Point
	for tick := 1; tick <= 11; tick++ {
		before := len(r.Trail())
		r.Advance(tick)
		if len(r.Trail()) > before {
			emitted = append(emitted, r.Position())
			if (tick-1)%5 != 0 {
				t.Errorf("Marker emitted on advance %d, expected only on advances 1, 6, 11", tick)
			}
		}
	}

	if len(emitted) != 3 {
		t.Fatalf("Expected 3 markers, got %d", len(emitted))
	}
	for i, p := range r.Trail() {
		if p != emitted[i] {
			t.Errorf("marker %d: expected %v, got %v", i, emitted[i], p)
		}
	}
}

func TestNewRacerInitialState(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRacer(3, Ellipse, 1.25, math.Pi/2, testTrack(), fixedRand{}, created)

	if r.Name() != "Roach 3" {
		t.Errorf("Expected name 'Roach 3', got '%s'", r.Name())
	}
	if r.Key() != "roach-003" {
		t.Errorf("Expected key 'roach-003', got '%s'", r.Key())
	}
	if len(r.Trail()) != 0 {
		t.Errorf("Expected empty trail, got %d markers", len(r.Trail()))
	}
	want := Ellipse.Position(math.Pi/2, testTrack())
	if r.Position() != want {
		t.Errorf("Expected initial position %v, got %v", want, r.Position())
	}
	if r.IsFinished(1) {
		t.Error("New racer should not be finished")
	}
	if got := r.Elapsed(created.Add(3 * time.Second)); got != 3*time.Second {
		t.Errorf("Expected running elapsed 3s, got %v", got)
	}
}

func TestTrailReturnsCopy(t *testing.T) {
	r := NewRacer(1, Circle, 1.0, 0, testTrack(), fixedRand{}, time.Now())
	r.Advance(1)

	trail := r.Trail()
	trail[0] = Point{X: -1, Y: -1}

	if r.Trail()[0] == trail[0] {
		t.Error("Mutating returned trail should not affect racer state")
	}
}
