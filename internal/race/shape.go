package race

import (
	"fmt"
	"math"
)

// FullTurn is one lap worth of angle.
const FullTurn = 2 * math.Pi

// AngularStepScale converts speed into per-tick angle: speed is expressed in
// angle-units per 100 ticks.
const AngularStepScale = 100.0

// PulseAmplitude is how far the PulsingRadius curve swings from the base radius.
const PulseAmplitude = 50.0

// Shape is a closed trajectory curve. Numeric values match the trajectory codes
// shown in race results (1 circle, 2 ellipse, 3 pulsing radius).
type Shape int

const (
	Circle Shape = iota + 1
	Ellipse
	PulsingRadius
)

// Shapes is the full set racers pick from, uniformly.
var Shapes = []Shape{Circle, Ellipse, PulsingRadius}

// Point is a Cartesian position on the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Track is the geometry shared by every racer for the whole race.
type Track struct {
	Center        Point   `json:"center"`
	Radius        float64 `json:"radius"`
	TrailInterval int     `json:"trailInterval"`
}

// String returns a human-readable shape name
func (s Shape) String() string {
	switch s {
	case Circle:
		return "Circle"
	case Ellipse:
		return "Ellipse"
	case PulsingRadius:
		return "PulsingRadius"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// MarshalText lets snapshots carry shape names in JSON.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *Shape) UnmarshalText(text []byte) error {
	for _, shape := range Shapes {
		if shape.String() == string(text) {
			*s = shape
			return nil
		}
	}
	return fmt.Errorf("unknown shape %q", text)
}

// Position maps an angle on this curve to canvas coordinates.
func (s Shape) Position(angle float64, t Track) Point {
	cos, sin := math.Cos(angle), math.Sin(angle)

	switch s {
	case Ellipse:
		return Point{
			X: t.Center.X + 0.5*t.Radius*cos,
			Y: t.Center.Y + t.Radius*sin,
		}
	case PulsingRadius:
		r := t.Radius + PulseAmplitude*math.Sin(2*angle)
		return Point{
			X: t.Center.X + r*cos,
			Y: t.Center.Y + r*sin,
		}
	default:
		return Point{
			X: t.Center.X + t.Radius*cos,
			Y: t.Center.Y + t.Radius*sin,
		}
	}
}

// Acceleration returns the speed delta this shape applies on the given tick.
//   - Circle: constant +0.05 every tick
//   - Ellipse: +0.1 burst on ticks divisible by 10
//   - PulsingRadius: +0.05 on ticks divisible by 5
func (s Shape) Acceleration(tick int) float64 {
	switch s {
	case Circle:
		return 0.05
	case Ellipse:
		if tick%10 == 0 {
			return 0.1
		}
	case PulsingRadius:
		if tick%5 == 0 {
			return 0.05
		}
	}
	return 0
}

// Rand is the random source racers and races draw from.
// *math/rand.Rand satisfies it; tests inject scripted sources.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

func randomShape(rng Rand) Shape {
	return Shapes[rng.Intn(len(Shapes))]
}
