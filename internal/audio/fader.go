// Package audio plays the race soundtrack and fades it out as the race goes on.
package audio

import "sync"

// Fader lowers a volume by a fixed step on every tick divisible by every.
// Volume never drops below zero.
type Fader struct {
	mu     sync.Mutex
	start  float64
	volume float64
	step   float64
	every  int
}

// NewFader creates a fader at start volume. every < 1 disables fading.
func NewFader(start, step float64, every int) *Fader {
	return &Fader{start: clamp(start), volume: clamp(start), step: step, every: every}
}

// OnTick applies the fade rule for tick and returns the resulting volume
func (f *Fader) OnTick(tick int) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.every > 0 && tick%f.every == 0 {
		f.volume = clamp(f.volume - f.step)
	}
	return f.volume
}

// Volume returns the current volume
func (f *Fader) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

// Reset restores the start volume for a new race
func (f *Fader) Reset() {
	f.mu.Lock()
	f.volume = f.start
	f.mu.Unlock()
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
