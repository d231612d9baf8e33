package game

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"roach-race/internal/config"
)

// =============================================================================
// BENCHMARK SUITE: CRITICAL PATH PERFORMANCE TESTS
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

// endlessRace never finishes inside a benchmark run
func endlessRace(racers int) config.RaceConfig {
	cfg := config.DefaultRace()
	cfg.NumRacers = racers
	cfg.LapTarget = 1 << 30
	return cfg
}

func newBenchEngine(b *testing.B, racers int) *Engine {
	b.Helper()
	engine, err := NewEngine(config.EngineConfig{TickInterval: time.Millisecond}, endlessRace(racers),
		WithRand(rand.New(rand.NewSource(1))))
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

// -----------------------------------------------------------------------------
// ENGINE STEP BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkEngineStep_5Racers(b *testing.B)   { benchmarkEngineStep(b, 5) }
func BenchmarkEngineStep_50Racers(b *testing.B)  { benchmarkEngineStep(b, 50) }
func BenchmarkEngineStep_200Racers(b *testing.B) { benchmarkEngineStep(b, 200) }

func benchmarkEngineStep(b *testing.B, racers int) {
	engine := newBenchEngine(b, racers)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.Step()
	}
}

// -----------------------------------------------------------------------------
// SNAPSHOT BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkPublishSnapshot_5Racers(b *testing.B)   { benchmarkSnapshot(b, 5) }
func BenchmarkPublishSnapshot_200Racers(b *testing.B) { benchmarkSnapshot(b, 200) }

func benchmarkSnapshot(b *testing.B, racers int) {
	engine := newBenchEngine(b, racers)
	// Grow the trails so the copy has work to do
	for i := 0; i < 100; i++ {
		engine.Step()
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.mu.Lock()
		engine.publishSnapshot()
		engine.mu.Unlock()
	}
}

func BenchmarkSnapshotClone(b *testing.B) {
	engine := newBenchEngine(b, 50)
	for i := 0; i < 100; i++ {
		engine.Step()
	}
	snap := engine.GetSnapshot()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = snap.Clone()
	}
}

// -----------------------------------------------------------------------------
// RESTART BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkRestart(b *testing.B) {
	for _, racers := range []int{5, 50} {
		b.Run(fmt.Sprintf("%dRacers", racers), func(b *testing.B) {
			engine := newBenchEngine(b, racers)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := engine.Restart(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
