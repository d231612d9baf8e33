// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for race, engine, canvas and audio settings.
//
// Defaults reproduce the classic race (5 racers, 5 laps, radius 300 around
// (400,400), one tick every 50ms). Environment variables override them.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRace is returned when race options cannot produce a well-formed race.
var ErrInvalidRace = errors.New("invalid race configuration")

// =============================================================================
// RACE CONFIGURATION
// =============================================================================

// RaceConfig holds every option the simulation core recognizes.
type RaceConfig struct {
	NumRacers     int     // Racers created at race start
	LapTarget     int     // Laps needed to finish
	BaseRadius    float64 // Base trajectory radius R
	CenterX       float64 // Trajectory center C.x
	CenterY       float64 // Trajectory center C.y
	TrailInterval int     // Emit a trail marker every N advances since the last lap
	SpeedMin      float64 // Initial speed lower bound (inclusive)
	SpeedMax      float64 // Initial speed upper bound
	Seed          int64   // RNG seed; 0 means seed from the clock
}

// DefaultRace returns the classic five-roach, five-lap race.
func DefaultRace() RaceConfig {
	return RaceConfig{
		NumRacers:     5,
		LapTarget:     5,
		BaseRadius:    300,
		CenterX:       400,
		CenterY:       400,
		TrailInterval: 5,
		SpeedMin:      0.5,
		SpeedMax:      2.5,
	}
}

// RaceFromEnv returns race configuration with environment variable overrides.
// Values are taken as-is so that Validate can reject bad input loudly.
func RaceFromEnv() RaceConfig {
	cfg := DefaultRace()

	cfg.NumRacers = getEnvInt("NUM_RACERS", cfg.NumRacers)
	cfg.LapTarget = getEnvInt("LAP_TARGET", cfg.LapTarget)
	cfg.BaseRadius = getEnvFloat("BASE_RADIUS", cfg.BaseRadius)
	cfg.CenterX = getEnvFloat("CENTER_X", cfg.CenterX)
	cfg.CenterY = getEnvFloat("CENTER_Y", cfg.CenterY)
	cfg.TrailInterval = getEnvInt("TRAIL_INTERVAL", cfg.TrailInterval)
	cfg.SpeedMin = getEnvFloat("SPEED_MIN", cfg.SpeedMin)
	cfg.SpeedMax = getEnvFloat("SPEED_MAX", cfg.SpeedMax)
	cfg.Seed = int64(getEnvInt("RACE_SEED", int(cfg.Seed)))

	return cfg
}

// Validate reports the first option that would make the simulation ill-defined.
func (c RaceConfig) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"base radius", c.BaseRadius},
		{"center x", c.CenterX},
		{"center y", c.CenterY},
		{"speed min", c.SpeedMin},
		{"speed max", c.SpeedMax},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %g", ErrInvalidRace, f.name, f.v)
		}
	}

	switch {
	case c.NumRacers < 1:
		return fmt.Errorf("%w: need at least one racer, got %d", ErrInvalidRace, c.NumRacers)
	case c.LapTarget < 1:
		return fmt.Errorf("%w: lap target must be positive, got %d", ErrInvalidRace, c.LapTarget)
	case c.BaseRadius <= 0:
		return fmt.Errorf("%w: base radius must be positive, got %g", ErrInvalidRace, c.BaseRadius)
	case c.TrailInterval < 1:
		return fmt.Errorf("%w: trail interval must be positive, got %d", ErrInvalidRace, c.TrailInterval)
	case c.SpeedMin < 0:
		return fmt.Errorf("%w: speed range starts below zero (%g)", ErrInvalidRace, c.SpeedMin)
	case c.SpeedMax < c.SpeedMin:
		return fmt.Errorf("%w: speed range [%g, %g] is inverted", ErrInvalidRace, c.SpeedMin, c.SpeedMax)
	}
	return nil
}

// =============================================================================
// ENGINE CONFIGURATION
// =============================================================================

// EngineConfig controls the driver that calls Tick on a fixed cadence.
type EngineConfig struct {
	TickInterval time.Duration // Time between ticks
	EventLogPath string        // JSONL audit log; empty disables file output
}

// DefaultEngine ticks every 50ms.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		TickInterval: 50 * time.Millisecond,
		EventLogPath: "events.jsonl",
	}
}

// EngineFromEnv returns engine configuration with environment variable overrides.
func EngineFromEnv() EngineConfig {
	cfg := DefaultEngine()

	if ms := getEnvInt("TICK_INTERVAL_MS", 0); ms > 0 {
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	}
	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = p
	}

	return cfg
}

// =============================================================================
// CANVAS CONFIGURATION
// =============================================================================

// VideoConfig holds renderer settings.
type VideoConfig struct {
	Width          int
	Height         int
	FontPath       string // TTF file; empty falls back to system fonts, then the built-in Go font
	BackgroundPath string // optional image stretched over the canvas
}

// DefaultVideo returns an 800x800 canvas.
func DefaultVideo() VideoConfig {
	return VideoConfig{Width: 800, Height: 800}
}

// VideoFromEnv returns canvas configuration with environment variable overrides.
func VideoFromEnv() VideoConfig {
	cfg := DefaultVideo()

	if w := getEnvInt("CANVAS_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("CANVAS_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if p := os.Getenv("FONT_PATH"); p != "" {
		cfg.FontPath = p
	}
	if p := os.Getenv("BACKGROUND_PATH"); p != "" {
		cfg.BackgroundPath = p
	}

	return cfg
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds background music settings.
type AudioConfig struct {
	MusicPath string
	Volume    float64 // Starting volume (0.0 to 1.0)
	FadeStep  float64 // Volume removed per fade step
	FadeEvery int     // Fade on ticks divisible by this
	Enabled   bool
}

// DefaultAudio returns the default audio configuration.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		MusicPath: "assets/music/background.ogg",
		Volume:    1.0,
		FadeStep:  0.1,
		FadeEvery: 10,
		Enabled:   true,
	}
}

// AudioFromEnv returns audio configuration with environment variable overrides.
func AudioFromEnv() AudioConfig {
	cfg := DefaultAudio()

	if p := os.Getenv("MUSIC_PATH"); p != "" {
		cfg.MusicPath = p
	}
	if v := getEnvFloat("MUSIC_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}
	if os.Getenv("MUSIC_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	CORSOrigins  []string // nil means localhost only
	DebugEnabled bool
	DebugAddr    string // pprof and /metrics, localhost only
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:         3000,
		DebugEnabled: true,
		DebugAddr:    "127.0.0.1:6060",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	if os.Getenv("DEBUG_SERVER") == "false" {
		cfg.DebugEnabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.DebugAddr = addr
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Race   RaceConfig
	Engine EngineConfig
	Video  VideoConfig
	Audio  AudioConfig
	Server ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Race:   RaceFromEnv(),
		Engine: EngineFromEnv(),
		Video:  VideoFromEnv(),
		Audio:  AudioFromEnv(),
		Server: ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
