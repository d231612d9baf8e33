package game

import (
	"encoding/json"
	"time"

	"roach-race/internal/race"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeRaceStart
	EventTypeTick
	EventTypeLap
	EventTypeFinish
	EventTypeRaceOver
	EventTypeRestart
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is one line of the JSONL race log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	RaceID    string          `json:"raceId"`
	TickNum   int             `json:"tickNum"`
	RacerKey  string          `json:"racerKey,omitempty"` // source racer, used for rate limiting
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeRaceStart:
		return "race_start"
	case EventTypeTick:
		return "tick"
	case EventTypeLap:
		return "lap"
	case EventTypeFinish:
		return "finish"
	case EventTypeRaceOver:
		return "race_over"
	case EventTypeRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// MarshalText writes the type name instead of its number.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// RaceStartPayload describes a freshly created race
type RaceStartPayload struct {
	NumRacers int     `json:"numRacers"`
	LapTarget int     `json:"lapTarget"`
	Radius    float64 `json:"radius"`
}

// TickPayload is a tick boundary
type TickPayload struct {
	Active   int `json:"active"`
	Finished int `json:"finished"`
}

// LapPayload records a lap completion and the rerolled shape
type LapPayload struct {
	RacerID  int        `json:"racerId"`
	Lap      int        `json:"lap"`
	NewShape race.Shape `json:"newShape"`
	Speed    float64    `json:"speed"`
}

// FinishPayload records an eviction
type FinishPayload struct {
	RacerID   int     `json:"racerId"`
	Position  int     `json:"position"`
	Speed     float64 `json:"speed"`
	ElapsedMs int64   `json:"elapsedMs"`
}

// RaceOverPayload carries the final ranking
type RaceOverPayload struct {
	Ranking []race.RankEntry `json:"ranking"`
}

// RestartPayload links a restart to the race it replaced
type RestartPayload struct {
	PreviousRaceID string `json:"previousRaceId"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, raceID string, tickNum int, racerKey string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		RaceID:    raceID,
		TickNum:   tickNum,
		RacerKey:  racerKey,
		Payload:   EncodePayload(payload),
	}
}
