package game

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize     = 1024                   // Circular buffer size
	MaxEventsPerSec     = 10000                  // Global rate limit
	MaxEventsPerRacer   = 100                    // Per-racer rate limit per second
	BatchFlushSize      = 64                     // Events per batch write
	BatchFlushInterval  = 100 * time.Millisecond // How often to flush
	RacerLimiterCleanup = 5 * time.Minute        // Idle time before a racer limiter is dropped
)

// EventLog is a bounded, rate-limited JSONL race log.
// Emit never blocks the tick: when the buffer is full the oldest event is dropped.
type EventLog struct {
	bufMu     sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64 // next sequence to assign
	readHead  uint64 // next sequence to flush

	globalLimiter *rate.Limiter
	racerLimiters sync.Map // map[string]*racerLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	filePath string
	file     *os.File
	enc      *json.Encoder
	fileMu   sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

type racerLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a stopped event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and begins the async writer.
// An empty path keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
		el.enc = json.NewEncoder(file)
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	log.Printf("📝 Event log started (%s)", el.describeSink())
	return nil
}

func (el *EventLog) describeSink() string {
	if el.filePath == "" {
		return "memory only"
	}
	return el.filePath
}

// Stop flushes pending events and closes the file. Safe to call twice.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			if err := el.file.Close(); err != nil {
				log.Printf("⚠️ Event log close failed: %v", err)
			}
			el.file = nil
			el.enc = nil
		}
		el.fileMu.Unlock()

		stats := el.Stats()
		log.Printf("📝 Event log closed: %d events, %d dropped, %d unwritten",
			stats.Total, stats.Dropped, stats.Pending)
	})
}

// Emit adds an event. Returns false if the log is stopped or rate limited.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// Per-racer limit keeps one runaway racer from starving the rest.
	if event.RacerKey != "" && !el.racerLimiter(event.RacerKey).Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	el.bufMu.Lock()
	el.writeHead++
	if el.writeHead-el.readHead > EventBufferSize {
		// Overwrite the oldest unflushed event
		el.readHead++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	event.Sequence = el.writeHead
	el.buffer[el.writeHead%EventBufferSize] = event
	el.bufMu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple builds and emits an event in one call
func (el *EventLog) EmitSimple(eventType EventType, raceID string, tickNum int, racerKey string, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, raceID, tickNum, racerKey, payload))
}

func (el *EventLog) racerLimiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.racerLimiters.Load(key); ok {
		entry := v.(*racerLimiterEntry)
		entry.lastUsed.Store(now)
		return entry.limiter
	}

	entry := &racerLimiterEntry{limiter: rate.NewLimiter(MaxEventsPerRacer, MaxEventsPerRacer/10)}
	entry.lastUsed.Store(now)
	actual, _ := el.racerLimiters.LoadOrStore(key, entry)
	return actual.(*racerLimiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Drain everything before exit
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop drops limiters for racers from previous races
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(RacerLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupRacerLimiters(time.Now().Add(-RacerLimiterCleanup))
		}
	}
}

func (el *EventLog) cleanupRacerLimiters(cutoff time.Time) {
	el.racerLimiters.Range(func(key, value interface{}) bool {
		if value.(*racerLimiterEntry).lastUsed.Load() < cutoff.UnixNano() {
			el.racerLimiters.Delete(key)
		}
		return true
	})
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		el.readHead++
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
	}
	return batch
}

func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.enc == nil {
		return
	}
	for _, event := range batch {
		if err := el.enc.Encode(event); err != nil {
			log.Printf("⚠️ Event log write failed: %v", err)
			return
		}
	}
}

// EventLogStats summarizes the log for the shutdown line
type EventLogStats struct {
	Total   uint64
	Dropped uint64
	Pending uint64
}

// Stats returns counters for monitoring
func (el *EventLog) Stats() EventLogStats {
	el.bufMu.Lock()
	pending := el.writeHead - el.readHead
	el.bufMu.Unlock()

	return EventLogStats{
		Total:   atomic.LoadUint64(&el.totalCount),
		Dropped: atomic.LoadUint64(&el.droppedCount),
		Pending: pending,
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the number of accepted events
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
