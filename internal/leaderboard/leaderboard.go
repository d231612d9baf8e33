package leaderboard

import "sync"

// Leaderboard ranks racers by their current speed.
//
// Operations:
//   - UpdateRacer: O(log n)
//   - GetRank: O(log n)
//   - GetTop: O(log n + k)
//   - GetAround: O(log n + k)
type Leaderboard struct {
	list *SkipList
	mu   sync.RWMutex // held across batch updates
}

// Standing is one row of the live leaderboard.
type Standing struct {
	Key   string  `json:"key"`
	Speed float64 `json:"speed"`
	Rank  int     `json:"rank"` // 1 = fastest
}

// New creates an empty leaderboard.
func New() *Leaderboard {
	return &Leaderboard{list: NewSkipList(1)}
}

// UpdateRacer sets the racer's speed.
func (lb *Leaderboard) UpdateRacer(key string, speed float64) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	lb.list.Set(key, speed)
}

// BatchUpdate applies all speeds so readers never see a half-updated tick.
func (lb *Leaderboard) BatchUpdate(speeds map[string]float64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	for key, speed := range speeds {
		lb.list.Set(key, speed)
	}
}

// Remove drops a racer.
func (lb *Leaderboard) Remove(key string) {
	lb.list.Remove(key)
}

// GetRank returns the racer's 1-based rank, or 0 when unknown.
func (lb *Leaderboard) GetRank(key string) int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.list.Rank(key)
}

// GetTop returns the n fastest racers.
func (lb *Leaderboard) GetTop(n int) []Standing {
	return lb.GetRange(1, n)
}

// GetAtRank returns the racer at rank, or nil.
func (lb *Leaderboard) GetAtRank(rank int) *Standing {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	e, ok := lb.list.ByRank(rank)
	if !ok {
		return nil
	}
	return &Standing{Key: e.Key, Speed: e.Score, Rank: rank}
}

// GetAround returns up to above racers ahead of key, key itself and up to
// below racers behind it.
func (lb *Leaderboard) GetAround(key string, above, below int) []Standing {
	rank := lb.GetRank(key)
	if rank == 0 {
		return nil
	}
	start := rank - above
	if start < 1 {
		start = 1
	}
	return lb.GetRange(start, rank+below)
}

// GetRange returns standings with ranks in [start, end].
func (lb *Leaderboard) GetRange(start, end int) []Standing {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if start < 1 {
		start = 1
	}
	entries := lb.list.Range(start, end)
	out := make([]Standing, len(entries))
	for i, e := range entries {
		out[i] = Standing{Key: e.Key, Speed: e.Score, Rank: start + i}
	}
	return out
}

// ForEach walks standings in rank order until fn returns false.
func (lb *Leaderboard) ForEach(fn func(s Standing) bool) {
	for _, s := range lb.GetRange(1, lb.Length()) {
		if !fn(s) {
			return
		}
	}
}

// Length returns the number of ranked racers.
func (lb *Leaderboard) Length() int {
	return lb.list.Len()
}

// Clear removes every racer.
func (lb *Leaderboard) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.list.Clear()
}
