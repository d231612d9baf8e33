// Package leaderboard ranks racers by live speed.
//
// The ordering structure is a skip list with span counts for O(log n) rank
// queries (Pugh 1990; the same layout Redis uses for sorted sets). Entries are
// ordered by score descending, then key ascending, so racers with equal speed
// keep their creation order when keys are zero-padded.
package leaderboard

import (
	"math/rand"
	"sync"
)

const (
	maxLevel         = 32
	levelProbability = 0.25
)

// Entry is a scored key.
type Entry struct {
	Key   string
	Score float64
}

// before reports whether a ranks ahead of b.
func (a Entry) before(b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Key < b.Key
}

type skipNode struct {
	entry Entry
	next  []*skipNode
	span  []int // nodes skipped by next[i]
}

// SkipList is a concurrent sorted set with rank queries.
type SkipList struct {
	mu     sync.RWMutex
	head   *skipNode
	level  int
	length int
	scores map[string]float64
	rng    *rand.Rand
}

// NewSkipList creates an empty skip list. The seed only affects node heights.
func NewSkipList(seed int64) *SkipList {
	return &SkipList{
		head: &skipNode{
			next: make([]*skipNode, maxLevel),
			span: make([]int, maxLevel),
		},
		level:  1,
		scores: make(map[string]float64),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (sl *SkipList) randomLevel() int {
	level := 1
	for level < maxLevel && sl.rng.Float64() < levelProbability {
		level++
	}
	return level
}

// Set inserts key or moves it to its new score.
func (sl *SkipList) Set(key string, score float64) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if old, ok := sl.scores[key]; ok {
		if old == score {
			return
		}
		sl.remove(Entry{Key: key, Score: old})
	}
	sl.insert(Entry{Key: key, Score: score})
	sl.scores[key] = score
}

func (sl *SkipList) insert(e Entry) {
	var update [maxLevel]*skipNode
	var rank [maxLevel]int

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		if i < sl.level-1 {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && x.next[i].entry.before(e) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	level := sl.randomLevel()
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].span[i] = sl.length
		}
		sl.level = level
	}

	node := &skipNode{
		entry: e,
		next:  make([]*skipNode, level),
		span:  make([]int, level),
	}
	for i := 0; i < level; i++ {
		node.next[i] = update[i].next[i]
		update[i].next[i] = node
		node.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	for i := level; i < sl.level; i++ {
		update[i].span[i]++
	}
	sl.length++
}

// Remove deletes key. Returns false if it was not present.
func (sl *SkipList) Remove(key string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	score, ok := sl.scores[key]
	if !ok {
		return false
	}
	sl.remove(Entry{Key: key, Score: score})
	delete(sl.scores, key)
	return true
}

func (sl *SkipList) remove(e Entry) {
	var update [maxLevel]*skipNode

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && x.next[i].entry.before(e) {
			x = x.next[i]
		}
		update[i] = x
	}

	node := x.next[0]
	if node == nil || node.entry.Key != e.Key {
		return
	}

	for i := 0; i < sl.level; i++ {
		if update[i].next[i] == node {
			update[i].span[i] += node.span[i] - 1
			update[i].next[i] = node.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for sl.level > 1 && sl.head.next[sl.level-1] == nil {
		sl.level--
	}
	sl.length--
}

// Rank returns the 1-based rank of key, or 0 if absent.
func (sl *SkipList) Rank(key string) int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	score, ok := sl.scores[key]
	if !ok {
		return 0
	}
	target := Entry{Key: key, Score: score}

	rank := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && !target.before(x.next[i].entry) {
			rank += x.span[i]
			x = x.next[i]
		}
		if x != sl.head && x.entry.Key == key {
			return rank
		}
	}
	return 0
}

// Score returns the score stored for key.
func (sl *SkipList) Score(key string) (float64, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	s, ok := sl.scores[key]
	return s, ok
}

// ByRank returns the entry at a 1-based rank.
func (sl *SkipList) ByRank(rank int) (Entry, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if rank <= 0 || rank > sl.length {
		return Entry{}, false
	}

	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] <= rank {
			traversed += x.span[i]
			x = x.next[i]
		}
		if traversed == rank {
			return x.entry, true
		}
	}
	return Entry{}, false
}

// Range returns entries with ranks in [start, end], 1-based and inclusive.
func (sl *SkipList) Range(start, end int) []Entry {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if start < 1 {
		start = 1
	}
	if end > sl.length {
		end = sl.length
	}
	if start > end {
		return nil
	}

	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] < start {
			traversed += x.span[i]
			x = x.next[i]
		}
	}

	out := make([]Entry, 0, end-start+1)
	for x = x.next[0]; x != nil && traversed < end; x = x.next[0] {
		traversed++
		out = append(out, x.entry)
	}
	return out
}

// Len returns the number of entries.
func (sl *SkipList) Len() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.length
}

// Clear removes all entries.
func (sl *SkipList) Clear() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	for i := range sl.head.next {
		sl.head.next[i] = nil
		sl.head.span[i] = 0
	}
	sl.level = 1
	sl.length = 0
	sl.scores = make(map[string]float64)
}
