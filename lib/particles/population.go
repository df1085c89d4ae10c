package particles

import (
	"container/list"
	"sort"
	"sync"
	"sync/atomic"
)

// Population is the set of live particles owned by one rank. Records can be
// removed in O(1) while the population is being iterated over, including
// concurrently from several workers.
type Population struct {
	mu    sync.Mutex
	l     *list.List
	alive atomic.Int64
}

// NewPopulation returns an empty Population.
func NewPopulation() *Population {
	return &Population{l: list.New()}
}

// Add appends r to the population. r must not belong to another population.
func (p *Population) Add(r *Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r.pop = p
	r.elem = p.l.PushBack(r)
	p.alive.Add(1)
}

// Remove removes r from the population. It returns false if r wasn't a
// member. Safe to call from multiple goroutines.
func (p *Population) Remove(r *Record) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.pop != p {
		return false
	}
	p.l.Remove(r.elem)
	r.pop, r.elem = nil, nil
	p.alive.Add(-1)
	return true
}

// Alive returns the number of records currently in the population.
func (p *Population) Alive() int { return int(p.alive.Load()) }

// Records returns the members of the population in insertion order. The
// returned slice is a copy, so the population may be modified while it is
// being used.
func (p *Population) Records() []*Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Record, 0, p.l.Len())
	for e := p.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Record))
	}
	return out
}

// SortedRecords returns the members of the population ordered by UniqueID.
func (p *Population) SortedRecords() []*Record {
	out := p.Records()
	sort.Slice(out, func(i, j int) bool {
		return out[i].UniqueID < out[j].UniqueID
	})
	return out
}

// Clear removes every record.
func (p *Population) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for e := p.l.Front(); e != nil; e = e.Next() {
		r := e.Value.(*Record)
		r.pop, r.elem = nil, nil
	}
	p.l.Init()
	p.alive.Store(0)
}
