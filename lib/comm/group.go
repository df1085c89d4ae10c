package comm

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Group is a set of ranks that run as goroutines in one process.
type Group struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	gen     int
	arrived int
	pending [][]interface{}
	result  [][]interface{}
	err     error
}

// NewGroup creates a group with the given number of ranks.
func NewGroup(size int) *Group {
	g := &Group{size: size}
	g.cond = sync.NewCond(&g.mu)
	g.pending = make([][]interface{}, size)
	return g
}

// Member returns the Communicator for one rank of the group.
func (g *Group) Member(rank int) Communicator { return &member{g, rank} }

// Abort wakes every rank blocked in a collective. They, and every later
// collective, return an error wrapping ErrAborted.
func (g *Group) Abort(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		g.err = fmt.Errorf("%w: %w", ErrAborted, cause)
	}
	g.cond.Broadcast()
}

// collective deposits this rank's row and waits for every other rank. The
// returned matrix is indexed by sender and must not be modified.
func (g *Group) collective(rank int, row []interface{}) ([][]interface{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}

	g.pending[rank] = row
	g.arrived++
	gen := g.gen
	if g.arrived == g.size {
		g.result, g.pending = g.pending, make([][]interface{}, g.size)
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
	} else {
		for gen == g.gen && g.err == nil {
			g.cond.Wait()
		}
		if gen == g.gen {
			return nil, g.err
		}
	}
	// The next collective can't finish until this rank joins it, so result
	// still belongs to this generation.
	return g.result, nil
}

type member struct {
	g    *Group
	rank int
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.g.size }

func (m *member) Barrier() error {
	_, err := m.g.collective(m.rank, nil)
	return err
}

func (m *member) AllGather(x interface{}) ([]interface{}, error) {
	res, err := m.g.collective(m.rank, []interface{}{x})
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, m.g.size)
	for i := range out {
		out[i] = res[i][0]
	}
	return out, nil
}

func (m *member) AllToAll(send []interface{}) ([]interface{}, error) {
	if len(send) != m.g.size {
		err := fmt.Errorf("AllToAll was given %d values for %d ranks",
			len(send), m.g.size)
		m.g.Abort(err)
		return nil, err
	}
	res, err := m.g.collective(m.rank, send)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, m.g.size)
	for i := range out {
		out[i] = res[i][m.rank]
	}
	return out, nil
}

// Run starts size ranks, each running fn with its own Communicator, and
// waits for all of them. If any rank fails or panics, the others are woken
// from their collectives and the first error is returned. log may be nil.
func Run(
	ctx context.Context, size int, log logrus.FieldLogger,
	fn func(ctx context.Context, c Communicator) error,
) error {
	if size < 1 {
		return fmt.Errorf("a run needs at least one rank, not %d", size)
	}
	if size == 1 {
		return fn(ctx, Serial{})
	}

	grp := NewGroup(size)
	eg, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		rank := rank
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					if log != nil {
						log.WithFields(logrus.Fields{
							"rank": rank, "panic": r,
							"stack_trace": string(debug.Stack()),
						}).Error("Rank panicked.")
					}
					err = fmt.Errorf("rank %d panicked: %v", rank, r)
				}
				if err != nil {
					grp.Abort(err)
				}
			}()
			return fn(ctx, grp.Member(rank))
		})
	}
	return eg.Wait()
}
