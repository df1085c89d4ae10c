/*
package comm contains the collective operations used to move particles
between ranks. Every operation is collective: all ranks must call it, in the
same order, before any of them returns.
*/
package comm

import (
	"errors"
	"fmt"
)

// ErrAborted is returned by collectives when another rank has failed.
var ErrAborted = errors.New("collective aborted by another rank")

// Communicator connects the ranks of a run.
type Communicator interface {
	Rank() int
	Size() int
	// Barrier returns once every rank has called it.
	Barrier() error
	// AllGather returns x from every rank, indexed by rank.
	AllGather(x interface{}) ([]interface{}, error)
	// AllToAll sends send[i] to rank i and returns the values every rank
	// sent to this one, indexed by sender.
	AllToAll(send []interface{}) ([]interface{}, error)
}

// Serial is the Communicator of a single-rank run.
type Serial struct{}

// Type assertions
var (
	_ Communicator = Serial{}
	_ Communicator = &member{}
)

func (Serial) Rank() int      { return 0 }
func (Serial) Size() int      { return 1 }
func (Serial) Barrier() error { return nil }

func (Serial) AllGather(x interface{}) ([]interface{}, error) {
	return []interface{}{x}, nil
}

func (Serial) AllToAll(send []interface{}) ([]interface{}, error) {
	if len(send) != 1 {
		return nil, fmt.Errorf("AllToAll was given %d values for 1 rank", len(send))
	}
	return []interface{}{send[0]}, nil
}

// AllGatherInts gathers one int from every rank.
func AllGatherInts(c Communicator, x int) ([]int, error) {
	vals, err := c.AllGather(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for i := range vals {
		out[i] = vals[i].(int)
	}
	return out, nil
}

// AllReduceSum returns the sum of x over every rank.
func AllReduceSum(c Communicator, x int) (int, error) {
	vals, err := AllGatherInts(c, x)
	if err != nil {
		return 0, err
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return sum, nil
}

// ExclusiveScan returns the sum of x over the ranks below this one, and the
// sum over all ranks.
func ExclusiveScan(c Communicator, x int) (offset, total int, err error) {
	vals, err := AllGatherInts(c, x)
	if err != nil {
		return 0, 0, err
	}
	for i, v := range vals {
		if i < c.Rank() {
			offset += v
		}
		total += v
	}
	return offset, total, nil
}
