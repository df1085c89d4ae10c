/*
package sched runs the per-particle integration step over a population,
either sequentially or on a bounded pool of goroutines. Both modes give the
same results as long as each call only touches its own particle.
*/
package sched

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSerialThreshold is the population size below which work is
	// always done sequentially.
	DefaultSerialThreshold = 100
	// EnvMaxThreads overrides the thread count when set.
	EnvMaxThreads = "ADVECT_MAX_THREADS"
)

// Context is the scheduler state for one engine.
type Context struct {
	Threads         int
	ForceSerial     bool
	SerialThreshold int
	log             logrus.FieldLogger
}

// New creates a Context. A non-positive thread count means one thread per
// CPU. EnvMaxThreads takes precedence over threads, and counts above the
// CPU count are clamped with a warning. log may be nil.
func New(threads int, forceSerial bool, log logrus.FieldLogger) *Context {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}

	if env := os.Getenv(EnvMaxThreads); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil || n < 1 {
			log.WithField(EnvMaxThreads, env).Warn(
				"Ignoring invalid thread count in environment.")
		} else {
			threads = n
		}
	}

	ncpu := runtime.NumCPU()
	if threads <= 0 {
		threads = ncpu
	} else if threads > ncpu {
		log.WithFields(logrus.Fields{
			"threads": threads, "cpus": ncpu,
		}).Warn("More threads requested than CPUs. Using one thread per CPU.")
		threads = ncpu
	}

	return &Context{
		Threads: threads, ForceSerial: forceSerial,
		SerialThreshold: DefaultSerialThreshold, log: log,
	}
}

// Serial returns true if a batch of n items would run sequentially.
func (c *Context) Serial(n int) bool {
	return c.ForceSerial || c.Threads <= 1 || n < c.SerialThreshold
}

// Run calls fn(i) once for every i in [0, n). The context is only checked
// before the batch starts. The first error, or a recovered panic, is
// returned once every started call has finished.
func (c *Context) Run(ctx context.Context, n int, fn func(i int) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.Serial(n) {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	chunks := c.Threads
	if chunks > n {
		chunks = n
	}

	var eg errgroup.Group
	eg.SetLimit(c.Threads)
	for k := 0; k < chunks; k++ {
		start, end := k*n/chunks, (k+1)*n/chunks
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					c.log.WithFields(logrus.Fields{
						"panic": r, "stack_trace": string(debug.Stack()),
					}).Error("Worker panic recovered.")
					err = fmt.Errorf("worker panic: %v", r)
				}
			}()
			for i := start; i < end; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
