package lib

/* thread.go contains functions useful for multi-threading. */

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/sched"
)

// SetThreads sets GOMAXPROCS to the number of threads the scheduler would use
// for a requested count and returns it. Non-positive counts use every CPU,
// and sched.EnvMaxThreads overrides n.
func SetThreads(n int, log logrus.FieldLogger) int {
	threads := sched.New(n, false, log).Threads
	runtime.GOMAXPROCS(threads)
	return threads
}
