/*
package error contains simple functions for reporting fatal advect errors.
*/
package error

import (
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Logger is the logger errors are reported through. It can be replaced by
// the command line tool once it has parsed its log settings.
var Logger logrus.FieldLogger = logrus.StandardLogger()

// exit is replaced in tests.
var exit = os.Exit

// External reports an error and kills the program. It should be used when an
// error is something a user could reasonably be expected to fix through
// changes in configuration/data/environment. It has the same signature as
// the standard fmt.*printf() functions.
func External(format string, a ...interface{}) {
	Logger.Errorf("advect exited early with the following error:\n"+format, a...)
	exit(1)
}

// Internal reports an error along with a stack trace and kills the program.
// It should be used when the error requires a code dive to fix.
func Internal(format string, a ...interface{}) {
	Logger.WithField("stack_trace", string(debug.Stack())).Errorf(
		"advect exited early with the following internal error:\n"+format, a...)
	exit(1)
}
