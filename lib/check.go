package lib

/* check.go contains the core functions of advect's "check" mode. */

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/catio"
	"github.com/phil-mansfield/advect/lib/tracer"
)

// Problem is one issue found by Check.
type Problem struct {
	Err error
	// Fatal problems stop a run. The rest only make it suspicious.
	Fatal bool
}

// Check tests the provided Args against the files they point to. With
// CrashOnError it stops at the first fatal problem and returns it as an
// error. With WarnOnError every problem is logged as a warning. If Check
// completes, it returns every problem it found, so an empty list means all
// tests passed. Non-fatal problems are always logged.
func Check(args *Args, log logrus.FieldLogger) (problems []Problem, err error) {
	report := func(fatal bool, format string, a ...interface{}) error {
		p := Problem{fmt.Errorf(format, a...), fatal}
		problems = append(problems, p)
		if fatal && args.Strictness == CrashOnError {
			return p.Err
		}
		log.Warn(p.Err.Error())
		return nil
	}

	gf, err := args.NewProvider()
	if err != nil {
		if err := report(true, "Could not use the snapshot files: %w", err); err != nil {
			return problems, err
		}
	} else if times, err := gf.Times(); err != nil {
		if err := report(true, "Could not read the snapshot times: %w", err); err != nil {
			return problems, err
		}
	} else {
		if e := checkTimes(args, times, report); e != nil {
			return problems, e
		}
		snap, err := gf.Snapshot(0)
		if err != nil {
			err = report(true, "Could not read the first snapshot: %w", err)
		} else if err = snap.CheckSchema(snap.Schema()); err != nil {
			err = report(true, "The first snapshot is inconsistent: %w", err)
		}
		if err != nil {
			return problems, err
		}
	}

	src := tracer.NewTextSource(args.SeedFile)
	if pts, _, err := src.Seeds(args.Tracer.StartTime); err != nil {
		if err := report(true, "Could not read the seed file: %w", err); err != nil {
			return problems, err
		}
	} else if len(pts) == 0 {
		if err := report(false, "The seed file %s is empty.", args.SeedFile); err != nil {
			return problems, err
		}
	}

	if args.SelectionFile != "" {
		if _, err := ReadSelection(args.SelectionFile); err != nil {
			if err := report(true, "Could not read the selection file: %w", err); err != nil {
				return problems, err
			}
		}
	}

	if args.Write {
		if info, err := os.Stat(args.OutputDir); err != nil || !info.IsDir() {
			if err := report(true, "The output directory %s doesn't exist.",
				args.OutputDir); err != nil {
				return problems, err
			}
		}
	}

	if args.Tracer.Threads > runtime.NumCPU() {
		if err := report(false, "%d threads requested, but this machine "+
			"only has %d cores.", args.Tracer.Threads, runtime.NumCPU()); err != nil {
			return problems, err
		}
	}

	return problems, nil
}

func checkTimes(
	args *Args, times []float64,
	report func(fatal bool, format string, a ...interface{}) error,
) error {
	if len(times) == 0 {
		return report(true, "No snapshots match the Steps %s.", args.Steps)
	}
	start := args.Tracer.StartTime
	if start < times[0] || start > times[len(times)-1] {
		return report(false, "StartTime %g is outside the snapshot times "+
			"[%g, %g].", start, times[0], times[len(times)-1])
	}
	if args.Tracer.UseTerminationTime && args.Tracer.TerminationTime <= start {
		return report(false, "TerminationTime %g isn't after StartTime %g.",
			args.Tracer.TerminationTime, start)
	}
	return nil
}

// ReadSelection reads particle ids from the first column of a text file.
func ReadSelection(fname string) ([]uint64, error) {
	rd, err := catio.TextFile(fname)
	if err != nil {
		return nil, err
	}
	cols, err := rd.ReadUint64s([]int{0})
	if err != nil {
		return nil, err
	}
	return cols[0], nil
}
