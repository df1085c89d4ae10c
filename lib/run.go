package lib

/* run.go contains the driver behind advect's "run" mode. */

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/comm"
	"github.com/phil-mansfield/advect/lib/compress"
	"github.com/phil-mansfield/advect/lib/particles"
	"github.com/phil-mansfield/advect/lib/snapio"
	"github.com/phil-mansfield/advect/lib/tracer"
	"github.com/phil-mansfield/advect/lib/trail"
)

// Summary describes a finished run.
type Summary struct {
	RunID uuid.UUID
	// Steps is the number of outputs. Particles counts the live particles
	// at the end of the run and Terminated the particles which stopped
	// during it, both summed over ranks.
	Steps, Particles, Terminated int
}

// Run advects the seeds through the snapshots on args.Ranks ranks, writing
// particle files and trails as configured.
func Run(ctx context.Context, args *Args, log logrus.FieldLogger) (*Summary, error) {
	gf, err := args.NewProvider()
	if err != nil {
		return nil, err
	}
	times, err := gf.Times()
	if err != nil {
		return nil, err
	}
	outTimes := args.OutputTimes(times)
	if len(outTimes) == 0 {
		return nil, fmt.Errorf("No snapshots come after StartTime %g.",
			args.Tracer.StartTime)
	}

	split, err := splitDomain(gf, args.Ranks)
	if err != nil {
		return nil, err
	}

	var sel tracer.Selection
	if args.SelectionFile != "" {
		ids, err := ReadSelection(args.SelectionFile)
		if err != nil {
			return nil, err
		}
		sel = tracer.NewSelection(ids)
	}

	var rec *trail.Recorder
	if args.TrailFile != "" {
		rec = trail.New(args.Trail, log)
	}

	sum := &Summary{RunID: uuid.New(), Steps: len(outTimes)}
	mu := sync.Mutex{}

	err = comm.Run(ctx, args.Ranks, log, func(ctx context.Context, c comm.Communicator) error {
		var p snapio.Provider = gf
		if split != nil {
			p = &snapio.Cropped{Provider: gf, Box: split.Bounds(c.Rank())}
		}

		tr, err := tracer.New(args.Tracer, p, c, log)
		if err != nil {
			return err
		}
		tr.AddSource(tracer.NewTextSource(args.SeedFile))
		if sel != nil {
			tr.SetSelection(sel)
		}

		sinks := MultiSink{}
		if args.Write {
			pw := compress.NewParticleWriter(args.OutputDir, c.Rank(), sum.RunID, log)
			pw.Format, pw.Order = args.OutputFormat, args.OutputOrder
			pw.Level = args.CompressionLevel
			sinks = append(sinks, pw)
		}
		if rec != nil {
			sinks = append(sinks, GatherSink{c, trail.Sink{Recorder: rec}})
		}
		if len(sinks) > 0 {
			tr.SetSink(sinks)
		}

		var out *tracer.Output
		terminated := 0
		for _, t := range outTimes {
			if out, err = tr.Advance(ctx, t); err != nil {
				return err
			}
			terminated += len(out.Terminated)
		}

		mu.Lock()
		sum.Particles += out.Len()
		sum.Terminated += terminated
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rec != nil {
		if err := rec.WriteTextFile(args.TrailFile); err != nil {
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"run_id": sum.RunID.String(), "steps": sum.Steps,
		"particles": sum.Particles, "terminated": sum.Terminated,
	}).Info("Run finished.")
	return sum, nil
}

// splitDomain splits the bounding box of the first snapshot evenly between
// ranks. It returns nil for a single rank.
func splitDomain(p snapio.Provider, ranks int) (*particles.UniformSplit, error) {
	if ranks <= 1 {
		return nil, nil
	}
	snap, err := p.Snapshot(0)
	if err != nil {
		return nil, err
	}
	box := bounds.Enclosing(snap.Bounds())
	return particles.NewUniformSplit(box, particles.SplitCounts(ranks))
}
