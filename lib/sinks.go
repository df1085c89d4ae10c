package lib

import (
	"sort"

	"github.com/phil-mansfield/advect/lib/comm"
	"github.com/phil-mansfield/advect/lib/particles"
	"github.com/phil-mansfield/advect/lib/tracer"
)

// MultiSink hands every output to each of its sinks in order, stopping at
// the first error.
type MultiSink []tracer.Sink

func (ms MultiSink) WriteParticles(step int, out *tracer.Output) error {
	for _, s := range ms {
		if err := s.WriteParticles(step, out); err != nil {
			return err
		}
	}
	return nil
}

// rankOutput is the part of an output gathered from each rank.
type rankOutput struct {
	IDs       []uint64
	Positions [][3]float64
}

// GatherSink collects the ids and positions of every rank's particles and
// hands the combined output, ordered by id, to Sink on rank 0. Every rank
// must call WriteParticles for every step.
type GatherSink struct {
	Comm comm.Communicator
	Sink tracer.Sink
}

func (g GatherSink) WriteParticles(step int, out *tracer.Output) error {
	local := rankOutput{}
	if out.Len() > 0 {
		local.IDs = append(local.IDs, out.IDs()...)
		local.Positions = append(local.Positions, out.Positions()...)
	}

	all, err := g.Comm.AllGather(local)
	if err != nil {
		return err
	}
	if g.Comm.Rank() != 0 {
		return nil
	}

	merged := rankOutput{}
	for _, x := range all {
		ro := x.(rankOutput)
		merged.IDs = append(merged.IDs, ro.IDs...)
		merged.Positions = append(merged.Positions, ro.Positions...)
	}
	sort.Sort(byID(merged))

	return g.Sink.WriteParticles(step, &tracer.Output{
		Step: out.Step, Time: out.Time,
		Particles: particles.Particles{
			tracer.IDName:       particles.NewUint64(tracer.IDName, merged.IDs),
			tracer.PositionName: particles.NewVec64(tracer.PositionName, merged.Positions),
		},
	})
}

type byID rankOutput

func (b byID) Len() int           { return len(b.IDs) }
func (b byID) Less(i, j int) bool { return b.IDs[i] < b.IDs[j] }
func (b byID) Swap(i, j int) {
	b.IDs[i], b.IDs[j] = b.IDs[j], b.IDs[i]
	b.Positions[i], b.Positions[j] = b.Positions[j], b.Positions[i]
}
