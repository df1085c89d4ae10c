/*
package tracer advects particles through a time-varying velocity field that
is split across ranks. A Tracer owns one rank's particles: it keeps the two
snapshots around the current time cached, injects seeds, integrates every
particle over each snapshot interval, hands particles that leave the local
partition to the other ranks, and assembles the surviving particles into
attribute arrays after every step.
*/
package tracer

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/cache"
	"github.com/phil-mansfield/advect/lib/comm"
	"github.com/phil-mansfield/advect/lib/integrate"
	"github.com/phil-mansfield/advect/lib/particles"
	"github.com/phil-mansfield/advect/lib/sched"
	"github.com/phil-mansfield/advect/lib/snapio"
)

// ErrNoTime is returned when the dataset can't report its snapshot times.
var ErrNoTime = cache.ErrNoTime

// maxPushes bounds the number of push recoveries of one particle in one
// interval.
const maxPushes = 64

// Sink receives the output of every step.
type Sink interface {
	WriteParticles(step int, out *Output) error
}

// Tracer advects the particles owned by one rank.
type Tracer struct {
	cfg   Config
	log   logrus.FieldLogger
	comm  comm.Communicator
	sched *sched.Context
	cache *cache.Cache
	mig   *Migrator

	sources []SeedSource
	sink    Sink

	pop    *particles.Population
	schema particles.Schema
	out    *assembler

	started  bool
	time     float64
	step     int
	restarts []*particles.Record
}

// New creates a Tracer which reads snapshots from p. c may be nil for a
// single-rank run and log may be nil to only report warnings.
func New(
	cfg Config, p snapio.Provider, c comm.Communicator, log logrus.FieldLogger,
) (*Tracer, error) {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	if c == nil {
		c = comm.Serial{}
	}
	log = log.WithField("rank", c.Rank())

	cfg.clamp(log)
	if _, err := integrate.New(cfg.Integrator); err != nil {
		return nil, err
	}

	return &Tracer{
		cfg:   cfg,
		log:   log,
		comm:  c,
		sched: sched.New(cfg.Threads, cfg.ForceSerial, log),
		cache: cache.New(p, cfg.Locator, cfg.MeshVariance, log),
		mig:   NewMigrator(c, cfg.StaticSeeds, log),
		pop:   particles.NewPopulation(),
	}, nil
}

// AddSource adds a seed source. Its index in the order sources were added is
// its SourceID.
func (tr *Tracer) AddSource(s SeedSource) { tr.sources = append(tr.sources, s) }

// SetSelection restricts injection from sources with ids to the given ids.
func (tr *Tracer) SetSelection(sel Selection) { tr.mig.Selection = sel }

// SetSink sets the sink that every Output is written to.
func (tr *Tracer) SetSink(s Sink) { tr.sink = s }

// Config returns the settings after clamping.
func (tr *Tracer) Config() Config { return tr.cfg }

// Population returns the live particles.
func (tr *Tracer) Population() *particles.Population { return tr.pop }

// Cache returns the snapshot cache.
func (tr *Tracer) Cache() *cache.Cache { return tr.cache }

// Time returns the time the particles have been advanced to.
func (tr *Tracer) Time() float64 { return tr.time }

// Step returns the number of completed calls to Advance since the last
// restart.
func (tr *Tracer) Step() int { return tr.step }

// AddRestartParticles adds particles from an earlier run. They keep their
// ids, and the id counter moves past them at the next Advance. Particles
// without an id get a new one.
func (tr *Tracer) AddRestartParticles(recs []*particles.Record) {
	for _, r := range recs {
		c := r.Clone()
		c.PointID, c.TailPointID = -1, -1
		c.InvalidateHints()
		tr.restarts = append(tr.restarts, c)
	}
}

// Advance moves every particle to time t and returns the particles that are
// still alive. New seeds are injected at the start of the first step and
// then every ReinjectionEvery steps. If t is earlier than the current time,
// the particles are discarded and the run restarts from StartTime. Advance
// must be called by every rank with the same t. If the step fails, every
// particle is left where it was before the call.
func (tr *Tracer) Advance(ctx context.Context, t float64) (*Output, error) {
	times, err := tr.cache.Times()
	if err != nil {
		return nil, err
	}

	if tr.cfg.UseTerminationTime && t > tr.cfg.TerminationTime {
		t = tr.cfg.TerminationTime
	}
	if t < tr.cfg.StartTime && !sameTime(t, tr.cfg.StartTime) {
		return nil, fmt.Errorf("cannot advance to t = %g, before the start "+
			"time %g", t, tr.cfg.StartTime)
	}
	saved := tr.save()
	out, err := tr.advance(ctx, times, t)
	if err != nil {
		tr.rollback(saved)
		return nil, err
	}

	tr.log.WithFields(logrus.Fields{
		"step": out.Step, "time": tr.time, "particles": tr.pop.Alive(),
		"terminated": len(out.Terminated),
	}).Info("Advanced particles.")

	tr.step++
	if tr.sink != nil {
		if err := tr.sink.WriteParticles(out.Step, out); err != nil {
			return nil, fmt.Errorf("writing step %d: %w", out.Step, err)
		}
	}
	return out, nil
}

// advance runs one step. It may leave the tracer part way through the step
// when it fails.
func (tr *Tracer) advance(
	ctx context.Context, times []float64, t float64,
) (*Output, error) {
	if !tr.started || (t < tr.time && !sameTime(t, tr.time)) {
		tr.restart()
	}

	terms := []Termination{}
	for k, end := range segmentEnds(times, tr.time, t) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e, err := tr.refresh(end)
		if err != nil {
			return nil, err
		}
		if k == 0 {
			if err := tr.addRestarts(e); err != nil {
				return nil, err
			}
			if tr.injectionDue() {
				if err := tr.inject(e); err != nil {
					return nil, err
				}
			}
		}

		segTerms, err := tr.integrate(ctx, e, end)
		if err != nil {
			return nil, err
		}
		terms = append(terms, segTerms...)
		tr.time = end
	}

	for _, r := range tr.pop.Records() {
		if r.InjectedStepID < tr.step {
			r.TimeStepAge++
		}
	}

	var err error
	out := &Output{Step: tr.step, Time: tr.time, Terminated: terms}
	if out.Particles, err = tr.out.assemble(tr.pop.SortedRecords()); err != nil {
		return nil, err
	}
	return out, nil
}

// checkpoint is the state of a Tracer between two steps.
type checkpoint struct {
	recs     []*particles.Record
	restarts []*particles.Record
	schema   particles.Schema
	out      *assembler
	started  bool
	time     float64
	step     int
	nextID   int64
}

// save copies the state that a step modifies.
func (tr *Tracer) save() *checkpoint {
	c := &checkpoint{
		schema: tr.schema, out: tr.out,
		started: tr.started, time: tr.time, step: tr.step,
		nextID: tr.mig.NextID(),
	}
	for _, r := range tr.pop.Records() {
		c.recs = append(c.recs, r.Clone())
	}
	for _, r := range tr.restarts {
		c.restarts = append(c.restarts, r.Clone())
	}
	return c
}

// rollback returns the tracer to a saved state. Every rank must roll back
// together, since particles may have moved between them.
func (tr *Tracer) rollback(c *checkpoint) {
	tr.pop.Clear()
	for _, r := range c.recs {
		// The cache may have moved on.
		r.InvalidateHints()
		tr.pop.Add(r)
	}
	tr.restarts, tr.schema, tr.out = c.restarts, c.schema, c.out
	tr.started, tr.time, tr.step = c.started, c.time, c.step
	tr.mig.nextID = c.nextID
	if tr.out != nil {
		tr.out.tail.Resize(0)
	}
	tr.log.WithFields(logrus.Fields{
		"step": tr.step, "time": tr.time, "particles": len(c.recs),
	}).Warn("Step failed. Particles were returned to the start of the step.")
}

// restart discards every particle and moves back to StartTime.
func (tr *Tracer) restart() {
	if tr.started {
		tr.log.WithFields(logrus.Fields{
			"time": tr.time, "start_time": tr.cfg.StartTime,
		}).Info("Time moved backwards. Restarting from the start time.")
		if !tr.cfg.DisableResetCache {
			tr.cache.Reset()
		}
	}
	tr.pop.Clear()
	tr.out = nil
	tr.started = true
	tr.time = tr.cfg.StartTime
	tr.step = 0
}

func (tr *Tracer) injectionDue() bool {
	if tr.step == 0 {
		return true
	}
	n := tr.cfg.ReinjectionEvery
	return n > 0 && tr.step%n == 0
}

// segmentEnds returns the end of each snapshot interval crossed when moving
// from time from to time to. The last entry is always to.
func segmentEnds(times []float64, from, to float64) []float64 {
	ends := []float64{}
	for _, ti := range times {
		if ti > from && ti < to && !sameTime(ti, from) && !sameTime(ti, to) {
			ends = append(ends, ti)
		}
	}
	return append(ends, to)
}

// refresh loads the snapshots bracketing end, validates them, and returns an
// engine over them.
func (tr *Tracer) refresh(end float64) (*Engine, error) {
	in, change, err := tr.cache.Refresh(end)
	if err != nil {
		return nil, err
	}

	schema, err := ValidatePointData(tr.comm, tr.cache.Slots(), tr.cfg.ComputeVorticity)
	if err != nil {
		return nil, err
	}
	if tr.out == nil || !schema.Equal(tr.schema) {
		if tr.out != nil {
			tr.log.WithFields(logrus.Fields{
				"old": tr.schema.Signature(), "new": schema.Signature(),
			}).Warn("The attribute schema changed. Discarding every particle.")
			tr.pop.Clear()
		}
		tr.schema = schema
		if tr.out, err = newAssembler(schema, tr.cfg.ComputeVorticity); err != nil {
			return nil, err
		}
	}

	if change != cache.Unchanged {
		for _, r := range tr.pop.Records() {
			tr.cache.AdjustHints(r, change)
		}
	}

	e, err := NewEngine(tr.cfg, in)
	if err != nil {
		return nil, err
	}
	if err := tr.mig.SetBoxes(e.Boxes()); err != nil {
		return nil, err
	}
	return e, nil
}

// inject adds new particles from every source at the current time.
func (tr *Tracer) inject(e *Engine) error {
	recs := []*particles.Record{}
	for src, s := range tr.sources {
		points, ids, err := s.Seeds(tr.time)
		if err != nil {
			return fmt.Errorf("seed source %d: %w", src, err)
		}
		got, err := tr.mig.AssignSeedsToProcessors(tr.time, src, points, ids, e)
		if err != nil {
			return err
		}
		recs = append(recs, got...)
	}

	if err := tr.mig.AssignUniqueIds(recs); err != nil {
		return err
	}
	for _, r := range recs {
		r.InjectedStepID = tr.step
		data, err := e.Attributes(r, tr.schema.TupleSize())
		if err != nil {
			return err
		}
		r.Data = data
		tr.pop.Add(r)
	}

	tr.log.WithFields(logrus.Fields{
		"step": tr.step, "time": tr.time, "particles": len(recs),
	}).Debug("Injected seeds.")
	return nil
}

// addRestarts adds the pending restart particles that can be located here.
// A particle that several ranks can locate goes to the lowest of them.
// Particles are matched across ranks by UniqueID, or by their position in
// the restart list when they have none.
func (tr *Tracer) addRestarts(e *Engine) error {
	maxID := int64(-1)
	for _, r := range tr.restarts {
		if r.UniqueID > maxID {
			maxID = r.UniqueID
		}
	}
	if err := tr.mig.ReserveIDs(maxID); err != nil {
		return err
	}

	located, keys := []*particles.Record{}, []int64{}
	for i, r := range tr.restarts {
		if err := e.Locate(r); err != nil {
			tr.log.WithField("id", r.UniqueID).Debug(
				"Restart particle is outside the local field.")
			continue
		}
		key := r.UniqueID
		if key < 0 {
			key = -1 - int64(i)
		}
		located, keys = append(located, r), append(keys, key)
	}
	tr.restarts = nil

	taken, err := tr.mig.claimedBelow(keys)
	if err != nil {
		return err
	}

	kept, fresh := []*particles.Record{}, []*particles.Record{}
	for j, r := range located {
		if taken[keys[j]] {
			continue
		}
		if len(r.Data) != tr.schema.TupleSize() {
			if r.Data, err = e.Attributes(r, tr.schema.TupleSize()); err != nil {
				return err
			}
		}
		if r.UniqueID < 0 {
			fresh = append(fresh, r)
		}
		kept = append(kept, r)
	}

	if err := tr.mig.AssignUniqueIds(fresh); err != nil {
		return err
	}
	for _, r := range kept {
		tr.pop.Add(r)
	}
	return nil
}

// advanceOne integrates one particle to time to, pushing it back into the
// local field when it leaves.
func (tr *Tracer) advanceOne(e *Engine, r *particles.Record, to float64) Outcome {
	out := e.Integrate(r, to)
	for i := 0; i < maxPushes && out.Kind == ExitedDomain; i++ {
		if !e.RetryWithPush(r, out, to) {
			break
		}
		out = e.Integrate(r, to)
	}
	return out
}

// batch integrates recs to time to and returns the particles that
// terminated and those that left the local field.
func (tr *Tracer) batch(
	ctx context.Context, e *Engine, recs []*particles.Record, to float64,
) ([]Termination, []Exit, error) {
	outs := make([]Outcome, len(recs))
	err := tr.sched.Run(ctx, len(recs), func(i int) error {
		outs[i] = tr.advanceOne(e, recs[i], to)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	terms, exits := []Termination{}, []Exit{}
	for i, r := range recs {
		switch outs[i].Kind {
		case Terminated:
			terms = append(terms, tr.terminate(r, outs[i].Reason))
		case ExitedDomain:
			exits = append(exits, Exit{r, outs[i]})
		}
	}
	return terms, exits, nil
}

// terminate removes r from the population.
func (tr *Tracer) terminate(r *particles.Record, reason Reason) Termination {
	if code := reason.ErrorCode(); code != particles.NoError {
		r.ErrorCode = code
	}
	tr.pop.Remove(r)
	return Termination{
		UniqueID: r.UniqueID, Position: r.Position,
		Reason: reason, ErrorCode: r.ErrorCode,
	}
}

// integrate advances every particle to time to, migrating the ones that
// leave the local partition until no rank has any left to send.
func (tr *Tracer) integrate(
	ctx context.Context, e *Engine, to float64,
) ([]Termination, error) {
	terms, exits, err := tr.batch(ctx, e, tr.pop.SortedRecords(), to)
	if err != nil {
		return nil, err
	}

	for round := 0; ; round++ {
		n, err := comm.AllReduceSum(tr.comm, len(exits))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		if round >= tr.cfg.MaxExchangeRounds {
			tr.log.WithField("particles", n).Warn(
				"Particles still moving after the last exchange round. Dropping them.")
			for _, ex := range exits {
				terms = append(terms, tr.terminate(ex.Record, LostAtBoundary))
			}
			break
		}

		x, err := tr.mig.ExchangeWithPeers(exits, e)
		if err != nil {
			return nil, err
		}
		for _, r := range x.Sent {
			tr.pop.Remove(r)
		}
		for _, l := range x.Lost {
			terms = append(terms, tr.terminate(l.Record, l.Reason))
		}
		for _, r := range x.Received {
			tr.out.addTail(r)
			tr.pop.Add(r)
		}

		var more []Termination
		more, exits, err = tr.batch(ctx, e, x.Received, to)
		if err != nil {
			return nil, err
		}
		terms = append(terms, more...)
	}
	return terms, nil
}

// Dump writes a line for every live particle to w.
func (tr *Tracer) Dump(w io.Writer) error {
	recs := tr.pop.SortedRecords()
	_, err := fmt.Fprintf(w, "# rank %d, step %d, t = %g, %d particles, next id %d\n",
		tr.comm.Rank(), tr.step, tr.time, len(recs), tr.mig.NextID())
	if err != nil {
		return err
	}
	for _, r := range recs {
		if _, err := fmt.Fprintf(w, "%s, speed %.4g\n", r, r.Speed); err != nil {
			return err
		}
	}
	return nil
}
