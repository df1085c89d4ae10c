package tracer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/advect/lib/comm"
	"github.com/phil-mansfield/advect/lib/field"
	"github.com/phil-mansfield/advect/lib/particles"
	"github.com/phil-mansfield/advect/lib/snapio"
)

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func cube(
	t *testing.T, origin [3]float64, dims [3]int, times []float64,
	fn field.VelocityFunc,
) *snapio.Memory {
	m, err := snapio.Sampled(origin, [3]float64{1, 1, 1}, dims, times, fn)
	require.NoError(t, err)
	return m
}

func newTracer(t *testing.T, cfg Config, p snapio.Provider, pts ...[3]float64) *Tracer {
	tr, err := New(cfg, p, nil, quietLog())
	require.NoError(t, err)
	tr.AddSource(&PointSource{Points: pts})
	return tr
}

func rotation(x [3]float64, t float64) [3]float64 {
	return [3]float64{-(x[1] - 5), x[0] - 5, 0}
}

func TestConstantField(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 1},
		field.Constant([3]float64{1, 0, 0}))
	tr := newTracer(t, DefaultConfig(), p, [3]float64{0, 0, 0})
	ctx := context.Background()

	out, err := tr.Advance(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []uint64{0}, out.IDs())

	out, err = tr.Advance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Empty(t, out.Terminated)

	x := out.Positions()[0]
	assert.InDelta(t, 1.0, x[0], 1e-9)
	assert.InDelta(t, 0.0, x[1], 1e-9)
	assert.InDelta(t, 0.0, x[2], 1e-9)

	r := tr.Population().Records()[0]
	assert.InDelta(t, 1.0, r.Position[3], 1e-9)
	assert.InDelta(t, 1.0, r.Age, 1e-9)
	assert.Equal(t, particles.NoError, r.ErrorCode)
	assert.Equal(t, []uint32{0}, out.Particles[ErrorCodeName].Data())
	assert.Equal(t, 1, r.TimeStepAge)
}

func TestSlowFieldTerminates(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 1},
		field.Constant([3]float64{0.1, 0, 0}))
	cfg := DefaultConfig()
	cfg.TerminalSpeed = 0.5
	tr := newTracer(t, cfg, p, [3]float64{0, 0, 0})
	ctx := context.Background()

	_, err := tr.Advance(ctx, 0)
	require.NoError(t, err)
	out, err := tr.Advance(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 0, out.Len())
	require.Len(t, out.Terminated, 1)
	term := out.Terminated[0]
	assert.Equal(t, SpeedBelowTerminal, term.Reason)
	assert.Equal(t, particles.NoError, term.ErrorCode)
	// Only one step was taken.
	assert.InDelta(t, cfg.MaximumStep, term.Position[3], 1e-9)
}

func TestTerminalSpeedIsInclusive(t *testing.T) {
	b, err := field.Sample([3]float64{}, [3]float64{1, 1, 1}, [3]int{11, 11, 11},
		0, field.Constant([3]float64{1, 0, 0}), nil, nil)
	require.NoError(t, err)
	snap := &field.Snapshot{Blocks: []*field.Block{b}}
	in := &field.Interpolator{Slots: [2]*field.Slot{nil, field.NewSlot(snap, field.CellSearch)}}

	tests := []struct {
		terminal float64
		kind     OutcomeKind
	}{
		{1, Terminated},
		{1 - 1e-9, Advanced},
	}

	for i := range tests {
		cfg := DefaultConfig()
		cfg.Integrator, cfg.MaximumStep = "rk2", 0.5
		cfg.TerminalSpeed = tests[i].terminal
		e, err := NewEngine(cfg, in)
		require.NoError(t, err)

		r := particles.NewRecord([3]float64{0.5, 2, 3}, 0)
		require.NoError(t, e.Locate(r))
		out := e.Integrate(r, 2)
		assert.Equal(t, tests[i].kind, out.Kind, "%d) kind", i)
	}
}

func TestTerminationTime(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 1},
		field.Constant([3]float64{1, 0, 0}))
	cfg := DefaultConfig()
	cfg.UseTerminationTime, cfg.TerminationTime = true, 0.75
	tr := newTracer(t, cfg, p, [3]float64{0, 0, 0})
	ctx := context.Background()

	_, err := tr.Advance(ctx, 0)
	require.NoError(t, err)
	out, err := tr.Advance(ctx, 1)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, tr.Time(), 1e-12)
	require.Len(t, out.Terminated, 1)
	assert.Equal(t, TimeLimitReached, out.Terminated[0].Reason)
	assert.InDelta(t, 0.75, out.Terminated[0].Position[0], 1e-9)
}

func TestSolverDivergence(t *testing.T) {
	tests := []struct {
		maxError float64
		diverged bool
	}{
		{1e-30, true},
		{1e-2, false},
	}

	for i := range tests {
		p := cube(t, [3]float64{}, [3]int{11, 11, 11}, []float64{0, 1}, rotation)
		cfg := DefaultConfig()
		cfg.MaximumStep, cfg.MinimumStep = 0.5, 0.5
		cfg.MaximumError = tests[i].maxError
		tr := newTracer(t, cfg, p, [3]float64{6, 5, 5})
		ctx := context.Background()

		_, err := tr.Advance(ctx, 0)
		require.NoError(t, err)
		out, err := tr.Advance(ctx, 1)
		require.NoError(t, err)

		if !tests[i].diverged {
			assert.Equal(t, 1, out.Len(), "%d) alive", i)
			assert.Empty(t, out.Terminated, "%d) terminated", i)
			continue
		}
		assert.Equal(t, 0, out.Len(), "%d) alive", i)
		require.Len(t, out.Terminated, 1, "%d) terminated", i)
		assert.Equal(t, SolverDiverged, out.Terminated[0].Reason)
		assert.Equal(t, particles.SolverDivergence, out.Terminated[0].ErrorCode)
		assert.InDelta(t, 0.0, out.Terminated[0].Position[3], 1e-12)
	}
}

// halves returns the provider of one rank in a two-rank split of [0, 10]^3
// along x at x = 5.
func halves(t *testing.T, rank int) *snapio.Memory {
	origin := [3]float64{5 * float64(rank), 0, 0}
	return cube(t, origin, [3]int{6, 11, 11}, []float64{0, 1},
		field.Constant([3]float64{1, 0, 0}))
}

func TestMigration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Integrator, cfg.MaximumStep = "rk4", 0.2

	alive := [2][]*particles.Record{}
	terms := [2]int{}
	err := comm.Run(context.Background(), 2, quietLog(),
		func(ctx context.Context, c comm.Communicator) error {
			tr, err := New(cfg, halves(t, c.Rank()), c, quietLog())
			if err != nil {
				return err
			}
			tr.AddSource(&PointSource{Points: [][3]float64{{4.9, 5, 5}}})

			if _, err := tr.Advance(ctx, 0); err != nil {
				return err
			}
			if c.Rank() == 0 && tr.Population().Alive() != 1 {
				return errors.New("rank 0 didn't take the seed")
			}
			out, err := tr.Advance(ctx, 1)
			if err != nil {
				return err
			}
			alive[c.Rank()] = tr.Population().Records()
			terms[c.Rank()] = len(out.Terminated)
			return nil
		})
	require.NoError(t, err)

	assert.Empty(t, alive[0])
	require.Len(t, alive[1], 1)
	assert.Equal(t, [2]int{0, 0}, terms)

	r := alive[1][0]
	assert.Equal(t, int64(0), r.UniqueID)
	assert.InDelta(t, 5.9, r.Position[0], 1e-9)
	assert.InDelta(t, 1.0, r.Position[3], 1e-9)
	assert.InDelta(t, 1.0, r.Age, 1e-9)
	assert.Equal(t, 0, r.PointID)
	assert.Equal(t, -1, r.TailPointID)
	assert.Equal(t, particles.NoError, r.ErrorCode)
}

// gapped returns a snapshot over [0, 5] and [gap, 10] along x.
func gapped(t *testing.T, gap float64) *snapio.Memory {
	fn := field.Constant([3]float64{1, 0, 0})
	a, err := field.Sample([3]float64{0, 0, 0}, [3]float64{1, 1, 1},
		[3]int{6, 11, 11}, 0, fn, nil, nil)
	require.NoError(t, err)
	b, err := field.Sample([3]float64{gap, 0, 0}, [3]float64{1, 1, 1},
		[3]int{5, 11, 11}, 0, fn, nil, nil)
	require.NoError(t, err)
	m, err := snapio.NewMemory(&field.Snapshot{Time: 0, Blocks: []*field.Block{a, b}})
	require.NoError(t, err)
	return m
}

func TestPushRecovery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Integrator, cfg.MaximumStep = "rk4", 0.2
	ctx := context.Background()

	// The push can cross a 0.2 gap but not a 0.4 one.
	tr := newTracer(t, cfg, gapped(t, 5.2), [3]float64{4.9, 5, 5})
	_, err := tr.Advance(ctx, 0)
	require.NoError(t, err)
	out, err := tr.Advance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.InDelta(t, 5.9, out.Positions()[0][0], 1e-9)

	tr = newTracer(t, cfg, gapped(t, 5.4), [3]float64{4.9, 5, 5})
	_, err = tr.Advance(ctx, 0)
	require.NoError(t, err)
	out, err = tr.Advance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	require.Len(t, out.Terminated, 1)
	assert.Equal(t, OutOfSpatialDomain, out.Terminated[0].Reason)
	assert.Equal(t, particles.OutOfSpatialDomain, out.Terminated[0].ErrorCode)
	assert.InDelta(t, 4.9, out.Terminated[0].Position[0], 1e-9)
}

func TestPushBound(t *testing.T) {
	m := gapped(t, 5.2)
	snap, err := m.Snapshot(0)
	require.NoError(t, err)
	in := &field.Interpolator{Slots: [2]*field.Slot{nil, field.NewSlot(snap, field.CellSearch)}}
	cfg := DefaultConfig()
	cfg.clamp(quietLog())
	e, err := NewEngine(cfg, in)
	require.NoError(t, err)

	r := particles.NewRecord([3]float64{4.99, 5, 5}, 0)
	require.NoError(t, e.Locate(r))
	start := r.Position

	// After a failed step of length 0.05 both pushes land in the gap.
	short := Outcome{Kind: ExitedDomain, LastValid: start,
		Exit: [4]float64{5.04, 5, 5, 0.05}}
	assert.False(t, e.RetryWithPush(r, short, 1))
	assert.Equal(t, start, r.Position)

	long := Outcome{Kind: ExitedDomain, LastValid: start,
		Exit: [4]float64{5.11, 5, 5, 0.12}}
	require.True(t, e.RetryWithPush(r, long, 1))
	assert.InDelta(t, 5.23, r.Position[0], 1e-12)
	assert.InDelta(t, 0.24, r.Position[3], 1e-12)
	assert.True(t, in.Slots[1].Contains(r.Point()))

	// Pushes never pass the end of the interval, and a push cut short in
	// time is cut short in space by the same factor.
	tests := []struct {
		to     float64
		ok     bool
		x, end float64
	}{
		{0.1, false, 4.99, 0},
		{0.22, true, 5.21, 0.22},
		{0.3, true, 5.23, 0.24},
	}
	for i := range tests {
		r = particles.NewRecord([3]float64{4.99, 5, 5}, 0)
		require.NoError(t, e.Locate(r))
		ok := e.RetryWithPush(r, long, tests[i].to)
		if ok != tests[i].ok {
			t.Errorf("%d) Expected RetryWithPush = %v, got %v.", i, tests[i].ok, ok)
		}
		if math.Abs(r.Position[0]-tests[i].x) > 1e-12 ||
			math.Abs(r.Position[3]-tests[i].end) > 1e-12 {
			t.Errorf("%d) Expected x = %g at t = %g, got %v.",
				i, tests[i].x, tests[i].end, r.Position)
		}
	}
}

func attributeSnapshot(
	t *testing.T, time float64, names ...[]string,
) *field.Snapshot {
	snap := &field.Snapshot{Time: time}
	for i := range names {
		b, err := field.Sample([3]float64{5 * float64(i), 0, 0},
			[3]float64{1, 1, 1}, [3]int{6, 11, 11}, time,
			field.Constant([3]float64{0.5, 0, 0}), names[i],
			func(x [3]float64) []float64 { return []float64{x[0] + 10*x[2]} })
		require.NoError(t, err)
		snap.Blocks = append(snap.Blocks, b)
	}
	return snap
}

func TestSchemaMismatch(t *testing.T) {
	density := []string{"density"}
	m, err := snapio.NewMemory(
		attributeSnapshot(t, 0, density, density),
		attributeSnapshot(t, 1, density, density),
		attributeSnapshot(t, 2, density, []string{"temperature"}),
	)
	require.NoError(t, err)
	tr := newTracer(t, DefaultConfig(), m, [3]float64{1, 2, 3})
	ctx := context.Background()

	_, err = tr.Advance(ctx, 0)
	require.NoError(t, err)
	out, err := tr.Advance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []float64{31}, out.Particles["density"].Data())

	_, err = tr.Advance(ctx, 2)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	for _, r := range tr.Population().Records() {
		assert.InDelta(t, 1.0, r.Position[3], 1e-12)
	}
	assert.InDelta(t, 1.0, tr.Time(), 1e-12)
}

func TestSchemaMismatchRollsBack(t *testing.T) {
	density := []string{"density"}
	m, err := snapio.NewMemory(
		attributeSnapshot(t, 0, density, density),
		attributeSnapshot(t, 1, density, density),
		attributeSnapshot(t, 2, density, []string{"temperature"}),
	)
	require.NoError(t, err)
	tr := newTracer(t, DefaultConfig(), m, [3]float64{1, 2, 3})
	ctx := context.Background()

	_, err = tr.Advance(ctx, 0)
	require.NoError(t, err)

	// The first interval integrates before the second one fails.
	_, err = tr.Advance(ctx, 2)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.InDelta(t, 0.0, tr.Time(), 1e-12)
	assert.Equal(t, 1, tr.Step())
	require.Equal(t, 1, tr.Population().Alive())
	r := tr.Population().Records()[0]
	assert.Equal(t, [4]float64{1, 2, 3, 0}, r.Position)
	assert.Equal(t, 0.0, r.Age)
	assert.Equal(t, int64(1), tr.mig.NextID())

	// The run can continue up to the bad snapshot.
	out, err := tr.Advance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []uint64{0}, out.IDs())
	assert.InDelta(t, 1.5, out.Positions()[0][0], 1e-9)
}

func TestBuiltinNameCollision(t *testing.T) {
	m, err := snapio.NewMemory(attributeSnapshot(t, 0, []string{AgeName}))
	require.NoError(t, err)
	tr := newTracer(t, DefaultConfig(), m, [3]float64{1, 2, 3})
	_, err = tr.Advance(context.Background(), 0)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

type brokenProvider struct{}

func (brokenProvider) Times() ([]float64, error) { return nil, errors.New("no header") }
func (brokenProvider) Snapshot(i int) (*field.Snapshot, error) {
	return nil, snapio.ErrNoSnapshot
}

func TestNoTime(t *testing.T) {
	tr := newTracer(t, DefaultConfig(), brokenProvider{}, [3]float64{})
	_, err := tr.Advance(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoTime)
}

func rotationSeeds() [][3]float64 {
	pts := [][3]float64{}
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			for k := 0; k < 3; k++ {
				pts = append(pts, [3]float64{
					3.55 + 0.3*float64(i), 3.55 + 0.3*float64(j), 4 + float64(k),
				})
			}
		}
	}
	return pts
}

func TestSerialParallelDeterminism(t *testing.T) {
	run := func(serial bool) *Output {
		p := cube(t, [3]float64{}, [3]int{11, 11, 11}, []float64{0, 1, 2}, rotation)
		cfg := DefaultConfig()
		cfg.ForceSerial, cfg.Threads = serial, 4
		cfg.ComputeVorticity = true
		tr := newTracer(t, cfg, p, rotationSeeds()...)
		ctx := context.Background()
		var out *Output
		var err error
		for _, time := range []float64{0, 0.7, 1.5, 2} {
			out, err = tr.Advance(ctx, time)
			require.NoError(t, err)
		}
		return out
	}

	serial, parallel := run(true), run(false)
	require.Equal(t, 300, serial.Len())
	assert.Equal(t, serial.IDs(), parallel.IDs())
	assert.Equal(t, serial.Positions(), parallel.Positions())
	assert.Equal(t, serial.Particles[RotationName].Data(),
		parallel.Particles[RotationName].Data())

	// Solid body rotation has a vorticity of 2 along z.
	vort := serial.Particles[VorticityName].Data().([][3]float64)
	assert.InDelta(t, 2.0, vort[0][2], 1e-9)
}

func TestUniqueIDsIncrease(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 4},
		field.Constant([3]float64{0.1, 0, 0}))
	cfg := DefaultConfig()
	cfg.ReinjectionEvery = 1
	tr := newTracer(t, cfg, p, [3]float64{0, 0, 0}, [3]float64{1, 0, 0},
		[3]float64{2, 0, 0})
	ctx := context.Background()

	for step := 0; step < 4; step++ {
		out, err := tr.Advance(ctx, float64(step))
		require.NoError(t, err)
		ids := out.IDs()
		require.Len(t, ids, 3*(step+1))
		for i := range ids {
			assert.Equal(t, uint64(i), ids[i], "step %d) id %d", step, i)
		}
		steps := out.Particles[InjectedStepIDName].Data().([]uint32)
		assert.Equal(t, uint32(step), steps[len(steps)-1])
	}
}

func TestUniqueIDsAcrossRanks(t *testing.T) {
	seeds := [][3]float64{{1, 1, 1}, {6, 1, 1}, {2, 1, 1}, {7, 1, 1}, {8, 1, 1}}
	ids := make([][]uint64, 2)
	var mu sync.Mutex

	err := comm.Run(context.Background(), 2, quietLog(),
		func(ctx context.Context, c comm.Communicator) error {
			cfg := DefaultConfig()
			cfg.ReinjectionEvery = 1
			tr, err := New(cfg, halves(t, c.Rank()), c, quietLog())
			if err != nil {
				return err
			}
			tr.AddSource(&PointSource{Points: seeds})
			for step, time := range []float64{0, 0.1} {
				out, err := tr.Advance(ctx, time)
				if err != nil {
					return err
				}
				if step == 1 {
					mu.Lock()
					ids[c.Rank()] = append([]uint64{}, out.IDs()...)
					mu.Unlock()
				}
			}
			return nil
		})
	require.NoError(t, err)

	// Rank 0 has two seeds and rank 1 has three, in each injection.
	assert.Equal(t, []uint64{0, 1, 5, 6}, ids[0])
	assert.Equal(t, []uint64{2, 3, 4, 7, 8, 9}, ids[1])
}

func TestRestart(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 1},
		field.Constant([3]float64{1, 0, 0}))
	ctx := context.Background()

	for _, keep := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.DisableResetCache = keep
		tr := newTracer(t, cfg, p, [3]float64{0, 0, 0})

		_, err := tr.Advance(ctx, 0)
		require.NoError(t, err)
		_, err = tr.Advance(ctx, 1)
		require.NoError(t, err)
		fetches := tr.Cache().Fetches()

		out, err := tr.Advance(ctx, 0.5)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1}, out.IDs(), "keep = %v", keep)
		assert.Equal(t, 0, out.Step)
		assert.InDelta(t, 0.5, out.Positions()[0][0], 1e-9)
		if keep {
			assert.Equal(t, fetches, tr.Cache().Fetches())
		} else {
			assert.Greater(t, tr.Cache().Fetches(), fetches)
		}
	}
}

func TestAddRestartParticles(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 1},
		field.Constant([3]float64{1, 0, 0}))
	tr := newTracer(t, DefaultConfig(), p, [3]float64{0, 0, 0})

	old := particles.NewRecord([3]float64{3, 3, 3}, 0)
	old.UniqueID, old.PointID = 41, 17
	outside := particles.NewRecord([3]float64{30, 3, 3}, 0)
	outside.UniqueID = 50
	tr.AddRestartParticles([]*particles.Record{old, outside})

	out, err := tr.Advance(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{41, 51}, out.IDs())
	assert.Equal(t, 17, old.PointID)
}

func TestRestartParticlesOnSeam(t *testing.T) {
	ids := make([][]uint64, 2)
	var mu sync.Mutex

	err := comm.Run(context.Background(), 2, quietLog(),
		func(ctx context.Context, c comm.Communicator) error {
			tr, err := New(DefaultConfig(), halves(t, c.Rank()), c, quietLog())
			if err != nil {
				return err
			}
			// Both particles sit on x = 5, which both ranks can locate.
			old := particles.NewRecord([3]float64{5, 5, 5}, 0)
			old.UniqueID = 7
			anon := particles.NewRecord([3]float64{5, 2, 2}, 0)
			tr.AddRestartParticles([]*particles.Record{old, anon})

			out, err := tr.Advance(ctx, 0)
			if err != nil {
				return err
			}
			mu.Lock()
			ids[c.Rank()] = append([]uint64{}, out.IDs()...)
			mu.Unlock()
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, []uint64{7, 8}, ids[0])
	assert.Empty(t, ids[1])
}

func TestSelection(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 1},
		field.Constant([3]float64{1, 0, 0}))
	tr, err := New(DefaultConfig(), p, nil, quietLog())
	require.NoError(t, err)
	tr.AddSource(&PointSource{
		Points: [][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}},
		IDs:    []uint64{10, 11, 12},
	})
	tr.AddSource(&PointSource{Points: [][3]float64{{3, 3, 3}}})
	tr.SetSelection(NewSelection([]uint64{11}))

	out, err := tr.Advance(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []uint64{11, 0}, out.Particles[InjectedPointIDName].Data())
	assert.Equal(t, []uint32{0, 1}, out.Particles[SourceIDName].Data())
}

func TestPositionDerivedPointIDs(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 1},
		field.Constant([3]float64{1, 0, 0}))
	tr := newTracer(t, DefaultConfig(), p,
		[3]float64{0, 0, 0}, [3]float64{1, 1, 1}, [3]float64{1, 0, 0})

	out, err := tr.Advance(context.Background(), 0)
	require.NoError(t, err)
	n := uint64(particles.DefaultPositionResolution)
	want := []uint64{0, n*n*n - 1, (n - 1) * n * n}
	assert.Equal(t, want, out.Particles[InjectedPointIDName].Data())
	for _, id := range want[1:] {
		assert.Greater(t, id, uint64(math.MaxUint32))
	}
}

func TestTextSource(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "seeds.txt")
	text := "# x y z id\n0 0 0 4\n1 2 3 9\n"
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))

	pts, ids, err := NewTextSource(fname).Seeds(0)
	require.NoError(t, err)
	assert.Equal(t, [][3]float64{{0, 0, 0}, {1, 2, 3}}, pts)
	assert.Equal(t, []uint64{4, 9}, ids)

	bad := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("1 2\n"), 0644))
	_, _, err = NewTextSource(bad).Seeds(0)
	assert.Error(t, err)
}

type recordingSink struct {
	steps []int
	lens  []int
}

func (s *recordingSink) WriteParticles(step int, out *Output) error {
	s.steps = append(s.steps, step)
	s.lens = append(s.lens, out.Len())
	return nil
}

func TestSinkAndDump(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 1},
		field.Constant([3]float64{1, 0, 0}))
	tr := newTracer(t, DefaultConfig(), p, [3]float64{0, 0, 0}, [3]float64{1, 1, 1})
	sink := &recordingSink{}
	tr.SetSink(sink)
	ctx := context.Background()

	for _, time := range []float64{0, 0.5, 1} {
		_, err := tr.Advance(ctx, time)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{0, 1, 2}, sink.steps)
	assert.Equal(t, []int{2, 2, 2}, sink.lens)

	buf := &bytes.Buffer{}
	require.NoError(t, tr.Dump(buf))
	assert.Contains(t, buf.String(), "particle 1 at")
	assert.Contains(t, buf.String(), "2 particles")
}

func TestStaticSeeds(t *testing.T) {
	p := cube(t, [3]float64{-2, -2, -2}, [3]int{13, 13, 13}, []float64{0, 4},
		field.Constant([3]float64{0.1, 0, 0}))
	m := NewMigrator(comm.Serial{}, true, quietLog())
	c := DefaultConfig()
	slot := field.NewSlot(mustSnapshot(t, p, 0), field.CellSearch)
	e, err := NewEngine(c, &field.Interpolator{Slots: [2]*field.Slot{nil, slot}})
	require.NoError(t, err)

	pts := [][3]float64{{0, 0, 0}, {50, 0, 0}, {1, 1, 1}}
	recs, err := m.AssignSeedsToProcessors(0, 0, pts, nil, e)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, []int{0, 2}, m.seedCache[0])

	// The cached classification is reused even though the seeds moved.
	moved := [][3]float64{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}
	recs, err = m.AssignSeedsToProcessors(0, 0, moved, nil, e)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, [3]float64{1, 1, 1}, recs[0].Point())
	assert.Equal(t, [3]float64{3, 3, 3}, recs[1].Point())
}

func mustSnapshot(t *testing.T, p snapio.Provider, i int) *field.Snapshot {
	s, err := p.Snapshot(i)
	require.NoError(t, err)
	return s
}
