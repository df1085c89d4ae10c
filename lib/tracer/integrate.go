package tracer

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/field"
	"github.com/phil-mansfield/advect/lib/integrate"
	"github.com/phil-mansfield/advect/lib/particles"
)

// timeEps is the relative tolerance used when comparing times.
const timeEps = 1e-9

// Engine advances single particles through the interpolated field. An
// Engine is read-only while integrating, so one can be shared by every
// worker.
type Engine struct {
	cfg    Config
	solver integrate.Solver
	in     *field.Interpolator
}

// NewEngine creates an engine over an interpolator.
func NewEngine(cfg Config, in *field.Interpolator) (*Engine, error) {
	s, err := integrate.New(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, solver: s, in: in}, nil
}

func sameTime(a, b float64) bool {
	return math.Abs(a-b) <= timeEps*(1+math.Abs(a)+math.Abs(b))
}

func norm(v [3]float64) float64 { return floats.Norm(v[:], 2) }

// trustedHints returns the particle's hints if its last lookup succeeded.
func trustedHints(r *particles.Record) [2]particles.Hint {
	if r.Location == particles.LocatedViaHint ||
		r.Location == particles.LocatedViaSearch {
		return r.Hints
	}
	return [2]particles.Hint{}
}

// Locate finds the velocity at the particle's position, updating its hints,
// velocity, speed, and location state.
func (e *Engine) Locate(r *particles.Record) error {
	hints := trustedHints(r)
	v, loc, err := e.in.Velocity(r.Point(), r.Position[3], &hints)
	r.Location = loc
	if err != nil {
		return err
	}
	r.Hints = hints
	r.Velocity = v
	r.Speed = norm(v)
	return nil
}

// Boxes returns the bounding boxes of the blocks in the later cache slot,
// which make up this rank's partition.
func (e *Engine) Boxes() []bounds.Box {
	if e.in.Slots[1] == nil {
		return nil
	}
	return e.in.Slots[1].Boxes
}

// Attributes interpolates the upstream attributes at the particle's position
// into a new tuple of length n.
func (e *Engine) Attributes(r *particles.Record, n int) ([]float64, error) {
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	hints := trustedHints(r)
	if err := e.in.Attributes(r.Point(), r.Position[3], &hints, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Integrate advances r from its current time towards to. The particle is
// updated in place after every successful step.
func (e *Engine) Integrate(r *particles.Record, to float64) Outcome {
	if e.cfg.UseTerminationTime && to > e.cfg.TerminationTime {
		to = e.cfg.TerminationTime
	}

	hints := trustedHints(r)
	f := func(x [3]float64, t float64) ([3]float64, error) {
		v, _, err := e.in.Velocity(x, t, &hints)
		return v, err
	}
	ctl := integrate.Control{
		MinStep: e.cfg.MinimumStep, MaxStep: e.cfg.MaximumStep,
		MaxError: e.cfg.MaximumError,
	}

	dt := e.cfg.MaximumStep

	for r.Position[3] < to && !sameTime(r.Position[3], to) {
		x, t := r.Point(), r.Position[3]
		step := math.Min(dt, to-t)

		res, err := e.solver.Step(f, x, t, step, ctl)
		if err != nil {
			return e.failure(r, err, step)
		}

		next := [4]float64{res.X[0], res.X[1], res.X[2], t + res.Taken}
		v, loc, err := e.in.Velocity(res.X, next[3], &hints)
		if err != nil {
			r.Location = loc
			if errors.Is(err, field.ErrOutOfDomain) {
				return Outcome{Kind: ExitedDomain, LastValid: r.Position, Exit: next}
			}
			return e.failure(r, err, step)
		}

		e.accept(r, next, v, loc, hints, res.Taken)
		if res.Next > 0 {
			dt = res.Next
		}

		if r.Speed <= e.cfg.TerminalSpeed {
			return Outcome{Kind: Terminated, Reason: SpeedBelowTerminal}
		}
		if e.cfg.UseTerminationTime &&
			(r.Position[3] >= e.cfg.TerminationTime ||
				sameTime(r.Position[3], e.cfg.TerminationTime)) {
			return Outcome{Kind: Terminated, Reason: TimeLimitReached}
		}
	}

	return Outcome{Kind: Advanced}
}

// failure converts a step error into an outcome.
func (e *Engine) failure(r *particles.Record, err error, step float64) Outcome {
	switch {
	case errors.Is(err, field.ErrOutOfDomain):
		// The step left the field part way through. Estimate the exit from
		// the last known velocity.
		x := r.Point()
		exit := [4]float64{
			x[0] + step*r.Velocity[0], x[1] + step*r.Velocity[1],
			x[2] + step*r.Velocity[2], r.Position[3] + step,
		}
		return Outcome{Kind: ExitedDomain, LastValid: r.Position, Exit: exit}
	case errors.Is(err, field.ErrOutOfTime):
		r.ErrorCode = particles.OutOfTemporalWindow
		return Outcome{Kind: Terminated, Reason: OutOfTemporalWindow}
	default:
		r.ErrorCode = particles.SolverDivergence
		return Outcome{Kind: Terminated, Reason: SolverDiverged}
	}
}

// accept moves r to a new point and updates its diagnostics.
func (e *Engine) accept(
	r *particles.Record, next [4]float64, v [3]float64,
	loc particles.LocationState, hints [2]particles.Hint, taken float64,
) {
	prevOmega, prevTime := r.AngularVel, r.Time

	r.Position = next
	r.Hints = hints
	r.Location = loc
	r.Velocity = v
	r.Speed = norm(v)
	r.StepLength = taken
	r.Age += taken
	r.SimulationTime = next[3]

	if !e.cfg.ComputeVorticity {
		return
	}
	jac, err := e.in.Gradient(r.Point(), next[3], &hints)
	if err != nil {
		return
	}
	r.Vorticity = field.Vorticity(jac)

	// The angular velocity is the vorticity along the direction of motion.
	omega := 0.0
	if r.Speed > 0 {
		omega = floats.Dot(r.Vorticity[:], v[:]) / r.Speed * e.cfg.RotationScale
	}
	r.Rotation += 0.5 * (prevOmega + omega) * (next[3] - prevTime)
	r.AngularVel = omega
	r.Time = next[3]
}
