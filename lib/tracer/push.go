package tracer

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/phil-mansfield/advect/lib/particles"
)

// RetryWithPush tries to move a particle that left the local field back into
// it. Starting from the last valid point, it takes up to PushSteps
// first-order steps along the last known velocity, never moving farther than
// PushFactor times the length of the failed step, scaled down when the
// push would pass time to. On success the particle
// is moved to the first point that can be located and true is returned. On
// failure the particle is unchanged. Pushed particles never pass time to.
func (e *Engine) RetryWithPush(r *particles.Record, out Outcome, to float64) bool {
	start := out.LastValid
	dt := out.Exit[3] - start[3]
	step := [3]float64{
		out.Exit[0] - start[0], out.Exit[1] - start[1], out.Exit[2] - start[2],
	}
	length := floats.Norm(step[:], 2)
	speed := norm(r.Velocity)
	if length == 0 || speed == 0 || dt <= 0 {
		return false
	}

	// Keep the push inside the interval being integrated. A shorter push in
	// time is a proportionally shorter push in space.
	fullTime := e.cfg.PushFactor * dt
	maxTime := math.Min(fullTime, to-start[3])
	if e.cfg.UseTerminationTime {
		maxTime = math.Min(maxTime, e.cfg.TerminationTime-start[3])
	}
	if maxTime <= 0 {
		return false
	}
	maxDist := e.cfg.PushFactor * length * maxTime / fullTime

	n := e.cfg.PushSteps
	for k := 1; k <= n; k++ {
		frac := float64(k) / float64(n)
		dist := frac * maxDist
		x := [3]float64{}
		for dim := 0; dim < 3; dim++ {
			x[dim] = start[dim] + dist*r.Velocity[dim]/speed
		}
		t := start[3] + frac*maxTime

		hints := trustedHints(r)
		v, loc, err := e.in.Velocity(x, t, &hints)
		if err != nil {
			continue
		}

		e.accept(r, [4]float64{x[0], x[1], x[2], t}, v, loc, hints, t-start[3])
		return true
	}
	return false
}
