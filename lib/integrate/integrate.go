/*
package integrate contains the ODE solvers used to advance particles
through a velocity field. Solvers are chosen by name and share the Solver
interface; the fixed-step solvers ignore the error controls.
*/
package integrate

import (
	"errors"
	"fmt"
	"math"
)

// ErrDivergence is returned when a step produces a non-finite position or
// when an adaptive step can't meet its error bound at the minimum step size.
var ErrDivergence = errors.New("solver diverged")

// Derivative returns dx/dt at (x, t). Errors, such as the point being outside
// the domain, are passed back through Step unchanged.
type Derivative func(x [3]float64, t float64) ([3]float64, error)

// Control bounds the step sizes and error of adaptive solvers.
type Control struct {
	MinStep, MaxStep float64
	// MaxError is the largest accepted local truncation error, in units of
	// length.
	MaxError float64
}

// Result is the outcome of one accepted step.
type Result struct {
	X [3]float64
	// Taken is the step that was actually taken, which adaptive solvers may
	// shrink from the requested one.
	Taken float64
	// Next is the suggested size of the following step.
	Next float64
	// Error is the estimated local error of the step, or zero for fixed-step
	// solvers.
	Error float64
}

// Solver advances a point by one step of an ODE.
type Solver interface {
	// Name returns the config name of the solver.
	Name() string
	// Adaptive returns true if the solver changes its own step size.
	Adaptive() bool
	// Step advances x from t by at most dt. dt may be negative to integrate
	// backwards in time.
	Step(f Derivative, x [3]float64, t, dt float64, ctl Control) (Result, error)
}

// Type assertions
var (
	_ Solver = RK2{}
	_ Solver = RK4{}
	_ Solver = RK45{}
)

// New returns the solver with the given name: "rk2", "rk4", or "rk45".
func New(name string) (Solver, error) {
	switch name {
	case "rk2":
		return RK2{}, nil
	case "rk4":
		return RK4{}, nil
	case "rk45", "":
		return RK45{}, nil
	}
	return nil, fmt.Errorf("The integrator '%s' is not one of 'rk2', 'rk4', "+
		"or 'rk45'.", name)
}

// axpy returns x + a*y.
func axpy(x [3]float64, a float64, y [3]float64) [3]float64 {
	return [3]float64{x[0] + a*y[0], x[1] + a*y[1], x[2] + a*y[2]}
}

func finite(x [3]float64) bool {
	for dim := 0; dim < 3; dim++ {
		if math.IsNaN(x[dim]) || math.IsInf(x[dim], 0) {
			return false
		}
	}
	return true
}

// checked wraps a result so that non-finite positions become ErrDivergence.
func checked(res Result) (Result, error) {
	if !finite(res.X) {
		return res, fmt.Errorf("%w: step of %g gave %v", ErrDivergence, res.Taken, res.X)
	}
	return res, nil
}
