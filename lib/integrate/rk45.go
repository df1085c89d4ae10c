package integrate

import (
	"fmt"
	"math"
)

// Cash-Karp tableau.
var (
	ckA = [6]float64{0, 1.0 / 5, 3.0 / 10, 3.0 / 5, 1, 7.0 / 8}
	ckB = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{3.0 / 10, -9.0 / 10, 6.0 / 5},
		{-11.0 / 54, 5.0 / 2, -70.0 / 27, 35.0 / 27},
		{1631.0 / 55296, 175.0 / 512, 575.0 / 13824, 44275.0 / 110592, 253.0 / 4096},
	}
	ckC5 = [6]float64{37.0 / 378, 0, 250.0 / 621, 125.0 / 594, 0, 512.0 / 1771}
	ckC4 = [6]float64{2825.0 / 27648, 0, 18575.0 / 48384, 13525.0 / 55296, 277.0 / 14336, 1.0 / 4}
)

const (
	safety     = 0.9
	growPower  = -0.2
	shrinkPow  = -0.25
	maxGrowth  = 5.0
	maxShrink  = 0.1
	maxRetries = 50
)

// RK45 is the Cash-Karp embedded Runge-Kutta method. Each step is retried
// with a smaller size until the difference between the fourth and fifth
// order solutions is below Control.MaxError. A step whose error is still
// too large at Control.MinStep fails with ErrDivergence.
type RK45 struct{}

func (RK45) Name() string   { return "rk45" }
func (RK45) Adaptive() bool { return true }

func (s RK45) Step(f Derivative, x [3]float64, t, dt float64, ctl Control) (Result, error) {
	sign := 1.0
	if dt < 0 {
		sign = -1
	}
	minStep := math.Abs(ctl.MinStep)

	for retry := 0; ; retry++ {
		x5, errEst, err := s.trial(f, x, t, dt)
		if err != nil {
			return Result{}, err
		}

		ratio := 0.0
		if ctl.MaxError > 0 {
			ratio = errEst / ctl.MaxError
		}
		atMin := math.Abs(dt) <= minStep || retry >= maxRetries
		if atMin && ratio > 1 {
			return Result{}, fmt.Errorf("%w: local error %g exceeds %g "+
				"at step size %g", ErrDivergence, errEst, ctl.MaxError, math.Abs(dt))
		}

		if ratio <= 1 || math.IsNaN(ratio) {
			next := dt * maxGrowth
			if ratio > 0 {
				next = dt * math.Min(maxGrowth, safety*math.Pow(ratio, growPower))
			}
			if ctl.MaxStep > 0 && math.Abs(next) > ctl.MaxStep {
				next = sign * ctl.MaxStep
			}
			if math.Abs(next) < minStep {
				next = sign * minStep
			}
			return checked(Result{X: x5, Taken: dt, Next: next, Error: errEst})
		}

		shrink := math.Max(maxShrink, safety*math.Pow(ratio, shrinkPow))
		dt *= shrink
		if math.Abs(dt) < minStep {
			dt = sign * minStep
		}
	}
}

// trial takes one Cash-Karp step and returns the fifth order solution and
// the norm of its difference from the fourth order one.
func (RK45) trial(f Derivative, x [3]float64, t, dt float64) ([3]float64, float64, error) {
	k := [6][3]float64{}
	for i := 0; i < 6; i++ {
		xi := x
		for j := 0; j < i; j++ {
			xi = axpy(xi, dt*ckB[i][j], k[j])
		}
		var err error
		k[i], err = f(xi, t+ckA[i]*dt)
		if err != nil {
			return x, 0, err
		}
	}

	x5, x4 := x, x
	for i := 0; i < 6; i++ {
		x5 = axpy(x5, dt*ckC5[i], k[i])
		x4 = axpy(x4, dt*ckC4[i], k[i])
	}

	d := 0.0
	for dim := 0; dim < 3; dim++ {
		diff := x5[dim] - x4[dim]
		d += diff * diff
	}
	return x5, math.Sqrt(d), nil
}
