package integrate

// RK2 is the second order midpoint method.
type RK2 struct{}

func (RK2) Name() string   { return "rk2" }
func (RK2) Adaptive() bool { return false }

func (RK2) Step(f Derivative, x [3]float64, t, dt float64, ctl Control) (Result, error) {
	k1, err := f(x, t)
	if err != nil {
		return Result{}, err
	}
	k2, err := f(axpy(x, dt/2, k1), t+dt/2)
	if err != nil {
		return Result{}, err
	}
	return checked(Result{X: axpy(x, dt, k2), Taken: dt, Next: dt})
}

// RK4 is the classical fourth order Runge-Kutta method.
type RK4 struct{}

func (RK4) Name() string   { return "rk4" }
func (RK4) Adaptive() bool { return false }

func (RK4) Step(f Derivative, x [3]float64, t, dt float64, ctl Control) (Result, error) {
	k1, err := f(x, t)
	if err != nil {
		return Result{}, err
	}
	k2, err := f(axpy(x, dt/2, k1), t+dt/2)
	if err != nil {
		return Result{}, err
	}
	k3, err := f(axpy(x, dt/2, k2), t+dt/2)
	if err != nil {
		return Result{}, err
	}
	k4, err := f(axpy(x, dt, k3), t+dt)
	if err != nil {
		return Result{}, err
	}

	out := x
	for dim := 0; dim < 3; dim++ {
		out[dim] += dt * (k1[dim] + 2*k2[dim] + 2*k3[dim] + k4[dim]) / 6
	}
	return checked(Result{X: out, Taken: dt, Next: dt})
}
