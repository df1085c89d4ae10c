package tracer

import (
	"fmt"

	"github.com/phil-mansfield/advect/lib/particles"
)

// OutcomeKind classifies the result of integrating one particle.
type OutcomeKind int

const (
	Advanced OutcomeKind = iota
	Terminated
	ExitedDomain
)

func (k OutcomeKind) String() string {
	switch k {
	case Advanced:
		return "Advanced"
	case Terminated:
		return "Terminated"
	case ExitedDomain:
		return "ExitedDomain"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Reason is why a particle was terminated.
type Reason int

const (
	NotTerminated Reason = iota
	SpeedBelowTerminal
	TimeLimitReached
	// The remaining reasons are errors and set the particle's ErrorCode.
	OutOfSpatialDomain
	OutOfTemporalWindow
	SolverDiverged
	LostAtBoundary
)

var reasonNames = []string{
	"NotTerminated", "SpeedBelowTerminal", "TimeLimitReached",
	"OutOfSpatialDomain", "OutOfTemporalWindow", "SolverDiverged",
	"LostAtBoundary",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("Reason(%d)", int(r))
	}
	return reasonNames[r]
}

// ErrorCode returns the particle error code that goes with a reason.
func (r Reason) ErrorCode() particles.ErrorCode {
	switch r {
	case OutOfSpatialDomain:
		return particles.OutOfSpatialDomain
	case OutOfTemporalWindow:
		return particles.OutOfTemporalWindow
	case SolverDiverged:
		return particles.SolverDivergence
	case LostAtBoundary:
		return particles.LostAtBoundary
	}
	return particles.NoError
}

// Outcome is the result of Engine.Integrate.
type Outcome struct {
	Kind   OutcomeKind
	Reason Reason
	// LastValid is the last point (x, y, z, t) that was inside the local
	// field and Exit the first-order estimate of where the particle went
	// after it. Both are only set for ExitedDomain.
	LastValid, Exit [4]float64
}

// Termination is a particle that stopped during a step.
type Termination struct {
	UniqueID  int64
	Position  [4]float64
	Reason    Reason
	ErrorCode particles.ErrorCode
}
