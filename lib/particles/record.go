package particles

import (
	"container/list"
	"fmt"
)

// LocationState records how a particle's position was last found in the
// velocity field.
type LocationState int

const (
	NotLocated LocationState = iota
	LocatedViaHint
	LocatedViaSearch
	OutOfDomain
)

func (s LocationState) String() string {
	switch s {
	case NotLocated:
		return "NotLocated"
	case LocatedViaHint:
		return "LocatedViaHint"
	case LocatedViaSearch:
		return "LocatedViaSearch"
	case OutOfDomain:
		return "OutOfDomain"
	}
	return fmt.Sprintf("LocationState(%d)", int(s))
}

// ErrorCode is a per-particle, non-fatal error.
type ErrorCode int

const (
	NoError ErrorCode = iota
	OutOfSpatialDomain
	OutOfTemporalWindow
	SolverDivergence
	LostAtBoundary
)

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "None"
	case OutOfSpatialDomain:
		return "OutOfSpatialDomain"
	case OutOfTemporalWindow:
		return "OutOfTemporalWindow"
	case SolverDivergence:
		return "SolverDivergence"
	case LostAtBoundary:
		return "LostAtBoundary"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Hint is the last known block and cell containing a particle in one cache
// slot. A zero Hint is unset.
type Hint struct {
	Block, Cell int
	Set         bool
}

// NewHint returns a set hint.
func NewHint(block, cell int) Hint { return Hint{block, cell, true} }

// Record is the state of a single advected particle.
type Record struct {
	// Position is (x, y, z, t).
	Position [4]float64
	// Hints[0] refers to the previous cache slot and Hints[1] to the
	// current one. They are only trusted when Location is LocatedViaHint or
	// LocatedViaSearch.
	Hints    [2]Hint
	Location LocationState

	// UniqueID is assigned once and survives migration between ranks.
	UniqueID        int64
	SourceID        int
	InjectedPointID uint64
	InjectedStepID  int

	TimeStepAge    int
	SimulationTime float64

	Age        float64
	Rotation   float64
	AngularVel float64
	// Time is the time at which Rotation was last integrated.
	Time      float64
	Speed     float64
	Vorticity [3]float64
	ErrorCode ErrorCode

	// Velocity and StepLength describe the last successful step and are used
	// to push particles across partition seams.
	Velocity   [3]float64
	StepLength float64

	// PointID is the row of this particle in the current attribute buffer
	// and TailPointID its row in the buffer of particles received from
	// other ranks. Both are -1 when unused.
	PointID, TailPointID int

	// Data is the interpolated attribute tuple, laid out in Schema order.
	Data []float64

	pop  *Population
	elem *list.Element
}

// NewRecord returns a record at the given point and time with no id and
// unset hints.
func NewRecord(x [3]float64, t float64) *Record {
	return &Record{
		Position:       [4]float64{x[0], x[1], x[2], t},
		UniqueID:       -1,
		PointID:        -1,
		TailPointID:    -1,
		SimulationTime: t,
		Time:           t,
	}
}

// Point returns the spatial part of Position.
func (r *Record) Point() [3]float64 {
	return [3]float64{r.Position[0], r.Position[1], r.Position[2]}
}

// SetPoint sets the spatial part of Position.
func (r *Record) SetPoint(x [3]float64) {
	r.Position[0], r.Position[1], r.Position[2] = x[0], x[1], x[2]
}

// InvalidateHints forgets both cache hints.
func (r *Record) InvalidateHints() {
	r.Hints = [2]Hint{}
	r.Location = NotLocated
}

// ShiftHints moves the current-slot hint into the previous slot. It is used
// when the cache advances by one snapshot.
func (r *Record) ShiftHints() {
	r.Hints[0] = r.Hints[1]
	r.Hints[1] = Hint{}
}

// Clone returns a deep copy of r that isn't a member of any Population.
func (r *Record) Clone() *Record {
	out := *r
	out.Data = append([]float64(nil), r.Data...)
	out.pop, out.elem = nil, nil
	return &out
}

func (r *Record) String() string {
	return fmt.Sprintf("particle %d at (%.4g, %.4g, %.4g, t=%.4g), age %.4g, %s",
		r.UniqueID, r.Position[0], r.Position[1], r.Position[2], r.Position[3],
		r.Age, r.ErrorCode)
}
