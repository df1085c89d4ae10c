package tracer

import (
	"fmt"

	"github.com/phil-mansfield/advect/lib/particles"
)

// Names of the built-in particle arrays.
const (
	PositionName        = "position"
	AgeName             = "age"
	IDName              = "id"
	SourceIDName        = "source_id"
	InjectedPointIDName = "injected_point_id"
	InjectedStepIDName  = "injected_step_id"
	ErrorCodeName       = "error_code"
	VorticityName       = "vorticity"
	RotationName        = "rotation"
	AngularVelocityName = "angular_velocity"
)

func builtinSchema(vorticity bool) particles.Schema {
	s := particles.Schema{
		{PositionName, "v64"},
		{AgeName, "f32"},
		{IDName, "u64"},
		{SourceIDName, "u32"},
		{InjectedPointIDName, "u64"},
		{InjectedStepIDName, "u32"},
		{ErrorCodeName, "u32"},
	}
	if vorticity {
		s = append(s, particles.Schema{
			{VorticityName, "v64"},
			{RotationName, "f32"},
			{AngularVelocityName, "f32"},
		}...)
	}
	return s
}

// Output is the state of the particles after one call to Tracer.Advance.
type Output struct {
	Step int
	Time float64
	// Particles has one row per live particle, ordered by UniqueID. It holds
	// the built-in arrays followed by the upstream attributes. Its arrays
	// are reused two calls to Advance later.
	Particles particles.Particles
	// Terminated lists the particles that stopped during the step.
	Terminated []Termination
}

// Len returns the number of live particles.
func (o *Output) Len() int {
	if f, ok := o.Particles[IDName]; ok {
		return f.Len()
	}
	return 0
}

// IDs returns the UniqueID of each row.
func (o *Output) IDs() []uint64 {
	return o.Particles[IDName].Data().([]uint64)
}

// Positions returns the position of each row.
func (o *Output) Positions() [][3]float64 {
	return o.Particles[PositionName].Data().([][3]float64)
}

// assembler compacts particles into a pair of output buffers which are used
// alternately. Attributes of particles that were in the last output are
// copied from it, and those of particles received from other ranks are
// copied from the tail.
type assembler struct {
	schema    particles.Schema
	vorticity bool

	prev, cur, tail particles.Particles
}

func newAssembler(schema particles.Schema, vorticity bool) (*assembler, error) {
	full := append(builtinSchema(vorticity), schema...)
	prev, err := full.Allocate(0)
	if err != nil {
		return nil, err
	}
	cur, _ := full.Allocate(0)
	tail, err := schema.Allocate(0)
	if err != nil {
		return nil, err
	}
	return &assembler{schema, vorticity, prev, cur, tail}, nil
}

// addTail stores the attributes of a received particle in the tail.
func (a *assembler) addTail(r *particles.Record) {
	row := 0
	if len(a.schema) > 0 {
		row = a.tail[a.schema[0].Name].Len()
	}
	a.tail.Resize(row + 1)
	a.setAttributes(a.tail, row, r.Data)
	r.TailPointID = row
}

// setAttributes writes a flattened attribute tuple into row i of p.
func (a *assembler) setAttributes(p particles.Particles, i int, data []float64) {
	if len(data) != a.schema.TupleSize() {
		data = make([]float64, a.schema.TupleSize())
	}
	offsets := a.schema.Offsets()
	for k, att := range a.schema {
		p[att.Name].SetTuple(i, data[offsets[k]:offsets[k]+att.Components()])
	}
}

// assemble writes recs, which must be sorted by UniqueID, into the next
// buffer and updates their PointIDs.
func (a *assembler) assemble(recs []*particles.Record) (particles.Particles, error) {
	cur := a.cur
	cur.Resize(len(recs))
	prevLen := a.prev[IDName].Len()

	pos := cur[PositionName].Data().([][3]float64)
	age := cur[AgeName].Data().([]float32)
	id := cur[IDName].Data().([]uint64)
	src := cur[SourceIDName].Data().([]uint32)
	point := cur[InjectedPointIDName].Data().([]uint64)
	step := cur[InjectedStepIDName].Data().([]uint32)
	code := cur[ErrorCodeName].Data().([]uint32)

	prevFrom, prevTo := []int{}, []int{}
	tailFrom, tailTo := []int{}, []int{}
	for i, r := range recs {
		switch {
		case r.TailPointID >= 0:
			tailFrom, tailTo = append(tailFrom, r.TailPointID), append(tailTo, i)
		case r.PointID >= 0 && r.PointID < prevLen:
			prevFrom, prevTo = append(prevFrom, r.PointID), append(prevTo, i)
		default:
			a.setAttributes(cur, i, r.Data)
		}

		pos[i] = r.Point()
		age[i] = float32(r.Age)
		id[i] = uint64(r.UniqueID)
		src[i] = uint32(r.SourceID)
		point[i] = r.InjectedPointID
		step[i] = uint32(r.InjectedStepID)
		code[i] = uint32(r.ErrorCode)

		r.PointID, r.TailPointID = i, -1
	}

	if a.vorticity {
		vort := cur[VorticityName].Data().([][3]float64)
		rot := cur[RotationName].Data().([]float32)
		omega := cur[AngularVelocityName].Data().([]float32)
		for i, r := range recs {
			vort[i] = r.Vorticity
			rot[i] = float32(r.Rotation)
			omega[i] = float32(r.AngularVel)
		}
	}

	for _, att := range a.schema {
		if err := a.prev[att.Name].Transfer(cur, prevFrom, prevTo); err != nil {
			return nil, fmt.Errorf("compacting '%s': %w", att.Name, err)
		}
		if err := a.tail[att.Name].Transfer(cur, tailFrom, tailTo); err != nil {
			return nil, fmt.Errorf("copying received '%s': %w", att.Name, err)
		}
	}

	a.prev, a.cur = cur, a.prev
	a.tail.Resize(0)
	return cur, nil
}
