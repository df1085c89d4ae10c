/*
package particles contains the particle records advected through a velocity
field, the populations that hold them, and the generically typed attribute
arrays that are carried along with each particle.
*/
package particles

/* This file contains functions for managing attribute arrays. */

import (
	"fmt"
)

// Particles is a set of named attribute arrays of equal length. It maps the
// name of each field (e.g. 'id', 'age', 'pressure', etc.) to a Field.
type Particles map[string]Field

// Len returns the length shared by all the fields in p. It returns -1 if the
// fields disagree.
func (p Particles) Len() int {
	n := 0
	first := true
	for _, f := range p {
		if first {
			n, first = f.Len(), false
		} else if f.Len() != n {
			return -1
		}
	}
	return n
}

// Resize resizes every field in p to n elements, keeping existing values.
func (p Particles) Resize(n int) {
	for _, f := range p {
		f.Resize(n)
	}
}

// Field is a generic interface around a typed attribute array.
type Field interface {
	// Name returns the name of the field.
	Name() string
	// Type returns the type code of the field: "u32", "u64", "f32", "f64",
	// "v32", or "v64".
	Type() string
	// Len returns the length of the underlying array.
	Len() int
	// Data returns the underlying array as an interface{}.
	Data() interface{}
	// Resize changes the length of the underlying array to n. Existing
	// elements are kept and capacity grows geometrically.
	Resize(n int)
	// Tuple writes element i to out as float64 components. out must have
	// length Components(Type()).
	Tuple(i int, out []float64)
	// SetTuple sets element i from float64 components.
	SetTuple(i int, x []float64)
	// Transfer transfers data from the Field to the appropriately named field
	// in dest. Particles are transfer from the indices 'from' to the indices
	// 'to'. These indices are passed as arrays to amortize the cost of error
	// handling and type conversion.
	Transfer(dest Particles, from, to []int) error
	// CreateDestination creates an output field in p with the specified size
	// that has the correct name and type.
	CreateDestination(p Particles, n int)
}

// Type assertions
var (
	_ Field = &Uint32{}
	_ Field = &Uint64{}
	_ Field = &Float32{}
	_ Field = &Float64{}
	_ Field = &Vec32{}
	_ Field = &Vec64{}
)

// Components returns the number of float64 components in one element of a
// field with the given type code, or -1 if the type isn't recognized.
func Components(typ string) int {
	switch typ {
	case "u32", "u64", "f32", "f64":
		return 1
	case "v32", "v64":
		return 3
	}
	return -1
}

// NewField creates a zeroed field with the given name, type code, and length.
func NewField(name, typ string, n int) (Field, error) {
	switch typ {
	case "u32":
		return NewUint32(name, make([]uint32, n)), nil
	case "u64":
		return NewUint64(name, make([]uint64, n)), nil
	case "f32":
		return NewFloat32(name, make([]float32, n)), nil
	case "f64":
		return NewFloat64(name, make([]float64, n)), nil
	case "v32":
		return NewVec32(name, make([][3]float32, n)), nil
	case "v64":
		return NewVec64(name, make([][3]float64, n)), nil
	}
	return nil, fmt.Errorf("The type code '%s' of field '%s' isn't one of "+
		"u32, u64, f32, f64, v32, or v64.", typ, name)
}

// NewGenericField wraps an array of one of the supported types in a Field.
func NewGenericField(name string, x interface{}) (Field, error) {
	switch xx := x.(type) {
	case []uint32:
		return NewUint32(name, xx), nil
	case []uint64:
		return NewUint64(name, xx), nil
	case []float32:
		return NewFloat32(name, xx), nil
	case []float64:
		return NewFloat64(name, xx), nil
	case [][3]float32:
		return NewVec32(name, xx), nil
	case [][3]float64:
		return NewVec64(name, xx), nil
	}
	return nil, fmt.Errorf("The field '%s' has an unsupported type, %T.", name, x)
}

// transfer does the work of the Transfer methods for any element type.
func transfer[T any](name string, src []T, dest Particles, from, to []int) error {
	destField, ok := dest[name]
	if !ok {
		return fmt.Errorf("Destination Particles object does not contain the field '%s'.", name)
	}

	destData, ok := destField.Data().([]T)
	if !ok {
		return fmt.Errorf("Field '%s' in destination Particles object does not have %T type, as expected.", name, src)
	}

	if len(from) != len(to) {
		return fmt.Errorf("'from' index array has length %d, but 'to' has length %d.", len(from), len(to))
	}

	for i := range from {
		destData[to[i]] = src[from[i]]
	}

	return nil
}

// resize grows or shrinks x to length n, doubling capacity when needed.
func resize[T any](x []T, n int) []T {
	if n <= cap(x) {
		return x[:n]
	}
	c := 2 * cap(x)
	if c < n {
		c = n
	}
	out := make([]T, n, c)
	copy(out, x)
	return out
}

// Uint32 implements the Field interface for []uint32 data. See the Field
// interface for documentation of this struct's methods.
type Uint32 struct {
	name string
	data []uint32
}

// NewUint32 creates a field with a given name associated with a given array.
func NewUint32(name string, x []uint32) *Uint32 { return &Uint32{name, x} }

func (x *Uint32) Name() string                { return x.name }
func (x *Uint32) Type() string                { return "u32" }
func (x *Uint32) Len() int                    { return len(x.data) }
func (x *Uint32) Data() interface{}           { return x.data }
func (x *Uint32) Resize(n int)                { x.data = resize(x.data, n) }
func (x *Uint32) Tuple(i int, out []float64)  { out[0] = float64(x.data[i]) }
func (x *Uint32) SetTuple(i int, v []float64) { x.data[i] = uint32(v[0]) }

func (x *Uint32) CreateDestination(p Particles, n int) {
	p[x.name] = NewUint32(x.name, make([]uint32, n))
}

func (x *Uint32) Transfer(dest Particles, from, to []int) error {
	return transfer(x.name, x.data, dest, from, to)
}

// Uint64 implements the Field interface for []uint64 data. See the Field
// interface for documentation of this struct's methods.
type Uint64 struct {
	name string
	data []uint64
}

// NewUint64 creates a field with a given name associated with a given array.
func NewUint64(name string, x []uint64) *Uint64 { return &Uint64{name, x} }

func (x *Uint64) Name() string                { return x.name }
func (x *Uint64) Type() string                { return "u64" }
func (x *Uint64) Len() int                    { return len(x.data) }
func (x *Uint64) Data() interface{}           { return x.data }
func (x *Uint64) Resize(n int)                { x.data = resize(x.data, n) }
func (x *Uint64) Tuple(i int, out []float64)  { out[0] = float64(x.data[i]) }
func (x *Uint64) SetTuple(i int, v []float64) { x.data[i] = uint64(v[0]) }

func (x *Uint64) CreateDestination(p Particles, n int) {
	p[x.name] = NewUint64(x.name, make([]uint64, n))
}

func (x *Uint64) Transfer(dest Particles, from, to []int) error {
	return transfer(x.name, x.data, dest, from, to)
}

// Float32 implements the Field interface for []float32 data. See the Field
// interface for documentation of this struct's methods.
type Float32 struct {
	name string
	data []float32
}

// NewFloat32 creates a field with a given name associated with a given array.
func NewFloat32(name string, x []float32) *Float32 { return &Float32{name, x} }

func (x *Float32) Name() string                { return x.name }
func (x *Float32) Type() string                { return "f32" }
func (x *Float32) Len() int                    { return len(x.data) }
func (x *Float32) Data() interface{}           { return x.data }
func (x *Float32) Resize(n int)                { x.data = resize(x.data, n) }
func (x *Float32) Tuple(i int, out []float64)  { out[0] = float64(x.data[i]) }
func (x *Float32) SetTuple(i int, v []float64) { x.data[i] = float32(v[0]) }

func (x *Float32) CreateDestination(p Particles, n int) {
	p[x.name] = NewFloat32(x.name, make([]float32, n))
}

func (x *Float32) Transfer(dest Particles, from, to []int) error {
	return transfer(x.name, x.data, dest, from, to)
}

// Float64 implements the Field interface for []float64 data. See the Field
// interface for documentation of this struct's methods.
type Float64 struct {
	name string
	data []float64
}

// NewFloat64 creates a field with a given name associated with a given array.
func NewFloat64(name string, x []float64) *Float64 { return &Float64{name, x} }

func (x *Float64) Name() string                { return x.name }
func (x *Float64) Type() string                { return "f64" }
func (x *Float64) Len() int                    { return len(x.data) }
func (x *Float64) Data() interface{}           { return x.data }
func (x *Float64) Resize(n int)                { x.data = resize(x.data, n) }
func (x *Float64) Tuple(i int, out []float64)  { out[0] = x.data[i] }
func (x *Float64) SetTuple(i int, v []float64) { x.data[i] = v[0] }

func (x *Float64) CreateDestination(p Particles, n int) {
	p[x.name] = NewFloat64(x.name, make([]float64, n))
}

func (x *Float64) Transfer(dest Particles, from, to []int) error {
	return transfer(x.name, x.data, dest, from, to)
}

// Vec32 implements the Field interface for [][3]float32 data. See the Field
// interface for documentation of this struct's methods.
type Vec32 struct {
	name string
	data [][3]float32
}

// NewVec32 creates a field with a given name associated with a given array.
func NewVec32(name string, x [][3]float32) *Vec32 { return &Vec32{name, x} }

func (x *Vec32) Name() string      { return x.name }
func (x *Vec32) Type() string      { return "v32" }
func (x *Vec32) Len() int          { return len(x.data) }
func (x *Vec32) Data() interface{} { return x.data }
func (x *Vec32) Resize(n int)      { x.data = resize(x.data, n) }

func (x *Vec32) Tuple(i int, out []float64) {
	for dim := 0; dim < 3; dim++ {
		out[dim] = float64(x.data[i][dim])
	}
}

func (x *Vec32) SetTuple(i int, v []float64) {
	for dim := 0; dim < 3; dim++ {
		x.data[i][dim] = float32(v[dim])
	}
}

func (x *Vec32) CreateDestination(p Particles, n int) {
	p[x.name] = NewVec32(x.name, make([][3]float32, n))
}

func (x *Vec32) Transfer(dest Particles, from, to []int) error {
	return transfer(x.name, x.data, dest, from, to)
}

// Vec64 implements the Field interface for [][3]float64 data. See the Field
// interface for documentation of this struct's methods.
type Vec64 struct {
	name string
	data [][3]float64
}

// NewVec64 creates a field with a given name associated with a given array.
func NewVec64(name string, x [][3]float64) *Vec64 { return &Vec64{name, x} }

func (x *Vec64) Name() string      { return x.name }
func (x *Vec64) Type() string      { return "v64" }
func (x *Vec64) Len() int          { return len(x.data) }
func (x *Vec64) Data() interface{} { return x.data }
func (x *Vec64) Resize(n int)      { x.data = resize(x.data, n) }

func (x *Vec64) Tuple(i int, out []float64) {
	copy(out[:3], x.data[i][:])
}

func (x *Vec64) SetTuple(i int, v []float64) {
	copy(x.data[i][:], v[:3])
}

func (x *Vec64) CreateDestination(p Particles, n int) {
	p[x.name] = NewVec64(x.name, make([][3]float64, n))
}

func (x *Vec64) Transfer(dest Particles, from, to []int) error {
	return transfer(x.name, x.data, dest, from, to)
}
