package particles

import (
	"fmt"
	"strings"
)

// Attribute is the name and type code of one attribute array.
type Attribute struct {
	Name, Type string
}

// Components returns the number of float64 components in the attribute.
func (a Attribute) Components() int { return Components(a.Type) }

// Schema is the ordered list of attributes carried by every particle. It is
// built from the first snapshot and used to lay out Record.Data and the
// output buffers.
type Schema []Attribute

// SchemaOf returns the schema of a list of fields, in order.
func SchemaOf(fields []Field) Schema {
	s := make(Schema, len(fields))
	for i := range fields {
		s[i] = Attribute{fields[i].Name(), fields[i].Type()}
	}
	return s
}

// Validate checks that every type code is known and no name is repeated.
func (s Schema) Validate() error {
	seen := map[string]bool{}
	for _, a := range s {
		if a.Components() < 0 {
			return fmt.Errorf("The attribute '%s' has the unknown type '%s'.",
				a.Name, a.Type)
		}
		if seen[a.Name] {
			return fmt.Errorf("The attribute '%s' is given more than once.",
				a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// TupleSize returns the total number of float64 components in one tuple.
func (s Schema) TupleSize() int {
	n := 0
	for _, a := range s {
		n += a.Components()
	}
	return n
}

// Offsets returns the offset of each attribute within a flattened tuple.
func (s Schema) Offsets() []int {
	out := make([]int, len(s))
	n := 0
	for i, a := range s {
		out[i] = n
		n += a.Components()
	}
	return out
}

// Equal returns true if the two schemas have the same attributes in the same
// order.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Signature is a compact string form of the schema that can be compared
// across ranks.
func (s Schema) Signature() string {
	tok := make([]string, len(s))
	for i, a := range s {
		tok[i] = a.Name + ":" + a.Type
	}
	return strings.Join(tok, ",")
}

// Allocate creates a Particles buffer of length n with one field per
// attribute.
func (s Schema) Allocate(n int) (Particles, error) {
	p := Particles{}
	for _, a := range s {
		f, err := NewField(a.Name, a.Type, n)
		if err != nil {
			return nil, err
		}
		p[a.Name] = f
	}
	return p, nil
}
