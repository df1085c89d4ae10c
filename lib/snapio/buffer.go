package snapio

/* This file handles the generic Buffer object, which reads typed binary
blocks into particles.Field arrays that can be reused from file to file.
*/

import (
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"

	"github.com/phil-mansfield/advect/lib/particles"
)

type Buffer struct {
	byteOrder binary.ByteOrder

	varType map[string]string
	isRead  map[string]bool
	fields  map[string]particles.Field
	names   []string
}

// NewBuffer returns a Buffer object that can read a set of variables with the
// specified types ("f32", "f64", "u32", "u64", "v32", "v64" for floats, uints,
// and 3-vectors with 32- and 64-bit widths, respectively). The byte order of
// the files this buffer will be used to read needs to also be specified.
// Variable names cannot be used more than once.
func NewBuffer(
	byteOrder binary.ByteOrder, varNames, varTypes []string,
) (*Buffer, error) {
	if len(varNames) != len(varTypes) {
		return nil, fmt.Errorf("%d variable names were given, but %d "+
			"types were given.", len(varNames), len(varTypes))
	}

	buf := &Buffer{
		byteOrder: byteOrder, varType: map[string]string{},
		isRead: map[string]bool{}, fields: map[string]particles.Field{},
	}

	for i, name := range varNames {
		if _, ok := buf.varType[name]; ok {
			return nil, fmt.Errorf(
				"The property name '%s' is used more than once.", name,
			)
		}

		f, err := particles.NewField(name, varTypes[i], 0)
		if err != nil {
			return nil, err
		}

		buf.varType[name] = varTypes[i]
		buf.isRead[name] = false
		buf.fields[name] = f
		buf.names = append(buf.names, name)
	}

	return buf, nil
}

// Reset resets a buffer so that a new file can be read into it. This allows
// informative internal errors to be thrown.
func (buf *Buffer) Reset() {
	for name := range buf.isRead {
		buf.isRead[name] = false
	}
}

// read reads n values of the given variable from rd.
func (buf *Buffer) read(rd io.Reader, name string, n int) error {
	if _, ok := buf.varType[name]; !ok {
		return fmt.Errorf("The property name '%s' hasn't been registered to the file.", name)
	}

	if buf.isRead[name] {
		return fmt.Errorf("The property name '%s' is being read multiple times without a call to Reset().", name)
	}

	f := buf.fields[name]
	f.Resize(n)
	err := readPrimitive(rd, buf.byteOrder, f.Data())

	buf.isRead[name] = true
	return err
}

// readPrimitive reads data from a reader into x, an interface around an array.
// Supported types are []float32, []float64, []uint32, []uint64, [][3]float32,
// [][3]float64.
func readPrimitive(rd io.Reader, order binary.ByteOrder, x interface{}) error {
	switch xx := x.(type) {
	case []float32, []float64, []uint32, []uint64:
		return binary.Read(rd, order, xx)
	case [][3]float32:
		// binary.Read does a heap allocation per element on [][3]float32.
		if len(xx) == 0 {
			return nil
		}
		return binary.Read(rd, order, unsafe.Slice(&xx[0][0], 3*len(xx)))
	case [][3]float64:
		if len(xx) == 0 {
			return nil
		}
		return binary.Read(rd, order, unsafe.Slice(&xx[0][0], 3*len(xx)))
	}
	panic("(Supposedly) impossible type configuration")
}

// writePrimitive is the inverse of readPrimitive.
func writePrimitive(wr io.Writer, order binary.ByteOrder, x interface{}) error {
	switch xx := x.(type) {
	case []float32, []float64, []uint32, []uint64:
		return binary.Write(wr, order, xx)
	case [][3]float32:
		if len(xx) == 0 {
			return nil
		}
		return binary.Write(wr, order, unsafe.Slice(&xx[0][0], 3*len(xx)))
	case [][3]float64:
		if len(xx) == 0 {
			return nil
		}
		return binary.Write(wr, order, unsafe.Slice(&xx[0][0], 3*len(xx)))
	}
	panic("(Supposedly) impossible type configuration")
}

// Get returns the field associated with a given variable name.
func (buf *Buffer) Get(name string) (particles.Field, error) {
	if _, ok := buf.varType[name]; !ok {
		return nil, fmt.Errorf("'%s' is not a recognized variable name.", name)
	} else if !buf.isRead[name] {
		return nil, fmt.Errorf("'%s' has not been read.", name)
	}
	return buf.fields[name], nil
}

// Detach returns copies of every field in registration order. The copies
// don't share memory with the buffer, so they stay valid after the next read.
func (buf *Buffer) Detach(names []string) ([]particles.Field, error) {
	out := make([]particles.Field, len(names))
	for i, name := range names {
		f, err := buf.Get(name)
		if err != nil {
			return nil, err
		}
		dest := particles.Particles{}
		f.CreateDestination(dest, f.Len())
		idx := make([]int, f.Len())
		for j := range idx {
			idx[j] = j
		}
		if err := f.Transfer(dest, idx, idx); err != nil {
			return nil, err
		}
		out[i] = dest[name]
	}
	return out, nil
}
