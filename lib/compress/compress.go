/*
package compress contains the lossless compression methods used to store
particle outputs and the file format which holds them.
*/
package compress

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/DataDog/zstd"

	"github.com/phil-mansfield/advect/lib/particles"
)

// MethodFlag identifies the method used to compress a field.
type MethodFlag uint32

const (
	// PlanesFlag is the flag for Planes.
	PlanesFlag MethodFlag = iota
	// DeltaFlag is the flag for Delta.
	DeltaFlag
)

// DefaultLevel is the zstd compression level used when none is given.
const DefaultLevel = 1

// Method is a lossless compression method for one field.
type Method interface {
	// SetOrder sets the byte order used for the method's length prefixes.
	SetOrder(order binary.ByteOrder)
	// MethodFlag returns the flag that identifies the method in files.
	MethodFlag() MethodFlag
	// Compress writes a compressed version of f to wr.
	Compress(f particles.Field, wr io.Writer) error
	// Decompress reads a field with the given name, type code, and
	// length from rd.
	Decompress(rd io.Reader, name, typ string, n int) (particles.Field, error)
}

// Type assertions
var (
	_ Method = &Planes{}
	_ Method = &Delta{}
)

// ChooseMethod returns the method usually used for a field. Integer fields,
// which tend to be sorted, are delta encoded and everything else is split
// into byte planes.
func ChooseMethod(f particles.Field, level int) Method {
	switch f.Type() {
	case "u32", "u64":
		return NewDelta(level)
	}
	return NewPlanes(level)
}

// selectMethod returns an empty method for a flag read from a file.
func selectMethod(flag MethodFlag) (Method, error) {
	switch flag {
	case PlanesFlag:
		return NewPlanes(DefaultLevel), nil
	case DeltaFlag:
		return NewDelta(DefaultLevel), nil
	}
	return nil, fmt.Errorf("The method flag %d isn't recognized. The file "+
		"may be corrupted or written by a newer version of advect.", flag)
}

// Planes splits each element into its bytes and compresses the planes of
// equal significance separately. High planes of slowly varying data are
// nearly constant and compress to almost nothing.
type Planes struct {
	order   binary.ByteOrder
	level   int
	b, zbuf []byte
}

// NewPlanes returns a Planes method with the given zstd level.
func NewPlanes(level int) *Planes {
	return &Planes{order: binary.LittleEndian, level: level}
}

func (m *Planes) SetOrder(order binary.ByteOrder) { m.order = order }
func (m *Planes) MethodFlag() MethodFlag          { return PlanesFlag }

func (m *Planes) Compress(f particles.Field, wr io.Writer) error {
	words, width, err := toWords(f)
	if err != nil {
		return err
	}
	return m.writePlanes(words, width, wr)
}

func (m *Planes) Decompress(
	rd io.Reader, name, typ string, n int,
) (particles.Field, error) {
	words, width, err := wordShape(typ, n)
	if err != nil {
		return nil, err
	}
	if err := m.readPlanes(rd, words, width); err != nil {
		return nil, err
	}
	return fromWords(name, typ, words)
}

// writePlanes writes the lowest width bytes of each word as width
// zstd blocks, each prefixed by its length. Empty arrays write nothing.
func (m *Planes) writePlanes(words []uint64, width int, wr io.Writer) error {
	if len(words) == 0 {
		return nil
	}
	m.b = resizeBytes(m.b, len(words))
	for col := 0; col < width; col++ {
		wordToByte(words, m.b, col)

		var err error
		m.zbuf, err = zstd.CompressLevel(m.zbuf, m.b, m.level)
		if err != nil {
			return err
		}
		if err := binary.Write(wr, m.order, int64(len(m.zbuf))); err != nil {
			return err
		}
		if _, err := wr.Write(m.zbuf); err != nil {
			return err
		}
	}
	return nil
}

// readPlanes reverses writePlanes. words must already have its final length.
func (m *Planes) readPlanes(rd io.Reader, words []uint64, width int) error {
	if len(words) == 0 {
		return nil
	}
	for i := range words {
		words[i] = 0
	}
	for col := 0; col < width; col++ {
		nBuf := int64(0)
		if err := binary.Read(rd, m.order, &nBuf); err != nil {
			return err
		}
		if nBuf < 0 {
			return fmt.Errorf("Byte plane %d has negative length %d.", col, nBuf)
		}
		m.zbuf = resizeBytes(m.zbuf, int(nBuf))
		if _, err := io.ReadFull(rd, m.zbuf); err != nil {
			return err
		}

		var err error
		m.b, err = zstd.Decompress(m.b, m.zbuf)
		if err != nil {
			return err
		}
		if len(m.b) != len(words) {
			return fmt.Errorf("Byte plane %d holds %d bytes, but %d "+
				"elements were expected.", col, len(m.b), len(words))
		}
		byteToWord(m.b, words, col)
	}
	return nil
}

// Delta delta encodes integer fields and zigzag encodes the differences
// before splitting them into byte planes. Sorted ids become a run of small
// numbers.
type Delta struct {
	Planes
	delta []uint64
}

// NewDelta returns a Delta method with the given zstd level.
func NewDelta(level int) *Delta {
	return &Delta{Planes: *NewPlanes(level)}
}

func (m *Delta) MethodFlag() MethodFlag { return DeltaFlag }

func (m *Delta) Compress(f particles.Field, wr io.Writer) error {
	switch f.Type() {
	case "u32", "u64":
	default:
		return fmt.Errorf("The field '%s' has type %s, but only integer "+
			"fields can be delta encoded.", f.Name(), f.Type())
	}
	words, _, err := toWords(f)
	if err != nil {
		return err
	}
	m.delta = resizeWords(m.delta, len(words))
	DeltaEncode(words, m.delta)
	return m.writePlanes(m.delta, 8, wr)
}

func (m *Delta) Decompress(
	rd io.Reader, name, typ string, n int,
) (particles.Field, error) {
	words, _, err := wordShape(typ, n)
	if err != nil {
		return nil, err
	}
	if err := m.readPlanes(rd, words, 8); err != nil {
		return nil, err
	}
	DeltaDecode(words, words)
	return fromWords(name, typ, words)
}

// DeltaEncode writes the zigzag-encoded difference between each element of
// x and the one before it to out. The element before x[0] is taken to be
// zero. x and out can be the same array.
func DeltaEncode(x, out []uint64) {
	if len(x) != len(out) {
		panic(fmt.Sprintf("Internal error: len(x) = %d, but len(out) = "+
			"%d in DeltaEncode", len(x), len(out)))
	}
	prev := uint64(0)
	for i := range x {
		next := x[i]
		d := int64(next - prev)
		out[i] = uint64((d << 1) ^ (d >> 63))
		prev = next
	}
}

// DeltaDecode decodes an array encoded with DeltaEncode. x and out can be
// the same array.
func DeltaDecode(x, out []uint64) {
	if len(x) != len(out) {
		panic(fmt.Sprintf("Internal error: len(x) = %d, but len(out) = "+
			"%d in DeltaDecode", len(x), len(out)))
	}
	prev := uint64(0)
	for i := range x {
		z := x[i]
		d := int64(z>>1) ^ -int64(z&1)
		prev += uint64(d)
		out[i] = prev
	}
}

// wordShape returns a zeroed word array for n elements of type typ and the
// number of significant bytes in each word.
func wordShape(typ string, n int) ([]uint64, int, error) {
	width := 8
	switch typ {
	case "u32", "f32", "v32":
		width = 4
	case "u64", "f64", "v64":
	default:
		return nil, 0, fmt.Errorf("The type code '%s' isn't one of u32, "+
			"u64, f32, f64, v32, or v64.", typ)
	}
	return make([]uint64, n*particles.Components(typ)), width, nil
}

// toWords copies the bits of every scalar in f into a uint64 array. Vector
// components are stored consecutively.
func toWords(f particles.Field) ([]uint64, int, error) {
	words, width, err := wordShape(f.Type(), f.Len())
	if err != nil {
		return nil, 0, err
	}

	switch x := f.Data().(type) {
	case []uint32:
		for i := range x {
			words[i] = uint64(x[i])
		}
	case []uint64:
		copy(words, x)
	case []float32:
		for i := range x {
			words[i] = uint64(math.Float32bits(x[i]))
		}
	case []float64:
		for i := range x {
			words[i] = math.Float64bits(x[i])
		}
	case [][3]float32:
		for i := range x {
			for dim := 0; dim < 3; dim++ {
				words[3*i+dim] = uint64(math.Float32bits(x[i][dim]))
			}
		}
	case [][3]float64:
		for i := range x {
			for dim := 0; dim < 3; dim++ {
				words[3*i+dim] = math.Float64bits(x[i][dim])
			}
		}
	default:
		return nil, 0, fmt.Errorf("The field '%s' has an unsupported "+
			"type, %T.", f.Name(), f.Data())
	}
	return words, width, nil
}

// fromWords reverses toWords.
func fromWords(name, typ string, words []uint64) (particles.Field, error) {
	c := particles.Components(typ)
	f, err := particles.NewField(name, typ, len(words)/c)
	if err != nil {
		return nil, err
	}

	switch x := f.Data().(type) {
	case []uint32:
		for i := range x {
			x[i] = uint32(words[i])
		}
	case []uint64:
		copy(x, words)
	case []float32:
		for i := range x {
			x[i] = math.Float32frombits(uint32(words[i]))
		}
	case []float64:
		for i := range x {
			x[i] = math.Float64frombits(words[i])
		}
	case [][3]float32:
		for i := range x {
			for dim := 0; dim < 3; dim++ {
				x[i][dim] = math.Float32frombits(uint32(words[3*i+dim]))
			}
		}
	case [][3]float64:
		for i := range x {
			for dim := 0; dim < 3; dim++ {
				x[i][dim] = math.Float64frombits(words[3*i+dim])
			}
		}
	}
	return f, nil
}

// wordToByte transfers a one-byte "column" from words to b. The bytes are
// indexed from least to most significant.
func wordToByte(words []uint64, b []byte, col int) {
	for i := range words {
		b[i] = byte((words[i] >> (8 * col)) & 0xff)
	}
}

// byteToWord adds a one-byte column to words.
func byteToWord(b []byte, words []uint64, col int) {
	for i := range words {
		words[i] |= uint64(b[i]) << (8 * col)
	}
}

// resizeBytes resizes a byte buffer to have length n.
func resizeBytes(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	b = b[:cap(b)]
	return append(b, make([]byte, n-len(b))...)
}

func resizeWords(x []uint64, n int) []uint64 {
	if cap(x) >= n {
		return x[:n]
	}
	return make([]uint64, n)
}
