package compress

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/phil-mansfield/advect/lib/particles"
)

const (
	// MagicNumber is an arbitrary number at the start of all advect particle
	// files which should help identify when the code is run on something
	// else by accident.
	MagicNumber = 0xadec7f11
	// ReverseMagicNumber is the magic number if read on a machine with
	// flipped endianness.
	ReverseMagicNumber = 0x117fecad
	Version            = 1
)

// FixedWidthHeader is the part of the header with a fixed size.
type FixedWidthHeader struct {
	// Step and Time give the step index and the simulation time of the
	// output.
	Step int64
	Time float64
	// RunID identifies the run which wrote the file. Every rank of a run
	// uses the same RunID.
	RunID uuid.UUID
	// Rank is the rank which wrote the file.
	Rank int64
}

type Header struct {
	FixedWidthHeader
	// Names gives the names of all the fields stored in the file and Types
	// their type codes ("u32", "u64", "f32", "f64", "v32", or "v64").
	Names, Types []string
	// Lengths gives the number of elements in each field.
	Lengths []int64
}

// Writer is a class which handles writing to disk. The pattern is that you
// create a single writer with NewWriter, add fields to it with AddField, and
// finally call Flush or WriteFile.
type Writer struct {
	Header
	order       binary.ByteOrder
	methodFlags []uint32
	dataEdges   []int64
	data        *bytes.Buffer
}

// NewWriter creates a Writer using a given byte ordering. b is used to store
// an in-RAM version of the file's data. If you don't want to make excess heap
// allocations, pass the array returned by the last Flush.
func NewWriter(
	hd FixedWidthHeader, b []byte, order binary.ByteOrder,
) *Writer {
	return &Writer{
		Header:    Header{FixedWidthHeader: hd},
		order:     order,
		dataEdges: []int64{0},
		data:      bytes.NewBuffer(b[:0]),
	}
}

// AddField adds a new field to the file which will be compressed with
// a given method.
func (wr *Writer) AddField(field particles.Field, method Method) error {
	if findString(wr.Names, field.Name()) != -1 {
		return fmt.Errorf("The field '%s' was added to the file twice.",
			field.Name())
	} else if particles.Components(field.Type()) == -1 {
		return fmt.Errorf("The field '%s' has an unknown type code, '%s'.",
			field.Name(), field.Type())
	}

	method.SetOrder(wr.order)
	if err := method.Compress(field, wr.data); err != nil {
		return err
	}

	wr.dataEdges = append(wr.dataEdges, int64(wr.data.Len()))
	wr.methodFlags = append(wr.methodFlags, uint32(method.MethodFlag()))
	wr.Names = append(wr.Names, field.Name())
	wr.Types = append(wr.Types, field.Type())
	wr.Lengths = append(wr.Lengths, int64(field.Len()))
	return nil
}

// Flush writes the file to w. It returns a (potentially cap-expanded) byte
// array that can be passed to a later call to NewWriter.
func (wr *Writer) Flush(w io.Writer) ([]byte, error) {
	bData := wr.data.Bytes()

	err := binary.Write(w, wr.order, uint32(MagicNumber))
	if err != nil {
		return bData[:0], err
	}
	err = binary.Write(w, wr.order, uint32(Version))
	if err != nil {
		return bData[:0], err
	}
	if err := wr.Header.write(w, wr.order); err != nil {
		return bData[:0], err
	}

	// Navigation information.
	err = binary.Write(w, wr.order, wr.methodFlags)
	if err != nil {
		return bData[:0], err
	}
	err = binary.Write(w, wr.order, wr.dataEdges)
	if err != nil {
		return bData[:0], err
	}

	_, err = w.Write(bData)
	return bData[:0], err
}

// WriteFile creates the file fname and flushes the Writer to it.
func (wr *Writer) WriteFile(fname string) ([]byte, error) {
	f, err := os.Create(fname)
	if err != nil {
		return wr.data.Bytes()[:0], err
	}
	b, err := wr.Flush(f)
	if err != nil {
		f.Close()
		return b, err
	}
	return b, f.Close()
}

func (hd *Header) write(w io.Writer, order binary.ByteOrder) error {
	if err := binary.Write(w, order, &hd.FixedWidthHeader); err != nil {
		return err
	}

	nFields := uint32(len(hd.Names))
	if err := binary.Write(w, order, nFields); err != nil {
		return err
	}

	nNames := make([]uint32, nFields)
	for i := range nNames {
		nNames[i] = uint32(len(hd.Names[i]))
	}
	if err := binary.Write(w, order, nNames); err != nil {
		return err
	}

	for i := range hd.Names {
		if _, err := io.WriteString(w, hd.Names[i]); err != nil {
			return err
		}
	}
	for i := range hd.Types {
		if _, err := io.WriteString(w, hd.Types[i]); err != nil {
			return err
		}
	}

	return binary.Write(w, order, hd.Lengths)
}

func (hd *Header) read(r io.Reader, order binary.ByteOrder) error {
	if err := binary.Read(r, order, &hd.FixedWidthHeader); err != nil {
		return err
	}

	var nFields uint32
	if err := binary.Read(r, order, &nFields); err != nil {
		return err
	}
	hd.Names, hd.Types = make([]string, nFields), make([]string, nFields)
	hd.Lengths = make([]int64, nFields)

	nNames := make([]uint32, nFields)
	if err := binary.Read(r, order, nNames); err != nil {
		return err
	}

	for i := range nNames {
		b := make([]byte, nNames[i])
		if _, err := io.ReadFull(r, b); err != nil {
			return err
		}
		hd.Names[i] = string(b)
	}
	for i := range hd.Types {
		b := make([]byte, 3)
		if _, err := io.ReadFull(r, b); err != nil {
			return err
		}
		hd.Types[i] = string(b)
	}

	return binary.Read(r, order, hd.Lengths)
}

// Reader handles the I/O and navigation associated with reading compressed
// fields. Readers created with NewReader need to be closed after use.
type Reader struct {
	Header
	fname       string
	f           io.ReadSeeker
	closer      io.Closer
	order       binary.ByteOrder
	methodFlags []uint32
	dataStart   int64
	dataEdges   []int64
	midBuf      []byte
}

// NewReader opens a particle file.
func NewReader(fname string) (*Reader, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	rd, err := newReader(fname, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	rd.closer = f
	return rd, nil
}

// NewBytesReader reads a particle file that is already in memory.
func NewBytesReader(name string, b []byte) (*Reader, error) {
	return newReader(name, bytes.NewReader(b))
}

func newReader(fname string, f io.ReadSeeker) (*Reader, error) {
	order, err := checkFile(fname, f)
	if err != nil {
		return nil, err
	}

	rd := &Reader{fname: fname, f: f, order: order}
	if err := rd.Header.read(f, order); err != nil {
		return nil, fmt.Errorf("Could not read the header of %s: %w", fname, err)
	}

	nFields := len(rd.Names)
	rd.methodFlags = make([]uint32, nFields)
	rd.dataEdges = make([]int64, nFields+1)
	if err := binary.Read(f, order, rd.methodFlags); err != nil {
		return nil, err
	}
	if err := binary.Read(f, order, rd.dataEdges); err != nil {
		return nil, err
	}

	rd.dataStart, err = f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// ReadField reads a field from the reader. (Note: use Names to find these.)
func (rd *Reader) ReadField(name string) (particles.Field, error) {
	i := findString(rd.Names, name)
	if i == -1 {
		return nil, fmt.Errorf("The field '%s' is not in the file %s. It "+
			"only contains the fields %s.", name, rd.fname, rd.Names)
	}

	method, err := selectMethod(MethodFlag(rd.methodFlags[i]))
	if err != nil {
		return nil, err
	}
	method.SetOrder(rd.order)

	_, err = rd.f.Seek(rd.dataStart+rd.dataEdges[i], io.SeekStart)
	if err != nil {
		return nil, err
	}

	// Reading the block into memory first keeps the file free while zstd
	// is doing slow calculations.
	n := rd.dataEdges[i+1] - rd.dataEdges[i]
	if n < 0 {
		return nil, fmt.Errorf("The field '%s' in %s has negative size %d.",
			name, rd.fname, n)
	}
	rd.midBuf = resizeBytes(rd.midBuf, int(n))
	if _, err = io.ReadFull(rd.f, rd.midBuf); err != nil {
		return nil, err
	}

	return method.Decompress(
		bytes.NewReader(rd.midBuf), name, rd.Types[i], int(rd.Lengths[i]),
	)
}

// ReadAll reads every field in the file.
func (rd *Reader) ReadAll() (particles.Particles, error) {
	p := particles.Particles{}
	for _, name := range rd.Names {
		f, err := rd.ReadField(name)
		if err != nil {
			return nil, err
		}
		p[name] = f
	}
	return p, nil
}

// Close closes the files associated with the Reader.
func (rd *Reader) Close() error {
	if rd.closer == nil {
		return nil
	}
	return rd.closer.Close()
}

// findString returns the index of the first instance of target in x and -1 if
// target isn't in x.
func findString(x []string, target string) int {
	for i := range x {
		if x[i] == target {
			return i
		}
	}
	return -1
}

// checkFile reads in the file's magic number and version number and makes
// sure that advect can actually read it. If it can, the byte order is
// returned. Otherwise an error is returned.
func checkFile(fname string, f io.Reader) (binary.ByteOrder, error) {
	var magicNumber, version uint32

	order := binary.ByteOrder(binary.LittleEndian)
	if err := binary.Read(f, order, &magicNumber); err != nil {
		return nil, err
	}

	switch magicNumber {
	case MagicNumber:
	case ReverseMagicNumber:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%s is not an advect particle file. All "+
			"particle files begin with either the 32-bit integer %x or %x. "+
			"This file begins with %x.", fname, MagicNumber,
			ReverseMagicNumber, magicNumber)
	}

	if err := binary.Read(f, order, &version); err != nil {
		return nil, err
	}
	if version > Version {
		return nil, fmt.Errorf("The file %s was written with file version "+
			"%d, but this version of advect can only read versions up to %d.",
			fname, version, Version)
	}

	return order, nil
}
