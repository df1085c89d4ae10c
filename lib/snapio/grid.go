package snapio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/phil-mansfield/advect/lib/field"
	"github.com/phil-mansfield/advect/lib/particles"
)

/* Grid files store one block of a velocity field snapshot. Every section of
the file is a Fortran-style record: a uint32 byte count, the data, and the
same uint32 again. The first record is a 128-byte header, the second holds the
node velocities as v64 values, and the remaining records hold the attribute
arrays in the order given by the user at runtime.
*/

const (
	gridHeaderSize = 128
	gridMagic      = 0xad7ec701
	gridVersion    = 1
	// VelocityName is the reserved name of the velocity record.
	VelocityName = "velocity"
)

// rawGridHeader has the same fields as the raw header record of a grid file.
type rawGridHeader struct {
	Magic, Version  uint32
	Time            float64
	Origin, Spacing [3]float64
	Dims            [3]int64
	NFields         int64
	Empty           [32]byte
}

// GridHeader implements the Header interface for grid files.
type GridHeader struct {
	rawBytes     []byte
	order        binary.ByteOrder
	names, types []string
	raw          rawGridHeader
}

func (hd *GridHeader) ToBytes() []byte             { return hd.rawBytes }
func (hd *GridHeader) ByteOrder() binary.ByteOrder { return hd.order }
func (hd *GridHeader) Names() []string             { return hd.names }
func (hd *GridHeader) Types() []string             { return hd.types }
func (hd *GridHeader) Time() float64               { return hd.raw.Time }
func (hd *GridHeader) Origin() [3]float64          { return hd.raw.Origin }
func (hd *GridHeader) Spacing() [3]float64         { return hd.raw.Spacing }

func (hd *GridHeader) Dims() [3]int {
	return [3]int{int(hd.raw.Dims[0]), int(hd.raw.Dims[1]), int(hd.raw.Dims[2])}
}

// Nodes returns the number of grid nodes in the file.
func (hd *GridHeader) Nodes() int {
	d := hd.Dims()
	return d[0] * d[1] * d[2]
}

// GridFile is a single grid file. Grid files do not have a standard set of
// attributes, so their names and types must be specified at runtime.
type GridFile struct {
	fileName     string
	names, types []string
	order        binary.ByteOrder
	hd           *GridHeader
}

// Type checking
var _ Header = &GridHeader{}

// NewGridFile opens the grid file with the given name and byte order. names
// and types describe the attribute records that follow the velocities, and
// follow the usual conventions: "u32" and "u64" are ints, "f32" and "f64" are
// floats, and "v32" and "v64" are 3-vectors.
func NewGridFile(
	fileName string, names, types []string, order binary.ByteOrder,
) (*GridFile, error) {
	if err := checkGridFile(fileName); err != nil {
		return nil, err
	}
	if err := checkGridTypes(names, types); err != nil {
		return nil, err
	}

	f := &GridFile{fileName, names, types, order, nil}
	var err error
	f.hd, err = f.readHeader()
	if err != nil {
		return nil, err
	}
	if int(f.hd.raw.NFields) != len(names) {
		return nil, fmt.Errorf("The grid file %s has %d attribute records, "+
			"but %d were specified: %s.", fileName, f.hd.raw.NFields,
			len(names), names)
	}
	if err = checkGridFileSize(fileName, f.hd.Nodes(), types); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *GridFile) ReadHeader() (Header, error) { return f.hd, nil }

// Read reads the record with the given name into buf. The velocity record is
// named VelocityName.
func (f *GridFile) Read(name string, buf *Buffer) error {
	file, err := os.Open(f.fileName)
	if err != nil {
		return fmt.Errorf("The file %s does not exist or cannot be "+
			"accessed.", f.fileName)
	}
	defer file.Close()

	n := f.hd.Nodes()
	offset := int64(8 + gridHeaderSize)
	typ := "v64"
	if name != VelocityName {
		offset += blockSize("v64", n) + 8
		i := 0
		for ; i < len(f.names); i++ {
			if f.names[i] == name {
				break
			}
			offset += blockSize(f.types[i], n) + 8
		}
		if i == len(f.names) {
			return fmt.Errorf("The grid file %s has no record named '%s'.",
				f.fileName, name)
		}
		typ = f.types[i]
	}

	if _, err = file.Seek(offset, 0); err != nil {
		return fmt.Errorf("Internal error: %s. It's likely that the "+
			"provided grid record types are incorrect.", err.Error())
	}

	hdSize := uint32(0)
	if err = binary.Read(file, f.order, &hdSize); err != nil {
		return fmt.Errorf("Internal error: %s. It's likely that the "+
			"provided grid record types are incorrect.", err.Error())
	}

	if finalSize := blockSize(typ, n); hdSize != uint32(finalSize) {
		frac := float64(hdSize) / float64(n)
		return fmt.Errorf("The record '%s' in file %s should have %d bytes "+
			"due to its type, '%s', but actually has %d bytes. This is "+
			"likely due to using the incorrect type for this record. Note "+
			"that there are %g bytes per node.", name, f.fileName,
			finalSize, typ, hdSize, frac,
		)
	}

	return buf.read(file, name, n)
}

// Block reads every record of the file and assembles them into a block.
func (f *GridFile) Block() (*field.Block, error) {
	names := append([]string{VelocityName}, f.names...)
	types := append([]string{"v64"}, f.types...)
	buf, err := NewBuffer(f.order, names, types)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		if err := f.Read(name, buf); err != nil {
			return nil, err
		}
	}

	fields, err := buf.Detach(names)
	if err != nil {
		return nil, err
	}
	vel := fields[0].Data().([][3]float64)

	return field.NewBlock(f.hd.Origin(), f.hd.Spacing(), f.hd.Dims(),
		vel, fields[1:])
}

// WriteGrid writes a block and its time to a grid file.
func WriteGrid(
	fileName string, t float64, b *field.Block, order binary.ByteOrder,
) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	raw := rawGridHeader{
		Magic: gridMagic, Version: gridVersion, Time: t,
		Origin: b.Origin, Spacing: b.Spacing,
		Dims:    [3]int64{int64(b.Dims[0]), int64(b.Dims[1]), int64(b.Dims[2])},
		NFields: int64(len(b.Fields)),
	}

	if err = writeRecord(file, order, gridHeaderSize, &raw); err != nil {
		return err
	}
	n := b.Nodes()
	if err = writeRecord(file, order, blockSize("v64", n), b.Velocity); err != nil {
		return err
	}
	for _, f := range b.Fields {
		if err = writeRecord(file, order, blockSize(f.Type(), n), f.Data()); err != nil {
			return err
		}
	}

	return file.Close()
}

func writeRecord(
	wr io.Writer, order binary.ByteOrder, size int64, x interface{},
) error {
	if err := binary.Write(wr, order, uint32(size)); err != nil {
		return err
	}
	var err error
	if raw, ok := x.(*rawGridHeader); ok {
		err = binary.Write(wr, order, raw)
	} else {
		err = writePrimitive(wr, order, x)
	}
	if err != nil {
		return err
	}
	return binary.Write(wr, order, uint32(size))
}

func blockSize(typ string, n int) int64 {
	wordSize := -1
	switch typ {
	case "u32", "f32":
		wordSize = 4
	case "u64", "f64":
		wordSize = 8
	case "v32":
		wordSize = 12
	case "v64":
		wordSize = 24
	}
	if wordSize == -1 {
		panic(fmt.Sprintf("Internal error: unrecognized type string, '%s'",
			typ))
	}
	return int64(wordSize) * int64(n)
}

// checkGridFile returns an error if the given file can't be opened or if
// it is a directory.
func checkGridFile(fileName string) error {
	info, err := os.Stat(fileName)
	if err != nil {
		return fmt.Errorf("The file %s cannot be opened. The system error "+
			"is: \"%s\"", fileName, err.Error())
	} else if info.IsDir() {
		return fmt.Errorf("The file %s is a directory, not a grid file.",
			fileName)
	}

	return nil
}

func checkGridFileSize(fileName string, n int, types []string) error {
	info, err := os.Stat(fileName)
	if err != nil {
		return fmt.Errorf("The file %s cannot be opened. The system error "+
			"is: %s", fileName, err.Error())
	}

	size := int64(8+gridHeaderSize) + 8 + blockSize("v64", n)
	for i := range types {
		size += 8 + blockSize(types[i], n)
	}

	if size != info.Size() {
		return fmt.Errorf("The provided grid record types, %s, would lead "+
			"to the %d-node file, %s, having %d bytes, but it actually "+
			"has %d bytes. You should check that the types are correct "+
			"and that no records are missing or incorrect.",
			types, n, fileName, size, info.Size(),
		)
	}

	return nil
}

// checkGridTypes returns nil if names and types describe a valid set of
// attribute records. Otherwise an error is returned.
func checkGridTypes(names, types []string) error {
	if len(names) != len(types) {
		return fmt.Errorf("%d record names were given for grid "+
			"files, but %d record types were given.", len(names), len(types))
	}

	if s, ok := containsDuplicates(names); ok {
		return fmt.Errorf("'%s' occurs multiple times in the "+
			"list of record names given for grid files, %s.", s, names)
	}

	for i := range types {
		if particles.Components(types[i]) < 0 {
			return fmt.Errorf("record %d in grid files, '%s', was given "+
				"type '%s', but the only valid types are 'u32', 'u64', "+
				"'f32', 'f64', 'v32', 'v64'", i, names[i], types[i])
		}
		if names[i] == VelocityName {
			return fmt.Errorf("'%s' is reserved for the velocity record and "+
				"can't be used as an attribute name.", VelocityName)
		}
	}

	return nil
}

// containsDuplicates tests whether any strings show up multiple times.
// If so, it returns on of those strings and returns true, otherwise it returns
// and empty string and false.
func containsDuplicates(s []string) (string, bool) {
	sSort := make([]string, len(s))
	copy(sSort, s)
	sort.Strings(sSort)
	for i := 1; i < len(sSort); i++ {
		if sSort[i] == sSort[i-1] {
			return sSort[i], true
		}
	}
	return "", false
}

// readRawGridHeader handles the error-checking and I/O for the header record.
func readRawGridHeader(
	fileName string, order binary.ByteOrder, rawHd *rawGridHeader,
) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	nHeader, nFooter := uint32(0), uint32(0)

	if err = binary.Read(file, order, &nHeader); err != nil {
		return err
	}
	if nHeader != gridHeaderSize {
		return fmt.Errorf("%s is not a valid grid file: the first "+
			"integer would lead to a header with %d bytes instead of %d.",
			fileName, nHeader, gridHeaderSize)
	}

	if err = binary.Read(file, order, rawHd); err != nil {
		return err
	}

	if err = binary.Read(file, order, &nFooter); err != nil {
		return err
	}
	if nHeader != nFooter {
		return fmt.Errorf("%s is not a valid grid file: the header, %d, "+
			"and footer, %d, of the first record don't match.",
			fileName, nHeader, nFooter,
		)
	}

	if rawHd.Magic != gridMagic {
		return fmt.Errorf("%s is not a grid file: it has the magic number "+
			"0x%x, not 0x%x. The byte order may be wrong.",
			fileName, rawHd.Magic, gridMagic)
	} else if rawHd.Version != gridVersion {
		return fmt.Errorf("%s has grid version %d, but only version %d can "+
			"be read.", fileName, rawHd.Version, gridVersion)
	}

	return nil
}

func (f *GridFile) readHeader() (*GridHeader, error) {
	rawHd := rawGridHeader{}
	if err := readRawGridHeader(f.fileName, f.order, &rawHd); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, f.order, &rawHd); err != nil {
		return nil, err
	}

	return &GridHeader{
		rawBytes: buf.Bytes(), order: f.order,
		names: f.names, types: f.types, raw: rawHd,
	}, nil
}
