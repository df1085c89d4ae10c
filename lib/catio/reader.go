/*
package catio reads whitespace-separated text tables, such as seed point
files with x, y, z, and optional id columns.
*/
package catio

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// TextConfig contains information neccessary for parsing text tables.
type TextConfig struct {
	Separator   byte           // Character used to separated fields
	Comment     byte           // Character used to start comments.
	SkipLines   int            // Number of lines to skip at the start of file.
	ColumnNames map[string]int // Map from column names to column indices.
}

// DefaultConfig is a TextConfig instance which can read space-separated
// tables with '#' comments.
var DefaultConfig = TextConfig{
	Separator:   ' ',
	Comment:     '#',
	SkipLines:   0,
	ColumnNames: map[string]int{},
}

// Reader allows the user to access the columns of a text table.
type Reader interface {
	// Read* methods read the given columns, which are either []int column
	// indices or []string column names. Optional buffers may be provided if
	// you're worried about allocation.
	ReadFloat64s(columns interface{}, bufs ...[][]float64) ([][]float64, error)
	ReadUint64s(columns interface{}, bufs ...[][]uint64) ([][]uint64, error)

	// Rows returns the number of non-comment rows in the table.
	Rows() int
	// Columns returns the number of columns in the first row.
	Columns() int
}

// TextFile creates a Reader for a text file.
func TextFile(fname string, config ...TextConfig) (Reader, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fname, err)
	}
	return Text(text, config...), nil
}

// Text creates a Reader for a block of text.
func Text(text []byte, config ...TextConfig) Reader {
	return newTextReader(bytes.Clone(text), config...)
}
