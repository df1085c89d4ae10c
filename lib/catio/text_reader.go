package catio

import (
	"bytes"
	"fmt"
	"strconv"
)

type textReader struct {
	config TextConfig
	lines  [][]byte
}

// newTextReader splits text into cleaned lines. An optional config can be
// provided, otherwise DefaultConfig will be used.
func newTextReader(text []byte, config ...TextConfig) *textReader {
	reader := &textReader{config: DefaultConfig}
	if len(config) > 0 {
		reader.config = config[0]
	}

	lines := bytes.Split(text, []byte{'\n'})
	if reader.config.SkipLines < len(lines) {
		lines = lines[reader.config.SkipLines:]
	} else {
		lines = nil
	}
	lines = uncomment(lines, reader.config.Comment)
	reader.lines = trim(lines, reader.config.Separator)

	return reader
}

func (t *textReader) Rows() int { return len(t.lines) }

func (t *textReader) Columns() int {
	if len(t.lines) == 0 {
		return 0
	}
	return len(fields(t.lines[0], t.config.Separator))
}

// columnIndices converts the generic columns variable into integer indices.
// If columns is []int, it returns them, if columns is []string, it looks up
// the corresponding ints.
func (t *textReader) columnIndices(columns interface{}) ([]int, error) {
	switch cols := columns.(type) {
	case []int:
		return cols, nil
	case []string:
		idxs := make([]int, len(cols))
		for i := range cols {
			idx, ok := t.config.ColumnNames[cols[i]]
			if !ok {
				return nil, fmt.Errorf("The column name '%s' isn't known.", cols[i])
			}
			idxs[i] = idx
		}
		return idxs, nil
	}
	return nil, fmt.Errorf("Columns argument must be []int or []string, not %T.", columns)
}

func (t *textReader) ReadFloat64s(
	columns interface{}, bufs ...[][]float64,
) ([][]float64, error) {
	return readColumns(t, columns, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}, bufs...)
}

func (t *textReader) ReadUint64s(
	columns interface{}, bufs ...[][]uint64,
) ([][]uint64, error) {
	return readColumns(t, columns, func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	}, bufs...)
}

// readColumns parses the requested columns of every line with parse.
func readColumns[T any](
	t *textReader, columns interface{}, parse func(string) (T, error),
	bufs ...[][]T,
) ([][]T, error) {
	idxs, err := t.columnIndices(columns)
	if err != nil {
		return nil, err
	}

	out := make([][]T, len(idxs))
	if len(bufs) > 0 && len(bufs[0]) == len(idxs) {
		out = bufs[0]
	}
	for i := range out {
		out[i] = resize(out[i], len(t.lines))
	}

	for j, line := range t.lines {
		words := fields(line, t.config.Separator)
		for i, col := range idxs {
			if col < 0 || col >= len(words) {
				return nil, fmt.Errorf("Line %d has %d columns, so column "+
					"%d can't be read.", j+1, len(words), col)
			}
			x, err := parse(string(words[col]))
			if err != nil {
				return nil, fmt.Errorf("Cannot parse column %d of line "+
					"%d: %s", col, j+1, err.Error())
			}
			out[i][j] = x
		}
	}

	return out, nil
}

func resize[T any](x []T, n int) []T {
	if cap(x) >= n {
		return x[:n]
	}
	return make([]T, n)
}

// uncomment removes comments and drops lines which are empty afterwards.
func uncomment(lines [][]byte, comment byte) [][]byte {
	out := lines[:0]
	for _, line := range lines {
		if idx := bytes.IndexByte(line, comment); idx >= 0 {
			line = line[:idx]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			out = append(out, line)
		}
	}
	return out
}

// trim removes separators and whitespace from both ends of each line.
func trim(lines [][]byte, sep byte) [][]byte {
	for i := range lines {
		lines[i] = bytes.Trim(bytes.TrimSpace(lines[i]), string([]byte{sep}))
	}
	return lines
}

// fields splits a line on runs of sep, or on any whitespace if sep is a
// space.
func fields(line []byte, sep byte) [][]byte {
	if sep == ' ' {
		return bytes.Fields(line)
	}
	words := bytes.Split(line, []byte{sep})
	for i := range words {
		words[i] = bytes.TrimSpace(words[i])
	}
	return words
}
