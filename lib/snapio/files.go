package snapio

import (
	"encoding/binary"
	"fmt"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/field"
	"github.com/phil-mansfield/advect/lib/format"
)

// GridFiles is a Provider over grid files on disk. Each step expands to one
// or more files through a file format string, and each file becomes one
// block of the step's snapshot.
type GridFiles struct {
	format       *format.FileFormat
	steps        []int
	names, types []string
	order        binary.ByteOrder
	times        []float64
}

// Type assertion
var _ Provider = &GridFiles{}

// NewGridFiles creates a provider over the files named by fileFormat at each
// step in stepFormat, e.g. "field_{%03d,step}.{%d,0..7}" and "0..100".
func NewGridFiles(
	fileFormat, stepFormat string, names, types []string,
	order binary.ByteOrder,
) (*GridFiles, error) {
	ff, err := format.ParseFileFormat(fileFormat)
	if err != nil {
		return nil, err
	}
	steps, err := format.ExpandStepFormat(stepFormat)
	if err != nil {
		return nil, err
	}
	if err := checkGridTypes(names, types); err != nil {
		return nil, err
	}
	return &GridFiles{ff, steps, names, types, order, nil}, nil
}

// Steps returns the steps the provider reads, in the order of its times.
func (g *GridFiles) Steps() []int { return g.steps }

// Times reads the header of the first file of every step. The result is
// cached after the first successful call.
func (g *GridFiles) Times() ([]float64, error) {
	if g.times != nil {
		return g.times, nil
	}

	times := make([]float64, len(g.steps))
	for i, step := range g.steps {
		fileName := g.format.Expand(step)[0]
		f, err := NewGridFile(fileName, g.names, g.types, g.order)
		if err != nil {
			return nil, err
		}
		times[i] = f.hd.Time()
		if i > 0 && times[i] <= times[i-1] {
			return nil, fmt.Errorf("The snapshot at step %d has time %g, "+
				"which isn't after the time of step %d, %g.",
				step, times[i], g.steps[i-1], times[i-1])
		}
	}

	g.times = times
	return times, nil
}

func (g *GridFiles) Snapshot(i int) (*field.Snapshot, error) {
	if i < 0 || i >= len(g.steps) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNoSnapshot, i, len(g.steps))
	}

	snap := &field.Snapshot{}
	for j, fileName := range g.format.Expand(g.steps[i]) {
		f, err := NewGridFile(fileName, g.names, g.types, g.order)
		if err != nil {
			return nil, err
		}
		if j == 0 {
			snap.Time = f.hd.Time()
		} else if f.hd.Time() != snap.Time {
			return nil, fmt.Errorf("The file %s has the time %g, but other "+
				"files in step %d have the time %g.", fileName,
				f.hd.Time(), g.steps[i], snap.Time)
		}

		b, err := f.Block()
		if err != nil {
			return nil, err
		}
		snap.Blocks = append(snap.Blocks, b)
	}

	return snap, nil
}

// Cropped restricts another provider to the blocks and cells that overlap a
// box. It's used to give each rank only its own partition of the field.
type Cropped struct {
	Provider
	Box bounds.Box
}

func (c *Cropped) Snapshot(i int) (*field.Snapshot, error) {
	snap, err := c.Provider.Snapshot(i)
	if err != nil {
		return nil, err
	}
	return snap.Crop(c.Box), nil
}
