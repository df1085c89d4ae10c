package field

import (
	"fmt"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/particles"
)

// Snapshot is the velocity field at a single time, split across a composite
// list of blocks.
type Snapshot struct {
	Time   float64
	Blocks []*Block
}

// Bounds returns the bounding box of each block.
func (s *Snapshot) Bounds() []bounds.Box {
	out := make([]bounds.Box, len(s.Blocks))
	for i := range s.Blocks {
		out[i] = s.Blocks[i].Bounds()
	}
	return out
}

// Schema returns the attribute schema of the first block. Use
// CheckSchema to confirm that the other blocks agree.
func (s *Snapshot) Schema() particles.Schema {
	if len(s.Blocks) == 0 {
		return particles.Schema{}
	}
	return s.Blocks[0].Schema()
}

// CheckSchema returns an error if any block's schema differs from want.
func (s *Snapshot) CheckSchema(want particles.Schema) error {
	for i, b := range s.Blocks {
		if got := b.Schema(); !got.Equal(want) {
			return fmt.Errorf("block %d of the snapshot at t = %g has "+
				"attributes [%s], but [%s] was expected",
				i, s.Time, got.Signature(), want.Signature())
		}
	}
	return nil
}

// Crop returns a snapshot containing only the parts of each block needed to
// interpolate inside box.
func (s *Snapshot) Crop(box bounds.Box) *Snapshot {
	out := &Snapshot{Time: s.Time}
	for _, b := range s.Blocks {
		if c, ok := b.Crop(box); ok {
			out.Blocks = append(out.Blocks, c)
		}
	}
	return out
}
