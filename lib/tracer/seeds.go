package tracer

import (
	"fmt"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/catio"
	"github.com/phil-mansfield/advect/lib/particles"
)

// SeedSource generates the points where new particles are injected.
type SeedSource interface {
	// Seeds returns the seed points at time t. ids is either nil or has one
	// entry per point.
	Seeds(t float64) (points [][3]float64, ids []uint64, err error)
}

// Type assertions
var (
	_ SeedSource = &PointSource{}
	_ SeedSource = &TextSource{}
)

// PointSource is a fixed list of seed points.
type PointSource struct {
	Points [][3]float64
	IDs    []uint64
}

func (s *PointSource) Seeds(t float64) ([][3]float64, []uint64, error) {
	if s.IDs != nil && len(s.IDs) != len(s.Points) {
		return nil, nil, fmt.Errorf("%d seed ids were given for %d seed points",
			len(s.IDs), len(s.Points))
	}
	return s.Points, s.IDs, nil
}

// TextSource reads seed points from a text table with the columns x y z and
// an optional integer id column. The file is read once.
type TextSource struct {
	FileName string
	Config   catio.TextConfig

	points [][3]float64
	ids    []uint64
	read   bool
}

// NewTextSource creates a TextSource which uses catio.DefaultConfig.
func NewTextSource(fname string) *TextSource {
	return &TextSource{FileName: fname, Config: catio.DefaultConfig}
}

func (s *TextSource) Seeds(t float64) ([][3]float64, []uint64, error) {
	if s.read {
		return s.points, s.ids, nil
	}

	rd, err := catio.TextFile(s.FileName, s.Config)
	if err != nil {
		return nil, nil, err
	}
	ncol := rd.Columns()
	if rd.Rows() > 0 && ncol != 3 && ncol != 4 {
		return nil, nil, fmt.Errorf("The seed file %s has %d columns, but "+
			"it must have 3 (x y z) or 4 (x y z id).", s.FileName, ncol)
	}

	xs, err := rd.ReadFloat64s([]int{0, 1, 2})
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", s.FileName, err)
	}
	s.points = make([][3]float64, rd.Rows())
	for i := range s.points {
		s.points[i] = [3]float64{xs[0][i], xs[1][i], xs[2][i]}
	}

	if ncol == 4 {
		ids, err := rd.ReadUint64s([]int{3})
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", s.FileName, err)
		}
		s.ids = ids[0]
	}

	s.read = true
	return s.points, s.ids, nil
}

// Selection is a set of seed ids. When a Tracer has a Selection, seeds from
// sources with ids are only injected if their id is in it. It has no effect
// on sources without ids.
type Selection map[uint64]bool

// NewSelection creates a Selection containing ids.
func NewSelection(ids []uint64) Selection {
	s := Selection{}
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// seedIDs returns the id of every seed. Sources without ids get ids derived
// from the seed's position within the bounding box of all the seeds.
func seedIDs(points [][3]float64, ids []uint64) []uint64 {
	if ids != nil {
		return ids
	}
	box := bounds.Empty()
	for _, x := range points {
		box = box.Union(bounds.Box{Min: x, Max: x})
	}
	order := particles.NewZMajorUnigrid(particles.DefaultPositionResolution)
	pos := particles.NewPositionIDs(order, box)

	out := make([]uint64, len(points))
	for i := range points {
		out[i] = pos.ID(points[i])
	}
	return out
}
