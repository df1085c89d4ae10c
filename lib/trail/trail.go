/*
package trail records the recent path of each particle across steps and
turns them into polylines. Trails are keyed by particle id and hold at most
MaxTrackLength points in a ring buffer.
*/
package trail

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// minStep is the smallest movement that adds a new point to a trail.
const minStep = 1e-9

// Config controls which particles get trails and how long they are.
type Config struct {
	// MaxTrackLength is the number of points kept per trail.
	MaxTrackLength int
	// MaskPoints keeps trails only for every MaskPoints-th id.
	MaskPoints int
	// A trail dies if a particle jumps farther than MaxStepDistance along
	// any axis in one step.
	MaxStepDistance [3]float64
	// KeepDeadTrails keeps trails whose particle has stopped updating.
	KeepDeadTrails bool
}

// DefaultConfig returns the default trail settings.
func DefaultConfig() Config {
	return Config{
		MaxTrackLength:  10,
		MaskPoints:      1,
		MaxStepDistance: [3]float64{1, 1, 1},
	}
}

// Line is the polyline of one trail, oldest point first.
type Line struct {
	ID     uint64
	Points [][3]float64
}

// Front returns the newest point of the line.
func (l Line) Front() [3]float64 { return l.Points[len(l.Points)-1] }

type trail struct {
	coords         [][3]float64
	first, last    int
	length         int
	alive, updated bool
}

// Recorder collects trails over many steps.
type Recorder struct {
	cfg       Config
	log       logrus.FieldLogger
	trails    map[uint64]*trail
	selection map[uint64]bool

	started    bool
	latest     float64
	lastLength int
}

// New creates a Recorder. Non-positive lengths and masks are replaced with 1.
func New(cfg Config, log logrus.FieldLogger) *Recorder {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	r := &Recorder{log: log, trails: map[uint64]*trail{}}
	r.SetConfig(cfg)
	return r
}

// SetConfig changes the settings. Changing MaxTrackLength flushes every
// trail at the next Add.
func (r *Recorder) SetConfig(cfg Config) {
	if cfg.MaskPoints < 1 {
		r.log.WithField("MaskPoints", cfg.MaskPoints).Warn(
			"MaskPoints should be >= 1. Using 1 instead.")
		cfg.MaskPoints = 1
	}
	if cfg.MaxTrackLength < 1 {
		r.log.WithField("MaxTrackLength", cfg.MaxTrackLength).Warn(
			"MaxTrackLength should be >= 1. Using 1 instead.")
		cfg.MaxTrackLength = 1
	}
	r.cfg = cfg
}

// SetSelection restricts trails to the given ids. MaskPoints is ignored
// while a selection is set. A nil slice removes the selection.
func (r *Recorder) SetSelection(ids []uint64) {
	if ids == nil {
		r.selection = nil
		return
	}
	r.selection = map[uint64]bool{}
	for _, id := range ids {
		r.selection[id] = true
	}
}

// Flush discards every trail.
func (r *Recorder) Flush() {
	r.trails = map[uint64]*trail{}
	r.started = false
}

// Len returns the number of trails.
func (r *Recorder) Len() int { return len(r.trails) }

// Add extends the trails with the particle positions at time t. ids[i] is
// the id of the particle at pts[i]. Trails are flushed first if t is earlier
// than the last time or MaxTrackLength has changed. Trails of particles
// that aren't in this step die.
func (r *Recorder) Add(t float64, ids []uint64, pts [][3]float64) {
	if r.started && (t < r.latest || r.lastLength != r.cfg.MaxTrackLength) {
		r.Flush()
	}
	r.started, r.latest, r.lastLength = true, t, r.cfg.MaxTrackLength

	for _, tr := range r.trails {
		tr.alive, tr.updated = false, false
	}

	mask := uint64(r.cfg.MaskPoints)
	for i, id := range ids {
		if r.selection != nil {
			if !r.selection[id] {
				continue
			}
		} else if id%mask != 0 {
			continue
		}
		r.increment(r.trail(id), pts[i])
	}

	if r.cfg.KeepDeadTrails {
		return
	}
	for id, tr := range r.trails {
		if !tr.alive {
			delete(r.trails, id)
		}
	}
}

func (r *Recorder) trail(id uint64) *trail {
	tr, ok := r.trails[id]
	if !ok {
		tr = &trail{coords: make([][3]float64, r.cfg.MaxTrackLength)}
		r.trails[id] = tr
	}
	return tr
}

func (r *Recorder) index(i int) int {
	n := r.cfg.MaxTrackLength
	return ((i % n) + n) % n
}

func dist2(a, b [3]float64) float64 {
	sum := 0.0
	for dim := 0; dim < 3; dim++ {
		d := a[dim] - b[dim]
		sum += d * d
	}
	return sum
}

// increment adds x to the end of a trail.
func (r *Recorder) increment(tr *trail, x [3]float64) {
	// Two particles with the same id: keep the one closest to the trail.
	if tr.updated {
		if tr.length > 1 {
			prev := tr.coords[r.index(tr.last-2)]
			head := r.index(tr.last - 1)
			if dist2(prev, x) < dist2(prev, tr.coords[head]) {
				tr.coords[head] = x
			}
		}
		return
	}

	dist := 1.0
	if tr.length > 0 {
		lastX := tr.coords[r.index(tr.last-1)]
		for dim := 0; dim < 3; dim++ {
			if math.Abs(lastX[dim]-x[dim]) > r.cfg.MaxStepDistance[dim] {
				tr.alive, tr.updated = false, true
				return
			}
		}
		dist = math.Sqrt(dist2(lastX, x))
	}

	tr.coords[tr.last] = x
	if dist > minStep {
		tr.last++
		tr.length++
		if tr.length >= r.cfg.MaxTrackLength {
			tr.last = tr.last % r.cfg.MaxTrackLength
			tr.first = tr.last
			tr.length = r.cfg.MaxTrackLength
		}
		tr.updated = true
	}
	tr.alive = true
}

// Lines returns the polyline of every non-empty trail, ordered by id.
func (r *Recorder) Lines() []Line {
	ids := make([]uint64, 0, len(r.trails))
	for id := range r.trails {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []Line{}
	for _, id := range ids {
		tr := r.trails[id]
		if tr.length == 0 {
			continue
		}
		pts := make([][3]float64, tr.length)
		for p := range pts {
			pts[p] = tr.coords[r.index(tr.first+p)]
		}
		out = append(out, Line{id, pts})
	}
	return out
}
