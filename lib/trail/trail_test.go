package trail

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/eq"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func line(xs ...float64) [][3]float64 {
	out := make([][3]float64, len(xs))
	for i := range xs {
		out[i] = [3]float64{xs[i], 0, 0}
	}
	return out
}

func xs(pts [][3]float64) []float64 {
	out := make([]float64, len(pts))
	for i := range pts {
		out[i] = pts[i][0]
	}
	return out
}

func TestRingBuffer(t *testing.T) {
	tests := []struct {
		maxLen int
		steps  int
		want   []float64
	}{
		{10, 1, []float64{0}},
		{10, 4, []float64{0, 0.1, 0.2, 0.3}},
		{3, 3, []float64{0, 0.1, 0.2}},
		{3, 5, []float64{0.2, 0.3, 0.4}},
		{1, 4, []float64{0.3}},
	}

	for i := range tests {
		cfg := DefaultConfig()
		cfg.MaxTrackLength = tests[i].maxLen
		r := New(cfg, quiet())
		for s := 0; s < tests[i].steps; s++ {
			r.Add(float64(s), []uint64{7}, line(0.1*float64(s)))
		}

		lines := r.Lines()
		if len(lines) != 1 {
			t.Errorf("%d) Expected 1 line, got %d.", i, len(lines))
			continue
		}
		if lines[0].ID != 7 {
			t.Errorf("%d) Expected id 7, got %d.", i, lines[0].ID)
		}
		if !eq.Float64sEps(xs(lines[0].Points), tests[i].want, 1e-12) {
			t.Errorf("%d) Expected points %g, got %g.", i,
				tests[i].want, xs(lines[0].Points))
		}
	}
}

func TestMaskAndSelection(t *testing.T) {
	ids := []uint64{0, 1, 2, 3, 4, 5, 6}
	pts := line(0, 1, 2, 3, 4, 5, 6)

	tests := []struct {
		mask      int
		selection []uint64
		want      []uint64
	}{
		{1, nil, []uint64{0, 1, 2, 3, 4, 5, 6}},
		{3, nil, []uint64{0, 3, 6}},
		{0, nil, []uint64{0, 1, 2, 3, 4, 5, 6}},
		{3, []uint64{1, 5, 9}, []uint64{1, 5}},
	}

	for i := range tests {
		cfg := DefaultConfig()
		cfg.MaskPoints = tests[i].mask
		r := New(cfg, quiet())
		r.SetSelection(tests[i].selection)
		r.Add(0, ids, pts)

		got := []uint64{}
		for _, l := range r.Lines() {
			got = append(got, l.ID)
		}
		if !eq.Slices(got, tests[i].want) {
			t.Errorf("%d) Expected trails %d, got %d.", i, tests[i].want, got)
		}
	}
}

func TestDeadTrails(t *testing.T) {
	for _, keep := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.KeepDeadTrails = keep
		r := New(cfg, quiet())

		r.Add(0, []uint64{1, 2}, line(0, 5))
		r.Add(1, []uint64{1, 2}, line(0.5, 5.5))
		// Particle 2 disappears and particle 1 jumps too far.
		r.Add(2, []uint64{1}, line(3))

		want := 0
		if keep {
			want = 2
		}
		if r.Len() != want {
			t.Errorf("keep = %v) Expected %d trails, got %d.", keep, want, r.Len())
		}
		if keep {
			lines := r.Lines()
			if !eq.Float64s(xs(lines[0].Points), []float64{0, 0.5}) {
				t.Errorf("Expected the jump to be dropped, got %g.",
					xs(lines[0].Points))
			}
		}
	}
}

func TestFlush(t *testing.T) {
	r := New(DefaultConfig(), quiet())
	r.Add(0, []uint64{1}, line(0))
	r.Add(1, []uint64{1}, line(0.5))
	r.Add(0.5, []uint64{1}, line(0.25))

	lines := r.Lines()
	if len(lines) != 1 || !eq.Float64s(xs(lines[0].Points), []float64{0.25}) {
		t.Errorf("Expected going back in time to flush the trails.")
	}

	cfg := DefaultConfig()
	cfg.MaxTrackLength = 4
	r.SetConfig(cfg)
	r.Add(1, []uint64{1}, line(0.75))
	lines = r.Lines()
	if len(lines) != 1 || len(lines[0].Points) != 1 {
		t.Errorf("Expected changing the track length to flush the trails.")
	}
	if lines[0].Front() != [3]float64{0.75, 0, 0} {
		t.Errorf("Expected the front at 0.75, got %g.", lines[0].Front())
	}
}

func TestStationaryAndDuplicates(t *testing.T) {
	r := New(DefaultConfig(), quiet())
	r.Add(0, []uint64{1}, line(0))
	r.Add(1, []uint64{1}, line(0))
	r.Add(2, []uint64{1}, line(0.2))
	// Two particles with id 1. The one closer to the trail wins.
	r.Add(3, []uint64{1, 1}, line(0.4, 0.3))

	lines := r.Lines()
	if len(lines) != 1 ||
		!eq.Float64s(xs(lines[0].Points), []float64{0, 0.2, 0.3}) {
		t.Errorf("Expected points [0 0.2 0.3], got %g.", xs(lines[0].Points))
	}
}
