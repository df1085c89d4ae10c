package trail

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/phil-mansfield/advect/lib/catio"
	"github.com/phil-mansfield/advect/lib/eq"
	"github.com/phil-mansfield/advect/lib/particles"
	"github.com/phil-mansfield/advect/lib/tracer"
)

func output(t float64, ids []uint64, pts [][3]float64) *tracer.Output {
	return &tracer.Output{
		Time: t,
		Particles: particles.Particles{
			tracer.IDName:       particles.NewUint64(tracer.IDName, ids),
			tracer.PositionName: particles.NewVec64(tracer.PositionName, pts),
		},
	}
}

func TestSinkText(t *testing.T) {
	rec := New(DefaultConfig(), quiet())
	s := Sink{rec}

	steps := []*tracer.Output{
		output(0, []uint64{2, 5}, [][3]float64{{0, 0, 0}, {1, 1, 1}}),
		output(1, []uint64{2, 5}, [][3]float64{{0.5, 0, 0}, {1, 1.5, 1}}),
		output(2, []uint64{5}, [][3]float64{{1, 2, 1}}),
	}
	for i := range steps {
		if err := s.WriteParticles(i, steps[i]); err != nil {
			t.Fatalf("%d) WriteParticles failed: %s", i, err.Error())
		}
	}

	buf := &bytes.Buffer{}
	if err := rec.WriteText(buf); err != nil {
		t.Fatalf("WriteText failed: %s", err.Error())
	}

	rd := catio.Text(buf.Bytes())
	ids, err := rd.ReadUint64s([]int{0})
	if err != nil {
		t.Fatalf("Reading ids failed: %s", err.Error())
	}
	xs, err := rd.ReadFloat64s([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("Reading positions failed: %s", err.Error())
	}

	// The trail of 2 died in the last step.
	if !eq.Slices(ids[0], []uint64{5, 5, 5}) {
		t.Errorf("Expected ids [5 5 5], got %d.", ids[0])
	}
	if !eq.Float64s(xs[1], []float64{1, 1.5, 2}) {
		t.Errorf("Expected y = [1 1.5 2], got %.3g.", xs[1])
	}

	fname := filepath.Join(t.TempDir(), "trails.txt")
	if err := rec.WriteTextFile(fname); err != nil {
		t.Fatalf("WriteTextFile failed: %s", err.Error())
	}
	rdFile, err := catio.TextFile(fname)
	if err != nil {
		t.Fatalf("TextFile failed: %s", err.Error())
	}
	if rdFile.Rows() != 3 || rdFile.Columns() != 4 {
		t.Errorf("Expected a 3 x 4 table, got %d x %d.",
			rdFile.Rows(), rdFile.Columns())
	}

	if err := s.WriteParticles(3, &tracer.Output{Time: 3}); err != nil {
		t.Errorf("Expected an empty output to be accepted: %s", err.Error())
	}
	if rec.Len() != 0 {
		t.Errorf("Expected every trail to die, got %d.", rec.Len())
	}
}
