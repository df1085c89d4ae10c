package lib

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/cache"
	"github.com/phil-mansfield/advect/lib/eq"
	"github.com/phil-mansfield/advect/lib/field"
)

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestExampleConfig(t *testing.T) {
	raw, err := ParseConfigString(ExampleConfig)
	if err != nil {
		t.Fatalf("Could not parse the example config: %s", err.Error())
	}
	args, err := raw.Process(quietLog())
	if err != nil {
		t.Fatalf("Could not process the example config: %s", err.Error())
	}

	if args.SnapshotFormat != "field_{%03d,step}.{%d,0..7}.grid" {
		t.Errorf("Expected the example SnapshotFormat, got %s.",
			args.SnapshotFormat)
	}
	if args.Steps != "0..100" || args.SeedFile != "seeds.txt" {
		t.Errorf("Expected Steps = 0..100 and SeedFile = seeds.txt, got %s "+
			"and %s.", args.Steps, args.SeedFile)
	}
	if args.Tracer.Integrator != "rk45" || args.Tracer.MaximumError != 1e-6 {
		t.Errorf("Expected rk45 with MaximumError 1e-6, got %s with %g.",
			args.Tracer.Integrator, args.Tracer.MaximumError)
	}
	if args.Tracer.MeshVariance != cache.Different ||
		args.Tracer.Locator != field.CellSearch {
		t.Errorf("Expected a different mesh and a cell locator, got %s and %s.",
			args.Tracer.MeshVariance, args.Tracer.Locator)
	}
	if !args.Write || args.RunMode != SerialMode || args.Ranks != 1 {
		t.Errorf("Expected a written serial run on one rank, got %v, %s, %d.",
			args.Write, args.RunMode, args.Ranks)
	}
	if args.Trail.MaxTrackLength != 10 || args.LogLevel != logrus.InfoLevel {
		t.Errorf("Expected TrailLength 10 and LogLevel info, got %d and %s.",
			args.Trail.MaxTrackLength, args.LogLevel)
	}
	if len(args.Names) != 0 {
		t.Errorf("Expected no fields, got %s.", args.Names)
	}
}

func TestMultiValuedFields(t *testing.T) {
	text := `[advect]
SnapshotFormat = f_{%d,step}
SeedFile = seeds.txt
Fields = density
Fields = tag
FieldTypes = f32
FieldTypes = u32
ByteOrder = big
MaxStepDistance = 0
`
	raw, err := ParseConfigString(text)
	if err != nil {
		t.Fatalf("Could not parse the config: %s", err.Error())
	}
	args, err := raw.Process(quietLog())
	if err != nil {
		t.Fatalf("Could not process the config: %s", err.Error())
	}

	if !eq.Strings(args.Names, []string{"density", "tag"}) ||
		!eq.Strings(args.Types, []string{"f32", "u32"}) {
		t.Errorf("Expected fields [density tag] [f32 u32], got %s %s.",
			args.Names, args.Types)
	}
	if args.Order != binary.BigEndian {
		t.Errorf("Expected big endian input.")
	}
	if !math.IsInf(args.Trail.MaxStepDistance[0], +1) {
		t.Errorf("Expected MaxStepDistance = 0 to turn off trail deaths, "+
			"got %g.", args.Trail.MaxStepDistance)
	}
}

func TestOverwrite(t *testing.T) {
	raw, err := ParseConfigString(ExampleConfig)
	if err != nil {
		t.Fatalf("Could not parse the example config: %s", err.Error())
	}
	raw.Overwrite(&RawArgs{Ranks: 4, ForceSerial: true, LogLevel: "debug"})

	if raw.Ranks != 4 || !raw.ForceSerial || raw.LogLevel != "debug" {
		t.Errorf("Expected Ranks = 4, ForceSerial, and LogLevel = debug, "+
			"got %d, %v, %s.", raw.Ranks, raw.ForceSerial, raw.LogLevel)
	}
	if raw.Integrator != "rk45" || raw.SeedFile != "seeds.txt" {
		t.Errorf("Unset command line arguments changed the config.")
	}

	args, err := raw.Process(quietLog())
	if err != nil {
		t.Fatalf("Could not process: %s", err.Error())
	}
	if args.RunMode != RanksMode {
		t.Errorf("Expected more than one rank to use %s, got %s.",
			RanksMode, args.RunMode)
	}
}

func TestProcessErrors(t *testing.T) {
	base := "[advect]\nSnapshotFormat = f_{%d,step}\nSeedFile = s.txt\n"
	tests := []struct {
		extra string
		valid bool
	}{
		{"", true},
		{"Integrator = euler\n", false},
		{"MeshVariance = wobbly\n", false},
		{"Locator = octree\n", false},
		{"ByteOrder = middle\n", false},
		{"LogLevel = loud\n", false},
		{"CheckStrictness = maybe\n", false},
		{"Fields = a\nFields = b\nFieldTypes = f64\n", false},
		{"Ranks = -3\n", true},
	}

	for i := range tests {
		raw, err := ParseConfigString(base + tests[i].extra)
		if err != nil {
			t.Errorf("%d) Could not parse: %s", i, err.Error())
			continue
		}
		_, err = raw.Process(quietLog())
		if tests[i].valid && err != nil {
			t.Errorf("%d) Expected %q to be valid, got %s.",
				i, tests[i].extra, err.Error())
		} else if !tests[i].valid && err == nil {
			t.Errorf("%d) Expected %q to be invalid.", i, tests[i].extra)
		}
	}

	raw, _ := ParseConfigString("[advect]\nSeedFile = s.txt\n")
	if _, err := raw.Process(quietLog()); err == nil {
		t.Errorf("Expected an error without a SnapshotFormat.")
	}
}

func TestOutputTimes(t *testing.T) {
	snaps := []float64{0, 1, 2, 3}
	tests := []struct {
		start, step, term float64
		useTerm           bool
		out               []float64
	}{
		{0, 0, 0, false, []float64{1, 2, 3}},
		{1, 0, 0, false, []float64{2, 3}},
		{0.5, 0, 2.5, true, []float64{1, 2}},
		{0, 0.75, 0, false, []float64{0.75, 1.5, 2.25, 3}},
		{0, 1, 2, true, []float64{1, 2}},
		{3, 0, 0, false, []float64{}},
	}

	for i := range tests {
		args := &Args{OutputStep: tests[i].step}
		args.Tracer.StartTime = tests[i].start
		args.Tracer.TerminationTime = tests[i].term
		args.Tracer.UseTerminationTime = tests[i].useTerm

		out := args.OutputTimes(snaps)
		if !eq.Float64sEps(out, tests[i].out, 1e-12) {
			t.Errorf("%d) Expected OutputTimes = %g, got %g.",
				i, tests[i].out, out)
		}
	}
}

func TestByteOrderAndLogger(t *testing.T) {
	for _, s := range []string{"little", "big", "native", ""} {
		if _, err := ParseByteOrder(s); err != nil {
			t.Errorf("Expected '%s' to be a byte order: %s", s, err.Error())
		}
	}
	if order, _ := ParseByteOrder("native"); order != SystemByteOrder() {
		t.Errorf("Expected 'native' to be the system byte order.")
	}

	buf := &bytes.Buffer{}
	log, err := NewLogger("warn", buf)
	if err != nil {
		t.Fatalf("NewLogger failed: %s", err.Error())
	}
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") ||
		!strings.Contains(buf.String(), "shown") {
		t.Errorf("Expected only the warning to be logged, got %q.", buf.String())
	}
	if _, err := NewLogger("loud", buf); err == nil {
		t.Errorf("Expected an error for an unknown level.")
	}
}
