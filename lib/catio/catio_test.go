package catio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phil-mansfield/advect/lib/eq"
)

const table = `# x y z id
0 0.5 1  10
1.5 2 -3 11   # trailing comment

	4 5 6 12
`

func TestReadFloat64s(t *testing.T) {
	rd := Text([]byte(table))
	if rd.Rows() != 3 || rd.Columns() != 4 {
		t.Fatalf("Expected 3 rows and 4 columns, got %d and %d.",
			rd.Rows(), rd.Columns())
	}

	cols, err := rd.ReadFloat64s([]int{0, 2})
	if err != nil {
		t.Fatalf("Unexpected error %s.", err.Error())
	}
	if !eq.Float64s(cols[0], []float64{0, 1.5, 4}) ||
		!eq.Float64s(cols[1], []float64{1, -3, 6}) {
		t.Errorf("Got columns %g.", cols)
	}

	ids, err := rd.ReadUint64s([]int{3})
	if err != nil {
		t.Fatalf("Unexpected error %s.", err.Error())
	}
	if !eq.Slices(ids[0], []uint64{10, 11, 12}) {
		t.Errorf("Expected ids 10, 11, 12, got %d.", ids[0])
	}
}

func TestReadErrors(t *testing.T) {
	rd := Text([]byte(table))
	tests := []interface{}{
		[]int{4},
		[]string{"mass"},
		[]float64{1},
	}
	for i := range tests {
		if _, err := rd.ReadFloat64s(tests[i]); err == nil {
			t.Errorf("%d) Expected reading columns %v to fail.", i, tests[i])
		}
	}

	if _, err := rd.ReadUint64s([]int{1}); err == nil {
		t.Errorf("Expected reading 0.5 as an integer to fail.")
	}
}

func TestConfig(t *testing.T) {
	config := TextConfig{
		Separator: ',', Comment: '%', SkipLines: 1,
		ColumnNames: map[string]int{"x": 0, "id": 1},
	}
	text := "x,id\n1.5, 7\n% skipped\n2.5,8,\n"
	dir := t.TempDir()
	fname := filepath.Join(dir, "seeds.csv")
	if err := os.WriteFile(fname, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}

	rd, err := TextFile(fname, config)
	if err != nil {
		t.Fatalf("Unexpected error %s.", err.Error())
	}
	cols, err := rd.ReadFloat64s([]string{"x", "id"})
	if err != nil {
		t.Fatalf("Unexpected error %s.", err.Error())
	}
	if !eq.Float64s(cols[0], []float64{1.5, 2.5}) ||
		!eq.Float64s(cols[1], []float64{7, 8}) {
		t.Errorf("Got columns %g.", cols)
	}

	if _, err := TextFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Errorf("Expected a missing file to fail.")
	}
}
