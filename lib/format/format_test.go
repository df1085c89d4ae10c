package format

import (
	"testing"

	"github.com/phil-mansfield/advect/lib/eq"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		s      string
		lo, hi int
		valid  bool
	}{
		{"7", 7, 7, true},
		{"2..5", 2, 5, true},
		{"5..2", 0, 0, false},
		{"a..5", 0, 0, false},
		{"1..2..3", 0, 0, false},
	}

	for i := range tests {
		lo, hi, err := parseRange(tests[i].s)
		if (err == nil) != tests[i].valid {
			t.Errorf("%d) Expected valid = %v for '%s', got err = %v.",
				i, tests[i].valid, tests[i].s, err)
		} else if lo != tests[i].lo || hi != tests[i].hi {
			t.Errorf("%d) Expected '%s' to give %d..%d, got %d..%d.",
				i, tests[i].s, tests[i].lo, tests[i].hi, lo, hi)
		}
	}
}

func TestExpandStepFormat(t *testing.T) {
	tests := []struct {
		seq   string
		steps []int
		valid bool
	}{
		{"3", []int{3}, true},
		{"0..4", []int{0, 1, 2, 3, 4}, true},
		{" 0..6 - 2..3 - 5 ", []int{0, 1, 4, 6}, true},
		{"+8 + 0..1", []int{0, 1, 8}, true},
		{"", nil, false},
		{"0..4 - 7", nil, false},
		{"0..4 + 2", nil, false},
		{"0..4 +", nil, false},
		{"0 + - 1", nil, false},
		{"0 1", nil, false},
		{"0..2000000", nil, false},
	}

	for i := range tests {
		steps, err := ExpandStepFormat(tests[i].seq)
		if (err == nil) != tests[i].valid {
			t.Errorf("%d) Expected valid = %v for '%s', got err = %v.",
				i, tests[i].valid, tests[i].seq, err)
		} else if err == nil && !eq.Ints(steps, tests[i].steps) {
			t.Errorf("%d) Expected '%s' to expand to %d, got %d.",
				i, tests[i].seq, tests[i].steps, steps)
		}
	}
}

func TestParseFileFormat(t *testing.T) {
	tests := []struct {
		format string
		step   int
		files  []string
		valid  bool
	}{
		{"field.grid", 3, []string{"field.grid"}, true},
		{"field_{%03d,step}.grid", 7, []string{"field_007.grid"}, true},
		{"step{%d,step}/block.{%d,0..2}", 12,
			[]string{"step12/block.0", "step12/block.1", "step12/block.2"}, true},
		{"{%d,0..1}_{%d,4 + 6}", 0,
			[]string{"0_4", "0_6", "1_4", "1_6"}, true},
		{"field_{%03d}.grid", 0, nil, false},
		{"field_{%s,step}.grid", 0, nil, false},
		{"field_{%d,snapshot}.grid", 0, nil, false},
		{"field_{%d,step,1}.grid", 0, nil, false},
		{"field_{%d,step.grid", 0, nil, false},
		{"field_%d,step}.grid", 0, nil, false},
		{"field_{{%d,step}}.grid", 0, nil, false},
	}

	for i := range tests {
		ff, err := ParseFileFormat(tests[i].format)
		if (err == nil) != tests[i].valid {
			t.Errorf("%d) Expected valid = %v for '%s', got err = %v.",
				i, tests[i].valid, tests[i].format, err)
			continue
		} else if err != nil {
			continue
		}

		files := ff.Expand(tests[i].step)
		if !eq.Strings(files, tests[i].files) {
			t.Errorf("%d) Expected '%s' to expand to %s at step %d, got %s.",
				i, tests[i].format, tests[i].files, tests[i].step, files)
		}
	}
}
