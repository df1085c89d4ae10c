package particles

import (
	"testing"

	"github.com/phil-mansfield/advect/lib/bounds"
)

func TestZMajorUnigridIndex(t *testing.T) {
	n := 10
	order := NewZMajorUnigrid(n)
	tests := []struct {
		idx [3]int
		id  uint64
	}{
		{[3]int{0, 0, 0}, 0},
		{[3]int{9, 9, 9}, 999},
		{[3]int{1, 1, 1}, 111},
		{[3]int{3, 2, 1}, 321},
	}

	for i := range tests {
		id := order.IndexToID(tests[i].idx)
		idx := order.IDToIndex(tests[i].id)
		if id != tests[i].id {
			t.Errorf("%d) Expected index %d to have id %d, got %d.",
				i, tests[i].idx, tests[i].id, id)
		} else if idx != tests[i].idx {
			t.Errorf("%d) Expected id %d to have index %d, got %d.",
				i, tests[i].id, tests[i].idx, idx)
		}
	}

	if span := order.Span(); span != [3]int{10, 10, 10} {
		t.Errorf("Expected order.Span() = [10 10 10], got %d", span)
	}
}

func TestPositionIDs(t *testing.T) {
	box := bounds.Box{[3]float64{0, 0, 0}, [3]float64{10, 10, 10}}
	ids := NewPositionIDs(NewZMajorUnigrid(10), box)

	tests := []struct {
		x  [3]float64
		id uint64
	}{
		{[3]float64{0, 0, 0}, 0},
		{[3]float64{3.5, 2.5, 1.5}, 321},
		{[3]float64{10, 10, 10}, 999},
		{[3]float64{-4, 20, 0}, 90},
	}

	for i := range tests {
		if id := ids.ID(tests[i].x); id != tests[i].id {
			t.Errorf("%d) Expected ID(%v) = %d, got %d.",
				i, tests[i].x, tests[i].id, id)
		}
	}
}
