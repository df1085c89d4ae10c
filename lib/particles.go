package lib

/* This file contains functions for combining the particle files of a run. */

import (
	"fmt"
	"sort"

	"github.com/phil-mansfield/advect/lib/compress"
	"github.com/phil-mansfield/advect/lib/particles"
	"github.com/phil-mansfield/advect/lib/tracer"
)

// CollectParticles reads the particle files written by every rank for one
// step and collects the live particles into a single set of arrays, ordered
// by id. It also returns the header of the first file. Every file must come
// from the same run and step.
func CollectParticles(fnames []string) (*compress.Header, particles.Particles, error) {
	if len(fnames) == 0 {
		return nil, nil, fmt.Errorf("No particle files were given.")
	}

	files := make([]*compress.File, len(fnames))
	for i, fname := range fnames {
		f, err := compress.ReadFile(fname)
		if err != nil {
			return nil, nil, err
		}
		if i > 0 && (f.RunID != files[0].RunID || f.Step != files[0].Step) {
			return nil, nil, fmt.Errorf("The file %s is from run %s step %d, "+
				"but %s is from run %s step %d.", fname, f.RunID, f.Step,
				fnames[0], files[0].RunID, files[0].Step)
		}
		if _, ok := f.Particles[tracer.IDName]; !ok {
			return nil, nil, fmt.Errorf("The file %s has no '%s' field.",
				fname, tracer.IDName)
		}
		files[i] = f
	}

	// Find where every row goes.
	ids := []uint64{}
	for _, f := range files {
		ids = append(ids, f.Particles[tracer.IDName].Data().([]uint64)...)
	}
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return ids[order[i]] < ids[order[j]] })
	dest := make([]int, len(ids))
	for k, row := range order {
		dest[row] = k
	}

	out := particles.Particles{}
	for _, field := range files[0].Particles {
		field.CreateDestination(out, len(ids))
	}

	start := 0
	for i, f := range files {
		n := f.Particles[tracer.IDName].Len()
		if len(f.Particles) != len(out) {
			return nil, nil, fmt.Errorf("The file %s has %d fields, but %s "+
				"has %d.", fnames[i], len(f.Particles), fnames[0], len(out))
		}
		from := make([]int, n)
		for j := range from {
			from[j] = j
		}
		to := dest[start : start+n]
		for _, field := range f.Particles {
			if err := field.Transfer(out, from, to); err != nil {
				return nil, nil, fmt.Errorf("Could not collect %s: %w",
					fnames[i], err)
			}
		}
		start += n
	}

	return &files[0].Header, out, nil
}
