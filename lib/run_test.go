package lib

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/advect/lib/catio"
	"github.com/phil-mansfield/advect/lib/field"
	"github.com/phil-mansfield/advect/lib/snapio"
	"github.com/phil-mansfield/advect/lib/tracer"
)

var seedXs = []float64{1, 2.5, 4.2, 6, 7}

// writeRunFiles writes three snapshots of a uniform flow along x, split into
// two blocks, and a seed file. It returns a config for them.
func writeRunFiles(t *testing.T, ranks int) string {
	dir := t.TempDir()
	for step, time := range []float64{0, 1, 2} {
		for blk := 0; blk < 2; blk++ {
			b, err := field.Sample([3]float64{5 * float64(blk), 0, 0},
				[3]float64{1, 1, 1}, [3]int{6, 11, 11}, time,
				field.Constant([3]float64{1, 0, 0}), []string{"density"},
				func(x [3]float64) []float64 { return []float64{x[0]} })
			require.NoError(t, err)
			name := filepath.Join(dir, fmt.Sprintf("field_%02d.%d.grid", step, blk))
			require.NoError(t, snapio.WriteGrid(name, time, b, binary.LittleEndian))
		}
	}

	seeds := "# x y z id\n"
	for i, x := range seedXs {
		seeds += fmt.Sprintf("%g 5 5 %d\n", x, 10+i)
	}
	seedFile := filepath.Join(dir, "seeds.txt")
	require.NoError(t, os.WriteFile(seedFile, []byte(seeds), 0644))

	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(outDir, 0755))

	return fmt.Sprintf(`[advect]
SnapshotFormat = %s
Steps = 0..2
Fields = density
SeedFile = %s
Integrator = rk4
MaximumStep = 0.25
Ranks = %d
Write = true
OutputDir = %s
TrailFile = %s
MaxStepDistance = 5
LogLevel = warn
`, filepath.Join(dir, "field_{%02d,step}.{%d,0..1}.grid"), seedFile, ranks,
		outDir, filepath.Join(dir, "trails.txt"))
}

func processConfig(t *testing.T, text string) *Args {
	raw, err := ParseConfigString(text)
	require.NoError(t, err)
	args, err := raw.Process(quietLog())
	require.NoError(t, err)
	return args
}

func TestCheck(t *testing.T) {
	args := processConfig(t, writeRunFiles(t, 1))
	problems, err := Check(args, quietLog())
	require.NoError(t, err)
	assert.Empty(t, problems)

	args.SeedFile = filepath.Join(args.OutputDir, "missing.txt")
	_, err = Check(args, quietLog())
	assert.Error(t, err)

	args.Strictness = WarnOnError
	args.OutputDir = filepath.Join(args.OutputDir, "missing")
	args.Tracer.StartTime = 10
	problems, err = Check(args, quietLog())
	require.NoError(t, err)
	assert.Len(t, problems, 3)
}

func TestRun(t *testing.T) {
	for _, ranks := range []int{1, 2} {
		args := processConfig(t, writeRunFiles(t, ranks))
		sum, err := Run(context.Background(), args, quietLog())
		require.NoError(t, err, "ranks = %d", ranks)
		assert.Equal(t, 2, sum.Steps)
		assert.Equal(t, len(seedXs), sum.Particles, "ranks = %d", ranks)
		assert.Equal(t, 0, sum.Terminated)

		files := []string{}
		for rank := 0; rank < ranks; rank++ {
			files = append(files, filepath.Join(args.OutputDir,
				fmt.Sprintf("particles.%04d.%d.adv", 1, rank)))
		}
		hd, p, err := CollectParticles(files)
		require.NoError(t, err)
		assert.Equal(t, int64(1), hd.Step)
		assert.InDelta(t, 2.0, hd.Time, 1e-12)
		assert.Equal(t, sum.RunID, hd.RunID)

		ids := p[tracer.IDName].Data().([]uint64)
		pos := p[tracer.PositionName].Data().([][3]float64)
		density := p["density"].Data().([]float64)
		require.Len(t, ids, len(seedXs))
		for i := range ids {
			if i > 0 {
				assert.Less(t, ids[i-1], ids[i])
			}
			assert.InDelta(t, density[i]+2, pos[i][0], 1e-9,
				"ranks = %d, id %d", ranks, ids[i])
			assert.InDelta(t, 5.0, pos[i][1], 1e-9)
		}

		rd, err := catio.TextFile(args.TrailFile)
		require.NoError(t, err)
		assert.Equal(t, 2*len(seedXs), rd.Rows(), "ranks = %d", ranks)
	}
}

func TestCollectParticlesErrors(t *testing.T) {
	_, _, err := CollectParticles(nil)
	assert.Error(t, err)
	_, _, err = CollectParticles([]string{filepath.Join(t.TempDir(), "none.adv")})
	assert.Error(t, err)
}
