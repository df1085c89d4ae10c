package lib

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/sirupsen/logrus"
	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/advect/lib/cache"
	"github.com/phil-mansfield/advect/lib/compress"
	"github.com/phil-mansfield/advect/lib/field"
	"github.com/phil-mansfield/advect/lib/integrate"
	"github.com/phil-mansfield/advect/lib/snapio"
	"github.com/phil-mansfield/advect/lib/tracer"
	"github.com/phil-mansfield/advect/lib/trail"
)

// ConfigWrapper is the layout of a config file: a single [advect] section.
type ConfigWrapper struct {
	Advect RawArgs
}

// RawArgs stores the unprocessed values which the user assigned to each
// config variable.
type RawArgs struct {
	// Input
	SnapshotFormat string
	Steps          string
	Fields         []string
	FieldTypes     []string
	ByteOrder      string
	SeedFile       string
	SelectionFile  string

	// Integration
	Integrator         string
	MaximumStep        float64
	MinimumStep        float64
	MaximumError       float64
	TerminalSpeed      float64
	ComputeVorticity   bool
	RotationScale      float64
	StartTime          float64
	TerminationTime    float64
	UseTerminationTime bool
	OutputStep         float64
	MeshVariance       string
	Locator            string
	StaticSeeds        bool
	ReinjectionEvery   int
	DisableResetCache  bool

	// Parallelism
	Threads     int
	Ranks       int
	ForceSerial bool

	// Output
	Write            bool
	OutputDir        string
	OutputFormat     string
	OutputByteOrder  string
	CompressionLevel int
	TrailFile        string
	TrailLength      int
	MaskPoints       int
	MaxStepDistance  float64
	KeepDeadTrails   bool

	LogLevel        string
	CheckStrictness string
}

// DefaultRawArgs returns the values used for variables a config file
// doesn't set.
func DefaultRawArgs() *RawArgs {
	tc := tracer.DefaultConfig()
	trc := trail.DefaultConfig()
	return &RawArgs{
		Steps:            "0",
		ByteOrder:        "little",
		Integrator:       tc.Integrator,
		MaximumStep:      tc.MaximumStep,
		MinimumStep:      tc.MinimumStep,
		MaximumError:     tc.MaximumError,
		TerminalSpeed:    tc.TerminalSpeed,
		RotationScale:    tc.RotationScale,
		MeshVariance:     tc.MeshVariance.String(),
		Locator:          tc.Locator.String(),
		Ranks:            1,
		OutputDir:        ".",
		OutputFormat:     compress.DefaultFormat,
		OutputByteOrder:  "little",
		CompressionLevel: compress.DefaultLevel,
		TrailLength:      trc.MaxTrackLength,
		MaskPoints:       trc.MaskPoints,
		MaxStepDistance:  trc.MaxStepDistance[0],
		LogLevel:         "info",
		CheckStrictness:  "crash",
	}
}

// ParseConfigFile parses arguments from a config file. Variables which
// aren't in the file keep the values from DefaultRawArgs.
func ParseConfigFile(fileName string) (*RawArgs, error) {
	wrap := &ConfigWrapper{*DefaultRawArgs()}
	if err := gcfg.ReadFileInto(wrap, fileName); err != nil {
		return nil, fmt.Errorf("Could not parse the config file %s: %w",
			fileName, err)
	}
	return &wrap.Advect, nil
}

// ParseConfigString parses arguments from the text of a config file.
func ParseConfigString(text string) (*RawArgs, error) {
	wrap := &ConfigWrapper{*DefaultRawArgs()}
	if err := gcfg.ReadStringInto(wrap, text); err != nil {
		return nil, err
	}
	return &wrap.Advect, nil
}

// Overwrite arguments in arg1 which have been set to non-zero values in
// arg2.
func (arg1 *RawArgs) Overwrite(arg2 *RawArgs) {
	v1 := reflect.ValueOf(arg1).Elem()
	v2 := reflect.ValueOf(arg2).Elem()
	for i := 0; i < v2.NumField(); i++ {
		if f := v2.Field(i); !f.IsZero() {
			v1.Field(i).Set(f)
		}
	}
}

// Args stores configuration information. It is a post-processed version of
// RawArgs.
type Args struct {
	RunMode    RunMode
	Strictness CheckStrictness
	LogLevel   logrus.Level

	SnapshotFormat, Steps string
	Names, Types          []string
	Order                 binary.ByteOrder
	SeedFile              string
	SelectionFile         string

	Tracer     tracer.Config
	OutputStep float64

	Ranks int

	Write            bool
	OutputDir        string
	OutputFormat     string
	OutputOrder      binary.ByteOrder
	CompressionLevel int
	TrailFile        string
	Trail            trail.Config
}

// Process converts the raw user input to a format which is more useful for
// internal functions. Very simple validation will be done here, but nothing
// which requires interacting with external files. Cosmetic problems are
// fixed and logged.
func (raw *RawArgs) Process(log logrus.FieldLogger) (*Args, error) {
	args := &Args{
		SnapshotFormat: raw.SnapshotFormat, Steps: raw.Steps,
		SeedFile: raw.SeedFile, SelectionFile: raw.SelectionFile,
		OutputStep: raw.OutputStep, Ranks: raw.Ranks,
		Write: raw.Write, OutputDir: raw.OutputDir,
		OutputFormat: raw.OutputFormat, CompressionLevel: raw.CompressionLevel,
		TrailFile: raw.TrailFile,
	}

	var err error
	if args.LogLevel, err = logrus.ParseLevel(raw.LogLevel); err != nil {
		return nil, err
	}
	if args.Strictness, err = ParseCheckStrictness(raw.CheckStrictness); err != nil {
		return nil, err
	}

	if raw.SnapshotFormat == "" {
		return nil, fmt.Errorf("SnapshotFormat must be set.")
	} else if raw.SeedFile == "" {
		return nil, fmt.Errorf("SeedFile must be set.")
	}

	args.Names = raw.Fields
	args.Types = raw.FieldTypes
	if len(args.Types) == 0 {
		args.Types = make([]string, len(args.Names))
		for i := range args.Types {
			args.Types[i] = "f64"
		}
	} else if len(args.Types) != len(args.Names) {
		return nil, fmt.Errorf("%d Fields were given, but %d FieldTypes.",
			len(args.Names), len(args.Types))
	}

	if args.Order, err = ParseByteOrder(raw.ByteOrder); err != nil {
		return nil, err
	}
	if args.OutputOrder, err = ParseByteOrder(raw.OutputByteOrder); err != nil {
		return nil, err
	}

	if args.Tracer, err = raw.tracerConfig(); err != nil {
		return nil, err
	}

	if args.Ranks < 1 {
		log.WithField("Ranks", args.Ranks).Warn(
			"Ranks should be >= 1. Using 1 instead.")
		args.Ranks = 1
	}
	if args.Ranks > 1 {
		args.RunMode = RanksMode
	}
	if args.OutputStep < 0 {
		log.WithField("OutputStep", args.OutputStep).Warn(
			"Negative OutputStep. Writing at snapshot times instead.")
		args.OutputStep = 0
	}

	args.Trail = trail.Config{
		MaxTrackLength: raw.TrailLength,
		MaskPoints:     raw.MaskPoints,
		MaxStepDistance: [3]float64{
			raw.MaxStepDistance, raw.MaxStepDistance, raw.MaxStepDistance,
		},
		KeepDeadTrails: raw.KeepDeadTrails,
	}
	if raw.MaxStepDistance <= 0 {
		inf := math.Inf(1)
		args.Trail.MaxStepDistance = [3]float64{inf, inf, inf}
	}

	return args, nil
}

func (raw *RawArgs) tracerConfig() (tracer.Config, error) {
	c := tracer.DefaultConfig()
	if _, err := integrate.New(raw.Integrator); err != nil {
		return c, err
	}
	var err error
	if c.MeshVariance, err = cache.ParseMeshVariance(raw.MeshVariance); err != nil {
		return c, err
	}
	if c.Locator, err = field.ParseLocatorKind(raw.Locator); err != nil {
		return c, err
	}

	c.Integrator = raw.Integrator
	c.MaximumStep, c.MinimumStep = raw.MaximumStep, raw.MinimumStep
	c.MaximumError, c.TerminalSpeed = raw.MaximumError, raw.TerminalSpeed
	c.ComputeVorticity, c.RotationScale = raw.ComputeVorticity, raw.RotationScale
	c.StartTime = raw.StartTime
	c.TerminationTime, c.UseTerminationTime = raw.TerminationTime, raw.UseTerminationTime
	c.StaticSeeds = raw.StaticSeeds
	c.ReinjectionEvery = raw.ReinjectionEvery
	c.DisableResetCache = raw.DisableResetCache
	c.Threads, c.ForceSerial = raw.Threads, raw.ForceSerial
	return c, nil
}

// NewProvider creates the provider over the snapshot files.
func (args *Args) NewProvider() (*snapio.GridFiles, error) {
	return snapio.NewGridFiles(
		args.SnapshotFormat, args.Steps, args.Names, args.Types, args.Order,
	)
}

// OutputTimes returns the times the tracer is advanced to, given the times
// of the snapshots. Outputs are written every OutputStep after the start
// time, or at every snapshot if OutputStep is zero.
func (args *Args) OutputTimes(snapTimes []float64) []float64 {
	if len(snapTimes) == 0 {
		return nil
	}
	start := args.Tracer.StartTime
	end := snapTimes[len(snapTimes)-1]
	if args.Tracer.UseTerminationTime && args.Tracer.TerminationTime < end {
		end = args.Tracer.TerminationTime
	}

	out := []float64{}
	if args.OutputStep > 0 {
		for k := 1; ; k++ {
			t := start + float64(k)*args.OutputStep
			if t > end+1e-12*(1+math.Abs(end)) {
				break
			}
			out = append(out, math.Min(t, end))
		}
		return out
	}

	for _, t := range snapTimes {
		if t > start && t <= end {
			out = append(out, t)
		}
	}
	return out
}
