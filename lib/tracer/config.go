package tracer

import (
	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/cache"
	"github.com/phil-mansfield/advect/lib/field"
)

// Config holds every setting of a Tracer.
type Config struct {
	// Integrator is "rk2", "rk4", or "rk45".
	Integrator string
	// MaximumStep, MinimumStep, and MaximumError control the solver. Steps
	// are in units of time and errors in units of length.
	MaximumStep, MinimumStep, MaximumError float64
	// Particles at or below TerminalSpeed stop.
	TerminalSpeed float64

	ComputeVorticity bool
	RotationScale    float64

	StartTime float64
	// TerminationTime is only used when UseTerminationTime is set.
	TerminationTime    float64
	UseTerminationTime bool

	MeshVariance cache.MeshVariance
	Locator      field.LocatorKind
	// StaticSeeds reuses the seed-to-rank assignment of the first injection.
	// It gives wrong seeding if the seeds or mesh move.
	StaticSeeds bool
	// ReinjectionEvery injects new seeds every n steps. Zero injects only
	// once, at the start time.
	ReinjectionEvery int
	// DisableResetCache keeps the cache when time goes backwards.
	DisableResetCache bool

	Threads     int
	ForceSerial bool

	// PushSteps and PushFactor bound push recovery: at most PushSteps
	// sub-steps moving at most PushFactor times the failed step's length.
	PushSteps  int
	PushFactor float64
	// MaxExchangeRounds bounds the migration rounds in one step.
	MaxExchangeRounds int
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Integrator:        "rk45",
		MaximumStep:       0.5,
		MinimumStep:       0.01,
		MaximumError:      1e-6,
		TerminalSpeed:     1e-12,
		RotationScale:     1,
		MeshVariance:      cache.Different,
		Locator:           field.CellSearch,
		PushSteps:         2,
		PushFactor:        2,
		MaxExchangeRounds: 16,
	}
}

// clamp fixes cosmetic misconfigurations, logging a warning for each.
func (c *Config) clamp(log logrus.FieldLogger) {
	def := DefaultConfig()
	if c.MaximumStep <= 0 {
		log.WithField("MaximumStep", c.MaximumStep).Warn(
			"Non-positive maximum step. Using the default.")
		c.MaximumStep = def.MaximumStep
	}
	if c.MinimumStep <= 0 || c.MinimumStep > c.MaximumStep {
		log.WithFields(logrus.Fields{
			"MinimumStep": c.MinimumStep, "MaximumStep": c.MaximumStep,
		}).Warn("Minimum step isn't in (0, MaximumStep]. Using MaximumStep/100.")
		c.MinimumStep = c.MaximumStep / 100
	}
	if c.MaximumError <= 0 {
		log.WithField("MaximumError", c.MaximumError).Warn(
			"Non-positive maximum error. Using the default.")
		c.MaximumError = def.MaximumError
	}
	if c.PushSteps <= 0 {
		c.PushSteps = def.PushSteps
	}
	if c.PushFactor <= 0 {
		c.PushFactor = def.PushFactor
	}
	if c.MaxExchangeRounds <= 0 {
		c.MaxExchangeRounds = def.MaxExchangeRounds
	}
	if c.ReinjectionEvery < 0 {
		log.WithField("ReinjectionEvery", c.ReinjectionEvery).Warn(
			"Negative reinjection cadence. Seeds will only be injected once.")
		c.ReinjectionEvery = 0
	}
	if c.StaticSeeds && c.MeshVariance != cache.Static {
		log.WithField("MeshVariance", c.MeshVariance.String()).Warn(
			"StaticSeeds is set but the mesh isn't static. Seeding may be wrong.")
	}
}
