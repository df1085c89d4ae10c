package lib

// ExampleConfig is an example config file with every variable documented.
// It is printed by "advect example_config".
const ExampleConfig = `[advect]

#######################
# Required Variables #
#######################

# SnapshotFormat names the grid files of each snapshot. {%03d,step} is
# replaced by the step, and further {%d,0..7}-style variables expand to the
# blocks of a snapshot.
SnapshotFormat = field_{%03d,step}.{%d,0..7}.grid
# Steps lists the snapshot steps, e.g. "0..100 - 63" or "0, 5, 10..20".
Steps = 0..100
# SeedFile is a text file with the columns x y z and an optional id column.
SeedFile = seeds.txt

#######################
# Optional Variables #
#######################

# Fields names the attribute arrays stored after the velocity in each grid
# file. Repeat the variable for each field. FieldTypes gives their types
# (u32, u64, f32, f64, v32, v64) and defaults to f64.
# Fields = density
# Fields = temperature
# FieldTypes = f64
# FieldTypes = f32

# ByteOrder is the byte order of the grid files: little, big, or native.
ByteOrder = little

# SelectionFile restricts injection to the ids in its first column.
# SelectionFile = ids.txt

# Integrator is one of rk2, rk4, or rk45. Steps are in units of time and
# MaximumError in units of length.
Integrator = rk45
MaximumStep = 0.5
MinimumStep = 0.01
MaximumError = 1e-6
# Particles at or below TerminalSpeed stop.
TerminalSpeed = 1e-12

# ComputeVorticity adds the vorticity, rotation, and angular_velocity arrays.
ComputeVorticity = false
RotationScale = 1

# Particles are injected at StartTime and stop at TerminationTime if
# UseTerminationTime is set.
StartTime = 0
# TerminationTime = 50
# UseTerminationTime = true

# Outputs are written every OutputStep, or at every snapshot if OutputStep
# is 0.
OutputStep = 0

# MeshVariance is one of different, static, linear_transformation, or
# same_topology. Setting it wrong gives wrong trajectories without errors.
MeshVariance = different
# Locator is cell (exact) or point (kd-tree, faster on many blocks).
Locator = cell
# StaticSeeds reuses the first seed assignment. Only safe on static meshes.
StaticSeeds = false
# ReinjectionEvery injects the seeds again every n steps. 0 injects once.
ReinjectionEvery = 0
DisableResetCache = false

# Threads <= 0 uses every CPU. ADVECT_MAX_THREADS overrides it.
Threads = 0
Ranks = 1
ForceSerial = false

# Write turns on particle files, one per step and rank.
Write = true
OutputDir = .
OutputFormat = particles.%04d.%d.adv
OutputByteOrder = little
CompressionLevel = 1

# TrailFile turns on path-line trails, written as "id x y z" rows.
# TrailFile = trails.txt
TrailLength = 10
MaskPoints = 1
# A trail dies if a particle jumps farther than MaxStepDistance along any
# axis. Values <= 0 turn this off.
MaxStepDistance = 1
KeepDeadTrails = false

# LogLevel is one of debug, info, warn, or error. CheckStrictness is crash
# or warn.
LogLevel = info
CheckStrictness = crash
`
