package compress

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/particles"
	"github.com/phil-mansfield/advect/lib/tracer"
)

// TerminatedPrefix starts the names of the fields which describe terminated
// particles.
const TerminatedPrefix = "terminated_"

// Names of the terminated particle fields.
const (
	TerminatedIDName       = TerminatedPrefix + "id"
	TerminatedPositionName = TerminatedPrefix + "position"
	TerminatedTimeName     = TerminatedPrefix + "time"
	TerminatedReasonName   = TerminatedPrefix + "reason"
)

// DefaultFormat is the default file name pattern. Its verbs are the step and
// the rank.
const DefaultFormat = "particles.%04d.%d.adv"

// ParticleWriter writes every output of a tracer.Tracer to its own file.
type ParticleWriter struct {
	Dir, Format string
	Rank        int
	RunID       uuid.UUID
	Order       binary.ByteOrder
	Level       int

	log logrus.FieldLogger
	b   []byte
}

var _ tracer.Sink = &ParticleWriter{}

// NewParticleWriter creates a ParticleWriter that writes to dir. Every rank
// of a run should be given the same runID.
func NewParticleWriter(
	dir string, rank int, runID uuid.UUID, log logrus.FieldLogger,
) *ParticleWriter {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &ParticleWriter{
		Dir: dir, Format: DefaultFormat, Rank: rank, RunID: runID,
		Order: binary.LittleEndian, Level: DefaultLevel, log: log,
	}
}

// FileName returns the name of the file written for a step.
func (pw *ParticleWriter) FileName(step int) string {
	return filepath.Join(pw.Dir, fmt.Sprintf(pw.Format, step, pw.Rank))
}

// WriteParticles writes out to the file for step.
func (pw *ParticleWriter) WriteParticles(step int, out *tracer.Output) error {
	hd := FixedWidthHeader{
		Step: int64(step), Time: out.Time, RunID: pw.RunID, Rank: int64(pw.Rank),
	}
	wr := NewWriter(hd, pw.b, pw.Order)

	names := make([]string, 0, len(out.Particles))
	for name := range out.Particles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := out.Particles[name]
		if err := wr.AddField(f, ChooseMethod(f, pw.Level)); err != nil {
			return err
		}
	}
	for _, f := range terminatedFields(out.Terminated) {
		if err := wr.AddField(f, ChooseMethod(f, pw.Level)); err != nil {
			return err
		}
	}

	fname := pw.FileName(step)
	var err error
	pw.b, err = wr.WriteFile(fname)
	if err != nil {
		return err
	}

	pw.log.WithFields(logrus.Fields{
		"file": fname, "particles": out.Len(),
		"terminated": len(out.Terminated),
	}).Debug("Wrote particle file.")
	return nil
}

func terminatedFields(ts []tracer.Termination) []particles.Field {
	ids := make([]uint64, len(ts))
	pos := make([][3]float64, len(ts))
	times := make([]float64, len(ts))
	reasons := make([]uint32, len(ts))
	for i, t := range ts {
		ids[i] = uint64(t.UniqueID)
		pos[i] = [3]float64{t.Position[0], t.Position[1], t.Position[2]}
		times[i] = t.Position[3]
		reasons[i] = uint32(t.Reason)
	}
	return []particles.Field{
		particles.NewUint64(TerminatedIDName, ids),
		particles.NewVec64(TerminatedPositionName, pos),
		particles.NewFloat64(TerminatedTimeName, times),
		particles.NewUint32(TerminatedReasonName, reasons),
	}
}

// File is the contents of one particle file.
type File struct {
	Header
	// Particles holds the live particles and Terminated the fields that
	// start with TerminatedPrefix.
	Particles, Terminated particles.Particles
}

// ReadFile reads every field of a particle file.
func ReadFile(fname string) (*File, error) {
	rd, err := NewReader(fname)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	all, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}

	f := &File{
		Header:     rd.Header,
		Particles:  particles.Particles{},
		Terminated: particles.Particles{},
	}
	for name, field := range all {
		if strings.HasPrefix(name, TerminatedPrefix) {
			f.Terminated[name] = field
		} else {
			f.Particles[name] = field
		}
	}
	return f, nil
}

// Reasons returns the termination reason of each terminated particle.
func (f *File) Reasons() []tracer.Reason {
	field, ok := f.Terminated[TerminatedReasonName]
	if !ok {
		return nil
	}
	codes := field.Data().([]uint32)
	out := make([]tracer.Reason, len(codes))
	for i := range codes {
		out[i] = tracer.Reason(codes[i])
	}
	return out
}
