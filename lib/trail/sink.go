package trail

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/phil-mansfield/advect/lib/tracer"
)

// Sink feeds every output of a tracer into a Recorder.
type Sink struct {
	*Recorder
}

var _ tracer.Sink = Sink{}

func (s Sink) WriteParticles(step int, out *tracer.Output) error {
	if out.Len() == 0 {
		s.Add(out.Time, nil, nil)
		return nil
	}
	s.Add(out.Time, out.IDs(), out.Positions())
	return nil
}

// WriteText writes every line as rows of "id x y z" with a blank line
// between trails.
func (r *Recorder) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# id x y z")
	for i, l := range r.Lines() {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		for _, x := range l.Points {
			fmt.Fprintf(bw, "%d %.10g %.10g %.10g\n", l.ID, x[0], x[1], x[2])
		}
	}
	return bw.Flush()
}

// WriteTextFile writes the lines to a new file.
func (r *Recorder) WriteTextFile(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	if err := r.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
