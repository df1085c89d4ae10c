/*
package snapio contains the dataset providers that hand velocity field
snapshots to the tracer. Adding support for a new file format requires writing
a function to read those snapshot files, and writing a struct that implements
the Header interface.
*/
package snapio

import (
	"errors"

	"github.com/phil-mansfield/advect/lib/field"
)

// ErrNoSnapshot is returned when a snapshot index is outside the dataset.
var ErrNoSnapshot = errors.New("no such snapshot")

// Provider is a temporal dataset: an ordered list of snapshot times and the
// snapshot for each of them.
type Provider interface {
	// Times returns the simulation time of every snapshot in increasing
	// order.
	Times() ([]float64, error)
	// Snapshot returns the i-th snapshot. Each call may return a new value.
	Snapshot(i int) (*field.Snapshot, error)
}

// Header is an abstraction over the the header data of various snapshot
// formats.
type Header interface {
	// ToBytes converts the Header to bytes. In most cases, this should just be
	// calling binary.Encode() on the struct.
	ToBytes() []byte
	// Time returns the simulation time of the snapshot.
	Time() float64
}
