package tracer

import (
	"errors"
	"fmt"

	"github.com/phil-mansfield/advect/lib/comm"
	"github.com/phil-mansfield/advect/lib/field"
	"github.com/phil-mansfield/advect/lib/particles"
)

// ErrSchemaMismatch is returned when the attributes of the field differ
// between blocks, snapshots, or ranks.
var ErrSchemaMismatch = errors.New("attribute schema mismatch")

// schemaReport is what each rank contributes to ValidatePointData.
type schemaReport struct {
	Schema particles.Schema
	Empty  bool
	Err    string
}

// localSchema checks the cached snapshots on this rank.
func localSchema(slots []*field.Slot, reserved map[string]bool) schemaReport {
	rep := schemaReport{Empty: true}
	for _, s := range slots {
		if len(s.Snap.Blocks) == 0 {
			continue
		}
		if rep.Empty {
			rep.Schema, rep.Empty = s.Snap.Schema(), false
		}
		if err := s.Snap.CheckSchema(rep.Schema); err != nil {
			rep.Err = err.Error()
			return rep
		}
	}

	if err := rep.Schema.Validate(); err != nil {
		rep.Err = err.Error()
		return rep
	}
	for _, a := range rep.Schema {
		if reserved[a.Name] {
			rep.Err = fmt.Sprintf("the attribute '%s' has the same name as "+
				"a built-in particle array", a.Name)
			return rep
		}
	}
	return rep
}

// ValidatePointData checks that every block of every cached snapshot on
// every rank has the same attributes and returns them. Ranks without any
// blocks take the schema of the others. It must be called by every rank,
// and every rank returns ErrSchemaMismatch if any check fails.
func ValidatePointData(
	c comm.Communicator, slots []*field.Slot, vorticity bool,
) (particles.Schema, error) {
	reserved := map[string]bool{}
	for _, a := range builtinSchema(vorticity) {
		reserved[a.Name] = true
	}

	vals, err := c.AllGather(localSchema(slots, reserved))
	if err != nil {
		return nil, err
	}

	var schema particles.Schema
	found := false
	for rank := range vals {
		rep := vals[rank].(schemaReport)
		if rep.Err != "" {
			return nil, fmt.Errorf("%w: rank %d: %s", ErrSchemaMismatch, rank, rep.Err)
		}
		if rep.Empty {
			continue
		}
		if !found {
			schema, found = rep.Schema, true
		} else if !schema.Equal(rep.Schema) {
			return nil, fmt.Errorf("%w: rank %d has attributes [%s], but "+
				"[%s] was expected", ErrSchemaMismatch, rank,
				rep.Schema.Signature(), schema.Signature())
		}
	}
	return schema, nil
}
