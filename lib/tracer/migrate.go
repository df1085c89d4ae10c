package tracer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/phil-mansfield/advect/lib/bounds"
	"github.com/phil-mansfield/advect/lib/comm"
	"github.com/phil-mansfield/advect/lib/particles"
)

// Exit is a particle that left the local field during integration.
type Exit struct {
	Record  *particles.Record
	Outcome Outcome
}

// Loss is a particle that no rank could take.
type Loss struct {
	Record *particles.Record
	Reason Reason
}

// Exchange is the result of one round of ExchangeWithPeers.
type Exchange struct {
	// Sent were adopted by another rank and should be removed locally.
	Sent []*particles.Record
	// Lost could not be placed anywhere.
	Lost []Loss
	// Received were adopted by this rank. They are positioned at their exit
	// points and have already been located.
	Received []*particles.Record
}

// Migrator assigns seeds and unique ids to ranks and moves particles between
// them. Every method that takes a Communicator action is collective.
type Migrator struct {
	comm comm.Communicator
	log  logrus.FieldLogger

	split  *particles.BoxSplit
	owners []int

	// Selection restricts injection to seeds with these ids when it's
	// non-nil.
	Selection Selection
	static    bool
	seedCache map[int][]int

	nextID int64
}

// NewMigrator creates a Migrator. If static is true, the seeds each rank
// keeps from a source are found once and reused on every later injection.
func NewMigrator(c comm.Communicator, static bool, log logrus.FieldLogger) *Migrator {
	return &Migrator{
		comm: c, log: log, static: static, seedCache: map[int][]int{},
		split: particles.NewBoxSplit(nil),
	}
}

// NextID returns the id that will be given to the next new particle.
func (m *Migrator) NextID() int64 { return m.nextID }

// SetBoxes gathers the partition boxes of every rank.
func (m *Migrator) SetBoxes(local []bounds.Box) error {
	vals, err := m.comm.AllGather(append([]bounds.Box{}, local...))
	if err != nil {
		return err
	}
	boxes, owners := []bounds.Box{}, []int{}
	for rank := range vals {
		for _, b := range vals[rank].([]bounds.Box) {
			boxes = append(boxes, b)
			owners = append(owners, rank)
		}
	}
	m.split, m.owners = particles.NewBoxSplit(boxes), owners
	return nil
}

// candidates returns the other ranks whose partitions contain x, in
// increasing order.
func (m *Migrator) candidates(x [3]float64, buf []int) []int {
	boxes := m.split.Candidates(x, buf)
	out := boxes[:0]
	for _, b := range boxes {
		rank := m.owners[b]
		if rank == m.comm.Rank() || (len(out) > 0 && out[len(out)-1] == rank) {
			continue
		}
		out = append(out, rank)
	}
	return out
}

// AssignSeedsToProcessors returns records for the seeds of source src that
// belong to this rank: those inside the local partition that can be located
// in the field. A seed that several ranks could take goes to the lowest of
// them. Records are located and have their source and point ids set, but
// have no UniqueID yet.
func (m *Migrator) AssignSeedsToProcessors(
	t float64, src int, points [][3]float64, ids []uint64, e *Engine,
) ([]*particles.Record, error) {
	pointIDs := seedIDs(points, ids)

	if idx, ok := m.seedCache[src]; ok && m.static {
		out := make([]*particles.Record, 0, len(idx))
		for _, i := range idx {
			if i >= len(points) {
				continue
			}
			r := newSeed(points[i], t, src, pointIDs[i])
			if err := e.Locate(r); err != nil {
				m.log.WithField("seed", i).Debug("Cached static seed is no longer in the field.")
				continue
			}
			out = append(out, r)
		}
		return out, nil
	}

	boxes := e.Boxes()
	kept, recs := []int{}, []*particles.Record{}
	for i, x := range points {
		if ids != nil && m.Selection != nil && !m.Selection[ids[i]] {
			continue
		}
		if bounds.AnyContains(boxes, x) < 0 {
			continue
		}
		r := newSeed(x, t, src, pointIDs[i])
		if e.Locate(r) != nil {
			continue
		}
		kept, recs = append(kept, i), append(recs, r)
	}

	keys := make([]int64, len(kept))
	for j, i := range kept {
		keys[j] = int64(i)
	}
	taken, err := m.claimedBelow(keys)
	if err != nil {
		return nil, err
	}

	out, idx := recs[:0], []int{}
	for j, i := range kept {
		if !taken[int64(i)] {
			out = append(out, recs[j])
			idx = append(idx, i)
		}
	}
	if m.static {
		m.seedCache[src] = idx
	}
	return out, nil
}

// claimedBelow gathers the keys of the items each rank can take and returns
// the ones that a lower rank can also take. Those belong to the lower rank.
func (m *Migrator) claimedBelow(keys []int64) (map[int64]bool, error) {
	vals, err := m.comm.AllGather(keys)
	if err != nil {
		return nil, err
	}
	taken := map[int64]bool{}
	for rank := 0; rank < m.comm.Rank(); rank++ {
		for _, k := range vals[rank].([]int64) {
			taken[k] = true
		}
	}
	return taken, nil
}

func newSeed(x [3]float64, t float64, src int, id uint64) *particles.Record {
	r := particles.NewRecord(x, t)
	r.SourceID = src
	r.InjectedPointID = id
	return r
}

// AssignUniqueIds gives consecutive ids to recs. Lower ranks get lower ids
// and the global counter advances past every rank's records, so ids are
// gap-free and never reused.
func (m *Migrator) AssignUniqueIds(recs []*particles.Record) error {
	offset, total, err := comm.ExclusiveScan(m.comm, len(recs))
	if err != nil {
		return err
	}
	for i, r := range recs {
		r.UniqueID = m.nextID + int64(offset+i)
	}
	m.nextID += int64(total)
	return nil
}

// ReserveIDs moves the id counter past maxID on every rank.
func (m *Migrator) ReserveIDs(maxID int64) error {
	vals, err := m.comm.AllGather(maxID)
	if err != nil {
		return err
	}
	for _, v := range vals {
		if id := v.(int64); id >= m.nextID {
			m.nextID = id + 1
		}
	}
	return nil
}

// migrant returns the copy of an exited particle that is sent to another
// rank, moved to its exit point.
func migrant(ex Exit) *particles.Record {
	r := ex.Record.Clone()
	r.Position = ex.Outcome.Exit
	r.Age += ex.Outcome.Exit[3] - ex.Outcome.LastValid[3]
	r.SimulationTime = ex.Outcome.Exit[3]
	r.InvalidateHints()
	r.PointID, r.TailPointID = -1, -1
	return r
}

// ExchangeWithPeers runs one migration round. Each exited particle is sent
// to every other rank whose partition contains its exit point. Receivers
// try to locate it, and the lowest rank that can is its new owner. Particles
// that no rank's partition contains are lost with OutOfSpatialDomain and
// those no candidate could locate are lost with LostAtBoundary.
func (m *Migrator) ExchangeWithPeers(queued []Exit, e *Engine) (*Exchange, error) {
	ex := &Exchange{}
	send := make([][]*particles.Record, m.comm.Size())
	routed := make([]bool, len(queued))

	buf := []int{}
	for i, q := range queued {
		exit := q.Outcome.Exit
		buf = m.candidates([3]float64{exit[0], exit[1], exit[2]}, buf)
		if len(buf) == 0 {
			ex.Lost = append(ex.Lost, Loss{q.Record, OutOfSpatialDomain})
			continue
		}
		routed[i] = true
		for _, rank := range buf {
			send[rank] = append(send[rank], migrant(q))
		}
	}

	sendVals := make([]interface{}, len(send))
	for i := range send {
		sendVals[i] = send[i]
	}
	recvVals, err := m.comm.AllToAll(sendVals)
	if err != nil {
		return nil, fmt.Errorf("exchanging particles: %w", err)
	}

	claims, located := []int64{}, []*particles.Record{}
	for _, v := range recvVals {
		for _, r := range v.([]*particles.Record) {
			if e.Locate(r) == nil {
				claims = append(claims, r.UniqueID)
				located = append(located, r)
			}
		}
	}

	claimVals, err := m.comm.AllGather(claims)
	if err != nil {
		return nil, fmt.Errorf("gathering particle claims: %w", err)
	}
	owner := map[int64]int{}
	for rank := range claimVals {
		for _, id := range claimVals[rank].([]int64) {
			if _, ok := owner[id]; !ok {
				owner[id] = rank
			}
		}
	}

	for _, r := range located {
		if owner[r.UniqueID] == m.comm.Rank() {
			ex.Received = append(ex.Received, r)
		}
	}
	for i, q := range queued {
		if !routed[i] {
			continue
		}
		if _, ok := owner[q.Record.UniqueID]; ok {
			ex.Sent = append(ex.Sent, q.Record)
		} else {
			ex.Lost = append(ex.Lost, Loss{q.Record, LostAtBoundary})
		}
	}

	m.log.WithFields(logrus.Fields{
		"sent": len(ex.Sent), "received": len(ex.Received), "lost": len(ex.Lost),
	}).Debug("Exchanged particles.")
	return ex, nil
}
