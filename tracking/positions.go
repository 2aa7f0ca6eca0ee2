package tracking

import (
	"sort"
	"time"
)

// PositionStore keeps the latest position per task id.
//
// Positions for ids the registry does not know yet are kept as orphans: the
// stream may deliver a location_update slightly before the matching
// task_started. An orphan that is not adopted within the grace window is
// dropped by Sweep.
type PositionStore struct {
	positions map[int64]*positionEntry
	grace     time.Duration
}

type positionEntry struct {
	pos    LivePosition
	orphan bool
}

// NewPositionStore creates a store with the given orphan grace window.
func NewPositionStore(grace time.Duration) *PositionStore {
	return &PositionStore{positions: map[int64]*positionEntry{}, grace: grace}
}

// Update overwrites the stored position for pos.TaskID. tracked tells the
// store whether the registry knows the task. An update whose SourceSeq is
// lower than the stored one is rejected and false is returned.
func (s *PositionStore) Update(pos LivePosition, tracked bool) bool {
	if cur, ok := s.positions[pos.TaskID]; ok {
		if pos.SourceSeq > 0 && cur.pos.SourceSeq > pos.SourceSeq {
			return false
		}
	}
	s.positions[pos.TaskID] = &positionEntry{pos: pos, orphan: !tracked}
	return true
}

// Adopt marks a previously orphaned position as belonging to a tracked task.
func (s *PositionStore) Adopt(id int64) (LivePosition, bool) {
	e, ok := s.positions[id]
	if !ok {
		return LivePosition{}, false
	}
	e.orphan = false
	return e.pos, true
}

func (s *PositionStore) Remove(id int64) bool {
	if _, ok := s.positions[id]; !ok {
		return false
	}
	delete(s.positions, id)
	return true
}

func (s *PositionStore) Get(id int64) (LivePosition, bool) {
	e, ok := s.positions[id]
	if !ok || e.orphan {
		return LivePosition{}, false
	}
	return e.pos, true
}

// List returns the adopted positions ordered by task id.
func (s *PositionStore) List() []LivePosition {
	out := make([]LivePosition, 0, len(s.positions))
	for _, e := range s.positions {
		if !e.orphan {
			out = append(out, e.pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Sweep drops orphans whose last update is at least one grace window old
// and returns their ids in ascending order.
func (s *PositionStore) Sweep(now time.Time) []int64 {
	var dropped []int64
	for id, e := range s.positions {
		if e.orphan && now.Sub(e.pos.ReceivedAt) >= s.grace {
			delete(s.positions, id)
			dropped = append(dropped, id)
		}
	}
	sort.Slice(dropped, func(i, j int) bool { return dropped[i] < dropped[j] })
	return dropped
}

// Reset forgets every position.
func (s *PositionStore) Reset() {
	s.positions = map[int64]*positionEntry{}
}

// Len counts stored positions, orphans included.
func (s *PositionStore) Len() int { return len(s.positions) }

// Orphans counts positions waiting for their task.
func (s *PositionStore) Orphans() int {
	n := 0
	for _, e := range s.positions {
		if e.orphan {
			n++
		}
	}
	return n
}
