package engine

import "github.com/projecteru2/bootenv/types"

// Snapshot is an immutable view of the store at one point in time.
// Callers must not modify the records it holds.
type Snapshot struct {
	State types.ConnState
	// Loaded is true once a full load has succeeded on the current or a
	// previous session. Environments may be stale after a disconnect.
	Loaded       bool
	Environments []*types.BootEnvironment
	// Seq increases by one for every published snapshot.
	Seq uint64
}

// ActiveRecord returns the first environment marked active, or nil.
// Well-formed services mark at most one, but this is not relied on.
func (s *Snapshot) ActiveRecord() *types.BootEnvironment {
	for _, env := range s.Environments {
		if env.Active {
			return env
		}
	}
	return nil
}

// RebootTargetIndex returns the index of the environment the machine will
// boot next: the first boot-once entry, else the first next-boot entry.
func (s *Snapshot) RebootTargetIndex() (int, bool) {
	for i, env := range s.Environments {
		if env.BootOnce {
			return i, true
		}
	}
	for i, env := range s.Environments {
		if env.NextBoot {
			return i, true
		}
	}
	return -1, false
}

// RebootTarget is RebootTargetIndex resolved to the record, or nil.
func (s *Snapshot) RebootTarget() *types.BootEnvironment {
	if i, ok := s.RebootTargetIndex(); ok {
		return s.Environments[i]
	}
	return nil
}

// Find returns the environment with the given ID, or nil.
func (s *Snapshot) Find(id string) *types.BootEnvironment {
	for _, env := range s.Environments {
		if env.ID == id {
			return env
		}
	}
	return nil
}
