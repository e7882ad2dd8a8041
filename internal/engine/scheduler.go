// Type-stratified activation of agents.
package engine

import (
	"math/rand/v2"
	"slices"

	"github.com/talgya/polity/internal/agents"
)

// Scheduler keeps agent ids grouped by kind, in insertion order, and
// activates every registered agent once per Step.
//
// Each pass works on a snapshot of a kind's ids taken when that kind's turn
// starts. Agents added during the pass wait for the next one; agents removed
// before their turn are skipped.
type Scheduler struct {
	Time uint64 // Completed passes

	shuffle bool
	rng     *rand.Rand
	lookup  func(agents.AgentID) *agents.Agent

	kinds   []agents.Kind // Registration order
	byKind  map[agents.Kind][]agents.AgentID
	members map[agents.AgentID]agents.Kind
}

// NewRandomScheduler activates each kind in a fresh random order every pass.
func NewRandomScheduler(rng *rand.Rand, lookup func(agents.AgentID) *agents.Agent) *Scheduler {
	s := newScheduler(lookup)
	s.shuffle = true
	s.rng = rng
	return s
}

// NewOrderedScheduler activates each kind in insertion order every pass.
func NewOrderedScheduler(lookup func(agents.AgentID) *agents.Agent) *Scheduler {
	return newScheduler(lookup)
}

func newScheduler(lookup func(agents.AgentID) *agents.Agent) *Scheduler {
	return &Scheduler{
		lookup:  lookup,
		byKind:  make(map[agents.Kind][]agents.AgentID),
		members: make(map[agents.AgentID]agents.Kind),
	}
}

// Add registers a at the end of its kind's list. Re-adding is a no-op.
func (s *Scheduler) Add(a *agents.Agent) {
	if _, ok := s.members[a.ID]; ok {
		return
	}
	if _, ok := s.byKind[a.Kind]; !ok {
		s.kinds = append(s.kinds, a.Kind)
	}
	s.byKind[a.Kind] = append(s.byKind[a.Kind], a.ID)
	s.members[a.ID] = a.Kind
}

// Remove unregisters id. Unknown ids are ignored.
func (s *Scheduler) Remove(id agents.AgentID) {
	kind, ok := s.members[id]
	if !ok {
		return
	}
	delete(s.members, id)
	ids := s.byKind[kind]
	if i := slices.Index(ids, id); i >= 0 {
		s.byKind[kind] = slices.Delete(ids, i, i+1)
	}
}

// Contains reports whether id is registered.
func (s *Scheduler) Contains(id agents.AgentID) bool {
	_, ok := s.members[id]
	return ok
}

// Step runs one pass: every kind in registration order, each agent of the
// kind once. The first activation error aborts the pass.
func (s *Scheduler) Step(activate func(agents.AgentID) error) error {
	for _, kind := range s.kinds {
		order := slices.Clone(s.byKind[kind])
		if s.shuffle {
			s.rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		for _, id := range order {
			if !s.Contains(id) {
				continue
			}
			if err := activate(id); err != nil {
				return err
			}
		}
	}
	s.Time++
	return nil
}

// Count returns how many registered agents of kind satisfy pred.
// A nil pred counts them all.
func (s *Scheduler) Count(kind agents.Kind, pred func(*agents.Agent) bool) int {
	ids := s.byKind[kind]
	if pred == nil {
		return len(ids)
	}
	n := 0
	for _, id := range ids {
		if a := s.lookup(id); a != nil && pred(a) {
			n++
		}
	}
	return n
}

// Len returns the number of registered agents across all kinds.
func (s *Scheduler) Len() int {
	return len(s.members)
}

// IDs returns a copy of kind's ids in insertion order.
func (s *Scheduler) IDs(kind agents.Kind) []agents.AgentID {
	return slices.Clone(s.byKind[kind])
}

// Kinds returns the registered kinds in registration order.
func (s *Scheduler) Kinds() []agents.Kind {
	return slices.Clone(s.kinds)
}
