package engine

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/talgya/polity/internal/agents"
)

// arena is a minimal agent store for scheduler tests.
type arena map[agents.AgentID]*agents.Agent

func (ar arena) lookup(id agents.AgentID) *agents.Agent { return ar[id] }

func (ar arena) add(s *Scheduler, id agents.AgentID, kind agents.Kind, party agents.Party) *agents.Agent {
	a := &agents.Agent{ID: id, Kind: kind, Party: party}
	ar[id] = a
	s.Add(a)
	return a
}

func TestSchedulerCountAfterRemove(t *testing.T) {
	ar := arena{}
	s := NewRandomScheduler(rand.New(rand.NewPCG(1, 0)), ar.lookup)
	for i := 1; i <= 10; i++ {
		ar.add(s, agents.AgentID(i), agents.KindPerson, agents.PartyBlue)
	}
	ar.add(s, 11, agents.KindInfluencer, agents.PartyRed)

	for _, id := range []agents.AgentID{2, 5, 9} {
		s.Remove(id)
	}
	s.Remove(99) // unknown ids are ignored

	if got := s.Count(agents.KindPerson, nil); got != 7 {
		t.Fatalf("Count(person) = %d, want 7", got)
	}
	if got := s.Count(agents.KindInfluencer, nil); got != 1 {
		t.Fatalf("Count(influencer) = %d, want 1", got)
	}
	if got := s.Len(); got != 8 {
		t.Fatalf("Len = %d, want 8", got)
	}
}

func TestSchedulerCountIsPure(t *testing.T) {
	ar := arena{}
	s := NewOrderedScheduler(ar.lookup)
	ar.add(s, 1, agents.KindPerson, agents.PartyRed)
	ar.add(s, 2, agents.KindPerson, agents.PartyBlue)
	ar.add(s, 3, agents.KindPerson, agents.PartyRed)

	red := func(a *agents.Agent) bool { return a.Party == agents.PartyRed }
	first := s.Count(agents.KindPerson, red)
	second := s.Count(agents.KindPerson, red)
	if first != 2 || second != first {
		t.Fatalf("Count = %d then %d, want 2 twice", first, second)
	}
	if got := s.Count(agents.KindTerritory, red); got != 0 {
		t.Fatalf("Count of unregistered kind = %d, want 0", got)
	}
}

func TestSchedulerAddIsIdempotent(t *testing.T) {
	ar := arena{}
	s := NewOrderedScheduler(ar.lookup)
	a := ar.add(s, 1, agents.KindPerson, agents.PartyGray)
	s.Add(a)
	if s.Len() != 1 || s.Count(agents.KindPerson, nil) != 1 {
		t.Fatalf("re-adding registered the agent twice")
	}
}

func TestSchedulerDefersAddsAndSkipsRemovals(t *testing.T) {
	ar := arena{}
	s := NewRandomScheduler(rand.New(rand.NewPCG(5, 0)), ar.lookup)
	for i := 1; i <= 6; i++ {
		ar.add(s, agents.AgentID(i), agents.KindPerson, agents.PartyGray)
	}

	var activated []agents.AgentID
	next := agents.AgentID(100)
	err := s.Step(func(id agents.AgentID) error {
		activated = append(activated, id)
		// Every activation spawns a newcomer and removes every other agent
		// still waiting.
		ar.add(s, next, agents.KindPerson, agents.PartyGray)
		next++
		for _, other := range s.IDs(agents.KindPerson) {
			if other != id && other < 100 && !slices.Contains(activated, other) {
				s.Remove(other)
				break
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	for _, id := range activated {
		if id >= 100 {
			t.Fatalf("agent %d added during the pass was activated", id)
		}
	}
	if len(activated) != 3 {
		t.Fatalf("activated %d agents, want 3 (each activation removes one waiting agent)", len(activated))
	}
	if s.Time != 1 {
		t.Fatalf("Time = %d, want 1", s.Time)
	}
}

func TestOrderedSchedulerKeepsInsertionOrder(t *testing.T) {
	ar := arena{}
	s := NewOrderedScheduler(ar.lookup)
	ar.add(s, 3, agents.KindTerritory, agents.PartyGray)
	ar.add(s, 1, agents.KindTerritory, agents.PartyGray)
	ar.add(s, 2, agents.KindTerritory, agents.PartyGray)

	for range 3 {
		var order []agents.AgentID
		if err := s.Step(func(id agents.AgentID) error {
			order = append(order, id)
			return nil
		}); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if !slices.Equal(order, []agents.AgentID{3, 1, 2}) {
			t.Fatalf("order = %v, want [3 1 2]", order)
		}
	}
}

func TestSchedulerGroupsByKind(t *testing.T) {
	ar := arena{}
	s := NewRandomScheduler(rand.New(rand.NewPCG(9, 0)), ar.lookup)
	ar.add(s, 1, agents.KindInfluencer, agents.PartyGray)
	ar.add(s, 2, agents.KindPerson, agents.PartyGray)
	ar.add(s, 3, agents.KindInfluencer, agents.PartyGray)
	ar.add(s, 4, agents.KindPerson, agents.PartyGray)

	var kinds []agents.Kind
	if err := s.Step(func(id agents.AgentID) error {
		kinds = append(kinds, ar[id].Kind)
		return nil
	}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	want := []agents.Kind{agents.KindInfluencer, agents.KindInfluencer, agents.KindPerson, agents.KindPerson}
	if !slices.Equal(kinds, want) {
		t.Fatalf("activation kinds = %v, want %v", kinds, want)
	}
}

func TestRandomSchedulerIsReproducible(t *testing.T) {
	orders := func(seed uint64) [][]agents.AgentID {
		ar := arena{}
		s := NewRandomScheduler(rand.New(rand.NewPCG(seed, 0)), ar.lookup)
		for i := 1; i <= 20; i++ {
			ar.add(s, agents.AgentID(i), agents.KindPerson, agents.PartyGray)
		}
		var out [][]agents.AgentID
		for range 4 {
			var order []agents.AgentID
			_ = s.Step(func(id agents.AgentID) error {
				order = append(order, id)
				return nil
			})
			out = append(out, order)
		}
		return out
	}

	a, b := orders(77), orders(77)
	for i := range a {
		if !slices.Equal(a[i], b[i]) {
			t.Fatalf("pass %d differs between runs with the same seed", i)
		}
	}
	if slices.Equal(a[0], a[1]) && slices.Equal(a[1], a[2]) && slices.Equal(a[2], a[3]) {
		t.Fatalf("order never changed across passes")
	}
}

func TestSchedulerStopsOnError(t *testing.T) {
	ar := arena{}
	s := NewOrderedScheduler(ar.lookup)
	ar.add(s, 1, agents.KindPerson, agents.PartyGray)
	ar.add(s, 2, agents.KindPerson, agents.PartyGray)

	boom := errors.New("boom")
	calls := 0
	err := s.Step(func(agents.AgentID) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Step error = %v, want boom", err)
	}
	if calls != 1 || s.Time != 0 {
		t.Fatalf("calls=%d time=%d, want 1 and 0", calls, s.Time)
	}
}
