package dag

import "testing"

func TestWouldCreateCycleSelfLoop(t *testing.T) {
	g := Build(nil)
	if !g.WouldCreateCycle("A", "A") {
		t.Error("expected self-dependency to be detected as a cycle")
	}
}

func TestWouldCreateCycleDirect(t *testing.T) {
	// B depends on A. Proposing A depends on B would close a cycle.
	g := Build([]Edge{{Ticket: "B", DependsOn: "A"}})
	if !g.WouldCreateCycle("A", "B") {
		t.Error("expected A->B to be detected as a cycle given existing B->A")
	}
}

func TestWouldCreateCycleTransitive(t *testing.T) {
	// C depends on B, B depends on A. Proposing A depends on C cycles.
	g := Build([]Edge{
		{Ticket: "C", DependsOn: "B"},
		{Ticket: "B", DependsOn: "A"},
	})
	if !g.WouldCreateCycle("A", "C") {
		t.Error("expected transitive cycle A->C to be detected")
	}
}

func TestWouldCreateCycleNoCycle(t *testing.T) {
	g := Build([]Edge{
		{Ticket: "B", DependsOn: "A"},
		{Ticket: "C", DependsOn: "A"},
	})
	if g.WouldCreateCycle("D", "A") {
		t.Error("did not expect a cycle for an unrelated new dependency")
	}
}

func TestCalculateLevels(t *testing.T) {
	// A <- B <- C, A <- D (A is the only root; B and D depend on A, C on B)
	g := Build([]Edge{
		{Ticket: "B", DependsOn: "A"},
		{Ticket: "C", DependsOn: "B"},
		{Ticket: "D", DependsOn: "A"},
	})
	levels, ok := g.CalculateLevels()
	if !ok {
		t.Fatal("expected a valid topological leveling")
	}
	want := map[string]int{"A": 0, "B": 1, "C": 2, "D": 1}
	for n, lvl := range want {
		if levels[n] != lvl {
			t.Errorf("levels[%q] = %d, want %d", n, levels[n], lvl)
		}
	}
}

func TestCalculateLevelsCycle(t *testing.T) {
	g := Build([]Edge{
		{Ticket: "A", DependsOn: "B"},
		{Ticket: "B", DependsOn: "A"},
	})
	if _, ok := g.CalculateLevels(); ok {
		t.Error("expected cycle to be reported as not fully levelable")
	}
}
