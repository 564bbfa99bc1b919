package queue

import "testing"

func TestFIFOOrder(t *testing.T) {
	m := NewManager()
	m.Add("proj1", "backend-dev", "ABC-BE-001")
	m.Add("proj1", "backend-dev", "ABC-BE-002")
	m.Add("proj1", "backend-dev", "ABC-BE-003")

	first, ok := m.Next("proj1", "backend-dev")
	if !ok || first.TicketID != "ABC-BE-001" {
		t.Fatalf("expected ABC-BE-001 first, got %+v ok=%v", first, ok)
	}
	second, ok := m.Next("proj1", "backend-dev")
	if !ok || second.TicketID != "ABC-BE-002" {
		t.Fatalf("expected ABC-BE-002 second, got %+v ok=%v", second, ok)
	}
}

func TestNextOnEmptyQueue(t *testing.T) {
	m := NewManager()
	if _, ok := m.Next("proj1", "backend-dev"); ok {
		t.Error("expected Next on unknown queue to report not-ok")
	}
}

func TestStatusDepth(t *testing.T) {
	m := NewManager()
	m.Add("proj1", "backend-dev", "T1")
	m.Add("proj1", "backend-dev", "T2")
	if got := m.Status("proj1", "backend-dev"); got.Depth != 2 {
		t.Errorf("Status().Depth = %d, want 2", got.Depth)
	}
	m.Next("proj1", "backend-dev")
	if got := m.Status("proj1", "backend-dev"); got.Depth != 1 {
		t.Errorf("Status().Depth after pop = %d, want 1", got.Depth)
	}
}

func TestSeparateQueuesPerStage(t *testing.T) {
	m := NewManager()
	m.Add("proj1", "backend-dev", "BE-1")
	m.Add("proj1", "frontend-dev", "FE-1")
	if _, ok := m.Next("proj1", "frontend-dev"); !ok {
		t.Fatal("frontend queue should have its own independent task")
	}
	if _, ok := m.Next("proj1", "backend-dev"); !ok {
		t.Fatal("backend queue should be unaffected by frontend pop")
	}
}
