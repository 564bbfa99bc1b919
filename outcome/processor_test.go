package outcome

import (
	"context"
	"log/slog"
	"io"
	"testing"

	"github.com/arctek/conductor/internal/db"
	"github.com/arctek/conductor/queue"
	"github.com/arctek/conductor/events"
	"github.com/arctek/conductor/ticket"
)

func newTestProcessor(t *testing.T) (*Processor, *db.Store) {
	t.Helper()
	raw, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	store := db.NewStore(raw)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	qm := queue.NewManager()
	bus := events.NewBus(logger)
	return NewProcessor(store, qm, bus, logger), store
}

func seedProject(t *testing.T, store *db.Store) *ticket.Project {
	t.Helper()
	ctx := context.Background()
	p := &ticket.Project{ID: "p1", Name: "demo-project", Prefix: "DEM", Path: "/tmp/demo"}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	for _, wt := range []string{"planning", "backend-dev", "review"} {
		if err := store.RegisterWorkerType(ctx, &ticket.WorkerType{ProjectID: p.ID, WorkerType: wt, Template: "do {{.Stage}}"}); err != nil {
			t.Fatalf("register worker type %s: %v", wt, err)
		}
	}
	return p
}

func TestHandleNextStageAdvances(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	tk := &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: p.ID, Title: "do thing",
		ExecutionPlan: []string{"backend-dev", "review"}, CurrentStage: 0,
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	if err := store.InsertTicket(ctx, tk); err != nil {
		t.Fatalf("insert ticket: %v", err)
	}
	if _, err := store.ClaimTicket(ctx, tk.ID, "w1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := proc.Process(ctx, "w1", CompletionRecord{TicketID: tk.ID, Outcome: KindNextStage, TargetStage: "review", Comment: "done"}); err != nil {
		t.Fatalf("process next_stage: %v", err)
	}

	got, err := store.GetTicket(ctx, tk.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if got.CurrentStage != 1 || got.State != ticket.StateOpen || got.ClaimedBy != "" {
		t.Errorf("unexpected ticket state after advance: %+v", got)
	}
}

func TestHandleNextStageClosesAtEndOfPlan(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	tk := &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: p.ID, Title: "last stage",
		ExecutionPlan: []string{"review"}, CurrentStage: 0,
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	if err := store.InsertTicket(ctx, tk); err != nil {
		t.Fatalf("insert ticket: %v", err)
	}
	store.ClaimTicket(ctx, tk.ID, "w1")

	if err := proc.Process(ctx, "w1", CompletionRecord{TicketID: tk.ID, Outcome: KindNextStage, TargetStage: ticket.TerminalStage}); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _ := store.GetTicket(ctx, tk.ID)
	if got.State != ticket.StateClosed {
		t.Errorf("expected ticket closed, got state %q", got.State)
	}
	if got.ClosedAt == nil {
		t.Error("expected closed_at to be set")
	}
}

func TestHandleNextStageUnblocksDependent(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	parent := &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: p.ID, Title: "parent",
		ExecutionPlan: []string{"review"}, State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	child := &ticket.Ticket{
		ID: "DEM-BE-002", ProjectID: p.ID, Title: "child",
		ExecutionPlan: []string{"backend-dev"}, State: ticket.StateOpen, DependencyStatus: ticket.DependencyBlocked,
	}
	store.InsertTicket(ctx, parent)
	store.InsertTicket(ctx, child)
	if err := store.AddDependency(ctx, &ticket.Dependency{ProjectID: p.ID, TicketID: child.ID, DependsOn: parent.ID, Type: ticket.DependencyBlocks}); err != nil {
		t.Fatalf("add dependency: %v", err)
	}
	store.ClaimTicket(ctx, parent.ID, "w1")

	if err := proc.Process(ctx, "w1", CompletionRecord{TicketID: parent.ID, Outcome: KindNextStage, TargetStage: ticket.TerminalStage}); err != nil {
		t.Fatalf("process: %v", err)
	}

	gotChild, err := store.GetTicket(ctx, child.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if gotChild.DependencyStatus != ticket.DependencyReady {
		t.Errorf("expected child to be unblocked, got %q", gotChild.DependencyStatus)
	}
}

func TestHandleCoordinatorAttention(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	tk := &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: p.ID, Title: "stuck",
		ExecutionPlan: []string{"backend-dev"}, State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	store.InsertTicket(ctx, tk)
	store.ClaimTicket(ctx, tk.ID, "w1")

	if err := proc.Process(ctx, "w1", CompletionRecord{TicketID: tk.ID, Outcome: KindCoordinatorAttention, Reason: "ambiguous requirements"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _ := store.GetTicket(ctx, tk.ID)
	if got.State != ticket.StateOnHold || got.ClaimedBy != "" {
		t.Errorf("unexpected state after coordinator_attention: %+v", got)
	}
}

func TestHandlePlanningComplete(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	planningTicket := &ticket.Ticket{
		ID: "DEM-CORE-001", ProjectID: p.ID, Title: "plan the work",
		ExecutionPlan: []string{"planning"}, State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	store.InsertTicket(ctx, planningTicket)
	store.ClaimTicket(ctx, planningTicket.ID, "w1")

	rec := CompletionRecord{
		TicketID: planningTicket.ID,
		Outcome:  KindPlanningComplete,
		TicketsToCreate: []TicketSpecification{
			{TempID: "t1", Title: "backend work", ExecutionPlan: []string{"backend-dev"}},
			{TempID: "t2", Title: "review work", ExecutionPlan: []string{"review"}, DependsOn: []string{"t1"}},
		},
	}
	if err := proc.Process(ctx, "w1", rec); err != nil {
		t.Fatalf("process planning_complete: %v", err)
	}

	got, err := store.GetTicket(ctx, planningTicket.ID)
	if err != nil {
		t.Fatalf("get planning ticket: %v", err)
	}
	if got.State != ticket.StateClosed {
		t.Errorf("expected planning ticket closed, got %q", got.State)
	}

	all, err := store.ListTicketsByProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("list tickets: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tickets (planning + 2 minted), got %d", len(all))
	}
	for _, minted := range all {
		if minted.ID == planningTicket.ID {
			continue
		}
		if minted.ParentTicketID != planningTicket.ID {
			t.Errorf("minted ticket %s: expected parent_ticket_id %q, got %q", minted.ID, planningTicket.ID, minted.ParentTicketID)
		}
	}
}

func TestHandlePlanningCompleteRejectsCycle(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	planningTicket := &ticket.Ticket{
		ID: "DEM-CORE-001", ProjectID: p.ID, Title: "plan",
		ExecutionPlan: []string{"planning"}, State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	store.InsertTicket(ctx, planningTicket)
	store.ClaimTicket(ctx, planningTicket.ID, "w1")

	rec := CompletionRecord{
		TicketID: planningTicket.ID,
		Outcome:  KindPlanningComplete,
		TicketsToCreate: []TicketSpecification{
			{TempID: "t1", Title: "a", ExecutionPlan: []string{"backend-dev"}, DependsOn: []string{"t2"}},
			{TempID: "t2", Title: "b", ExecutionPlan: []string{"review"}, DependsOn: []string{"t1"}},
		},
	}
	if err := proc.Process(ctx, "w1", rec); err == nil {
		t.Error("expected cyclic planning batch to be rejected")
	}
}

func TestHandleNextStageRequiresTargetStage(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	tk := &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: p.ID, Title: "do thing",
		ExecutionPlan: []string{"backend-dev", "review"}, CurrentStage: 0,
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	store.InsertTicket(ctx, tk)
	store.ClaimTicket(ctx, tk.ID, "w1")

	if err := proc.Process(ctx, "w1", CompletionRecord{TicketID: tk.ID, Outcome: KindNextStage}); err == nil {
		t.Error("expected missing target_stage to be rejected")
	}
}

func TestHandlePrevStageMovesToNamedTarget(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	tk := &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: p.ID, Title: "do thing",
		ExecutionPlan: []string{"backend-dev", "review"}, CurrentStage: 1,
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	store.InsertTicket(ctx, tk)
	store.ClaimTicket(ctx, tk.ID, "w1")

	if err := proc.Process(ctx, "w1", CompletionRecord{TicketID: tk.ID, Outcome: KindPrevStage, TargetStage: "backend-dev", Reason: "needs rework"}); err != nil {
		t.Fatalf("process prev_stage: %v", err)
	}
	got, err := store.GetTicket(ctx, tk.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if got.CurrentStage != 0 {
		t.Errorf("expected ticket back at stage 0, got %d", got.CurrentStage)
	}
}

func TestHandlePrevStageRequiresTargetStage(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	tk := &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: p.ID, Title: "do thing",
		ExecutionPlan: []string{"backend-dev", "review"}, CurrentStage: 1,
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	store.InsertTicket(ctx, tk)
	store.ClaimTicket(ctx, tk.ID, "w1")

	if err := proc.Process(ctx, "w1", CompletionRecord{TicketID: tk.ID, Outcome: KindPrevStage, Reason: "needs rework"}); err == nil {
		t.Error("expected missing target_stage to be rejected")
	}
}

func TestProcessRejectsReportFromNonClaimingWorker(t *testing.T) {
	ctx := context.Background()
	proc, store := newTestProcessor(t)
	p := seedProject(t, store)

	tk := &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: p.ID, Title: "do thing",
		ExecutionPlan: []string{"backend-dev", "review"}, CurrentStage: 0,
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	}
	store.InsertTicket(ctx, tk)
	store.ClaimTicket(ctx, tk.ID, "w1")

	err := proc.Process(ctx, "w2", CompletionRecord{TicketID: tk.ID, Outcome: KindNextStage, TargetStage: "review"})
	if err == nil {
		t.Fatal("expected report from a worker that does not hold the claim to be rejected")
	}

	got, getErr := store.GetTicket(ctx, tk.ID)
	if getErr != nil {
		t.Fatalf("get ticket: %v", getErr)
	}
	if got.CurrentStage != 0 || got.ClaimedBy != "w1" {
		t.Errorf("ticket must be unchanged after a rejected report, got %+v", got)
	}
}
