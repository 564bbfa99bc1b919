package recovery

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arctek/conductor/internal/db"
	"github.com/arctek/conductor/queue"
	"github.com/arctek/conductor/ticket"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	raw, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return db.NewStore(raw)
}

func allProjects(store *db.Store, projectID string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) { return []string{projectID}, nil }
}

func TestSweepEnqueuesReadyTickets(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateProject(ctx, &ticket.Project{ID: "p1", Name: "demo", Prefix: "DEM"})
	store.InsertTicket(ctx, &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: "p1", ExecutionPlan: []string{"backend-dev"},
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	})

	qm := queue.NewManager()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loop := NewLoop(store, qm, logger, time.Hour, 5*time.Minute, 30*time.Minute, allProjects(store, "p1"))

	stats, err := loop.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.TicketsEnqueued != 1 {
		t.Errorf("TicketsEnqueued = %d, want 1", stats.TicketsEnqueued)
	}
	if _, ok := qm.Next("p1", "backend-dev"); !ok {
		t.Error("expected ticket to be queued for backend-dev")
	}
}

func TestSweepReleasesStalledClaims(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateProject(ctx, &ticket.Project{ID: "p1", Name: "demo", Prefix: "DEM"})
	store.InsertTicket(ctx, &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: "p1", ExecutionPlan: []string{"backend-dev"},
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	})
	store.ClaimTicket(ctx, "DEM-BE-001", "w1")

	qm := queue.NewManager()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// stallTimeout of -1s means "claimed_at before now+1s" is always true:
	// any already-claimed ticket counts as stalled immediately.
	loop := NewLoop(store, qm, logger, time.Hour, -time.Second, 30*time.Minute, allProjects(store, "p1"))

	stats, err := loop.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.ClaimedTicketsReleased != 1 {
		t.Errorf("ClaimedTicketsReleased = %d, want 1", stats.ClaimedTicketsReleased)
	}
	got, _ := store.GetTicket(ctx, "DEM-BE-001")
	if got.ClaimedBy != "" {
		t.Error("expected claim to be released")
	}
}

func TestSweepRecoversAgedOnHold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateProject(ctx, &ticket.Project{ID: "p1", Name: "demo", Prefix: "DEM"})
	store.InsertTicket(ctx, &ticket.Ticket{
		ID: "DEM-BE-001", ProjectID: "p1", ExecutionPlan: []string{"backend-dev"},
		State: ticket.StateOpen, DependencyStatus: ticket.DependencyReady,
	})
	store.SetOnHold(ctx, "DEM-BE-001")

	qm := queue.NewManager()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loop := NewLoop(store, qm, logger, time.Hour, 5*time.Minute, -time.Second, allProjects(store, "p1"))

	stats, err := loop.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.OnHoldTicketsRecovered != 1 {
		t.Errorf("OnHoldTicketsRecovered = %d, want 1", stats.OnHoldTicketsRecovered)
	}
	got, _ := store.GetTicket(ctx, "DEM-BE-001")
	if got.State != ticket.StateOpen {
		t.Errorf("expected ticket reopened, got state %q", got.State)
	}
}
