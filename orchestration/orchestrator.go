package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/arctek/conductor/dag"
	"github.com/arctek/conductor/events"
	"github.com/arctek/conductor/ids"
	"github.com/arctek/conductor/internal/db"
	"github.com/arctek/conductor/outcome"
	"github.com/arctek/conductor/queue"
	"github.com/arctek/conductor/recovery"
	"github.com/arctek/conductor/ticket"
	"github.com/arctek/conductor/worker"
)

// Orchestrator is the top-level coordination server. Construct with
// New, call Start to launch the recovery loop, Stop to shut down.
type Orchestrator struct {
	cfg    Config
	store  ticket.Store
	queues *queue.Manager
	bus    *events.Bus
	proc   *outcome.Processor
	rec    *recovery.Loop
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New opens the store at cfg.DBPath and wires every component
// together. Call Start to begin the recovery loop.
func New(cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	raw, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	store := db.NewStore(raw)
	queues := queue.NewManager()
	bus := events.NewBus(logger)
	proc := outcome.NewProcessor(store, queues, bus, logger)

	o := &Orchestrator{
		cfg:    cfg,
		store:  store,
		queues: queues,
		bus:    bus,
		proc:   proc,
		logger: logger,
	}
	if err := o.loadConfig(context.Background()); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	o.rec = recovery.NewLoop(store, queues, logger, cfg.RecoveryInterval, cfg.StallTimeout, cfg.OnHoldRecoveryAge, o.ProjectIDs)
	return o, nil
}

// loadConfig overlays database-stored fallbacks onto any field still at
// its DefaultConfig value (meaning the operator didn't pass a flag),
// and persists an explicitly-set value so a later run without the flag
// keeps reusing it.
func (o *Orchestrator) loadConfig(ctx context.Context) error {
	defaults := DefaultConfig()
	fields := []struct {
		key   string
		get   func() string
		set   func(string)
		isSet bool
	}{
		{key: "claude_binary", get: func() string { return o.cfg.ClaudeBinary }, set: func(v string) { o.cfg.ClaudeBinary = v }},
		{key: "permission_mode", get: func() string { return o.cfg.PermissionMode }, set: func(v string) { o.cfg.PermissionMode = v }},
	}
	defaultOf := map[string]string{
		"claude_binary":   defaults.ClaudeBinary,
		"permission_mode": defaults.PermissionMode,
	}
	for _, f := range fields {
		if f.get() != defaultOf[f.key] {
			if err := o.store.SetConfigValue(ctx, f.key, f.get()); err != nil {
				return err
			}
			continue
		}
		v, ok, err := o.store.GetConfigValue(ctx, f.key)
		if err != nil {
			return err
		}
		if ok {
			f.set(v)
		}
	}
	return nil
}

// Start launches the background recovery loop. Safe to call once.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	o.rec.Start(runCtx)
	o.logger.Info("orchestrator started", "db", o.cfg.DBPath, "recovery_interval", o.cfg.RecoveryInterval)
}

// Stop cancels the recovery loop and releases the store.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.rec.Stop()
	if err := o.store.Close(); err != nil {
		o.logger.Error("close store", "error", err)
	}
}

// RecoverNow runs one recovery sweep immediately, independent of the
// loop's ticker, and returns what it did.
func (o *Orchestrator) RecoverNow(ctx context.Context) (recovery.Stats, error) {
	return o.rec.Sweep(ctx)
}

// ProjectIDs lists every known project; used by the recovery loop to
// know what to sweep. A small internal query rather than a full
// ticket.Store method since nothing else needs it.
func (o *Orchestrator) ProjectIDs(ctx context.Context) ([]string, error) {
	type lister interface {
		ListProjectIDs(ctx context.Context) ([]string, error)
	}
	if l, ok := o.store.(lister); ok {
		return l.ListProjectIDs(ctx)
	}
	return nil, fmt.Errorf("store does not support project listing")
}

// CreateProject registers a new project, deriving its ticket-ID
// prefix from its name.
func (o *Orchestrator) CreateProject(ctx context.Context, name, path string) (*ticket.Project, error) {
	p := &ticket.Project{
		ID:     uuid.NewString(),
		Name:   name,
		Prefix: ids.DerivePrefix(name),
		Path:   path,
	}
	if _, err := worker.ValidateProjectPath(path); err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}
	if err := o.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterWorkerType registers a pipeline stage's prompt template.
func (o *Orchestrator) RegisterWorkerType(ctx context.Context, projectID, workerType, template, shortDescription string) error {
	return o.store.RegisterWorkerType(ctx, &ticket.WorkerType{
		ProjectID:        projectID,
		WorkerType:       workerType,
		Template:         template,
		ShortDescription: shortDescription,
	})
}

// CreateTicketInput describes a ticket to create directly (outside of
// a planning expansion), optionally depending on existing tickets.
type CreateTicketInput struct {
	ProjectID     string
	Title         string
	Description   string
	ExecutionPlan []string
	Priority      ticket.Priority
	DependsOn     []string // existing ticket IDs
}

// CreateTicket validates the execution plan's worker types, mints a
// ticket ID, rejects any dependency on an unknown ticket, and
// enqueues the ticket immediately if it has no open blockers.
func (o *Orchestrator) CreateTicket(ctx context.Context, in CreateTicketInput) (*ticket.Ticket, error) {
	if len(in.ExecutionPlan) == 0 {
		return nil, fmt.Errorf("execution_plan must not be empty")
	}
	priority, err := ticket.ParsePriority(string(in.Priority))
	if err != nil {
		return nil, err
	}
	for _, stage := range in.ExecutionPlan {
		if _, err := o.store.GetWorkerType(ctx, in.ProjectID, stage); err != nil {
			return nil, fmt.Errorf("stage %q has no registered worker type: %w", stage, err)
		}
	}

	project, err := o.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", in.ProjectID, err)
	}

	for _, dep := range in.DependsOn {
		exists, err := o.store.TicketExists(ctx, dep)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("depends_on unknown ticket %q", dep)
		}
	}
	// A brand-new ticket cannot participate in a cycle: nothing in the
	// project can depend_on it yet. Cycle detection applies to
	// AddDependencyToExisting, where both endpoints already have edges.

	id, err := ids.Generate(ctx, o.store.(interface {
		MaxTicketSuffix(ctx context.Context, projectID, subsystem string) (int, error)
	}), in.ProjectID, project.Prefix, in.ExecutionPlan)
	if err != nil {
		return nil, err
	}

	status := ticket.DependencyReady
	for _, dep := range in.DependsOn {
		blocker, err := o.store.GetTicket(ctx, dep)
		if err != nil {
			return nil, err
		}
		if blocker.State != ticket.StateClosed {
			status = ticket.DependencyBlocked
		}
	}
	t := &ticket.Ticket{
		ID:               id,
		ProjectID:        in.ProjectID,
		Title:            in.Title,
		Description:      in.Description,
		ExecutionPlan:    in.ExecutionPlan,
		Priority:         priority,
		State:            ticket.StateOpen,
		DependencyStatus: status,
	}
	if err := o.store.InsertTicket(ctx, t); err != nil {
		return nil, err
	}
	for _, dep := range in.DependsOn {
		if err := o.store.AddDependency(ctx, &ticket.Dependency{
			ProjectID: in.ProjectID,
			TicketID:  t.ID,
			DependsOn: dep,
			Type:      ticket.DependencyBlocks,
		}); err != nil {
			return nil, err
		}
	}

	if t.IsQueueEligible() {
		o.queues.Add(in.ProjectID, t.ExecutionPlan[0], t.ID)
	}
	return t, nil
}

// AddDependencyToExisting links two already-existing tickets with a
// "blocks" edge, rejecting it if it would create a cycle in the
// project's dependency graph.
func (o *Orchestrator) AddDependencyToExisting(ctx context.Context, projectID, ticketID, dependsOn string) error {
	if ticketID == dependsOn {
		return fmt.Errorf("a ticket cannot depend on itself")
	}
	edges, err := o.store.ListDependencies(ctx, projectID)
	if err != nil {
		return err
	}
	deps := make([]dag.Edge, len(edges))
	for i, e := range edges {
		deps[i] = dag.Edge{Ticket: e.TicketID, DependsOn: e.DependsOn}
	}
	graph := dag.Build(deps)
	if graph.WouldCreateCycle(ticketID, dependsOn) {
		return fmt.Errorf("adding %s -> %s would create a dependency cycle", ticketID, dependsOn)
	}

	if err := o.store.AddDependency(ctx, &ticket.Dependency{
		ProjectID: projectID, TicketID: ticketID, DependsOn: dependsOn, Type: ticket.DependencyBlocks,
	}); err != nil {
		return err
	}

	remaining, err := o.store.CountOpenBlockers(ctx, ticketID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return o.store.SetDependencyStatus(ctx, ticketID, ticket.DependencyBlocked)
	}
	return nil
}

// ClaimNext pops the next ready task for a project+stage, claims its
// ticket, and returns the claim's nonce (the per-ticket claim counter
// recorded by the store). Completion reports are matched by worker ID,
// not by this nonce.
func (o *Orchestrator) ClaimNext(ctx context.Context, projectID, stage, workerID string) (*ticket.Ticket, int64, bool, error) {
	if err := worker.ValidateWorkerID(workerID); err != nil {
		return nil, 0, false, err
	}
	task, ok := o.queues.Next(projectID, stage)
	if !ok {
		return nil, 0, false, nil
	}
	nonce, err := o.store.ClaimTicket(ctx, task.TicketID, workerID)
	if err != nil {
		return nil, 0, false, fmt.Errorf("claim %s: %w", task.TicketID, err)
	}
	t, err := o.store.GetTicket(ctx, task.TicketID)
	if err != nil {
		return nil, 0, false, err
	}
	return t, nonce, true, nil
}

// SubmitCompletion decodes a worker's raw stdout for its trailing
// JSON completion record and applies it.
func (o *Orchestrator) SubmitCompletion(ctx context.Context, workerID, stdout string) error {
	jsonBody, err := worker.ExtractCompletionJSON(stdout)
	if err != nil {
		return err
	}
	var rec outcome.CompletionRecord
	if err := json.Unmarshal([]byte(jsonBody), &rec); err != nil {
		return fmt.Errorf("decode completion record: %w", err)
	}
	return o.proc.Process(ctx, workerID, rec)
}
