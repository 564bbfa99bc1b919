package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arctek/conductor/dag"
	"github.com/arctek/conductor/events"
	"github.com/arctek/conductor/ids"
	"github.com/arctek/conductor/queue"
	"github.com/arctek/conductor/ticket"
)

// Processor applies a worker's completion record to the store,
// atomically per outcome, the way the original's
// WorkerOutputProcessor::process_output dispatches by outcome kind.
type Processor struct {
	store  ticket.Store
	queues *queue.Manager
	bus    *events.Bus
	logger *slog.Logger
}

// NewProcessor wires the store, queue manager, and event bus a
// completion record is applied against.
func NewProcessor(store ticket.Store, queues *queue.Manager, bus *events.Bus, logger *slog.Logger) *Processor {
	return &Processor{store: store, queues: queues, bus: bus, logger: logger}
}

// Process resolves the ticket the record refers to, appends a comment
// audit record, and dispatches by outcome kind.
func (p *Processor) Process(ctx context.Context, workerID string, rec CompletionRecord) error {
	ticketID := rec.TicketID
	if ticketID == "" {
		return fmt.Errorf("completion record is missing ticket_id")
	}
	t, err := p.store.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("resolve ticket %s: %w", ticketID, err)
	}
	if t.ClaimedBy != workerID {
		return fmt.Errorf("precondition failed: %s is not held by worker %q", ticketID, workerID)
	}

	if err := p.store.AddComment(ctx, &ticket.Comment{
		TicketID:   ticketID,
		WorkerType: t.CurrentStageName(),
		WorkerID:   workerID,
		Stage:      t.CurrentStageName(),
		Content:    rec.Comment,
	}); err != nil {
		return fmt.Errorf("record comment for %s: %w", ticketID, err)
	}

	switch rec.Outcome {
	case KindNextStage:
		return p.handleNextStage(ctx, t, rec)
	case KindPrevStage:
		return p.handlePrevStage(ctx, t, rec)
	case KindCoordinatorAttention:
		return p.handleCoordinatorAttention(ctx, t, rec)
	case KindPlanningComplete:
		return p.handlePlanningComplete(ctx, t, rec)
	default:
		return fmt.Errorf("unknown outcome %q", rec.Outcome)
	}
}

func (p *Processor) releaseAndAdvance(ctx context.Context, t *ticket.Ticket, newStage int, newPlan []string) error {
	if err := p.store.ReleaseClaim(ctx, t.ID); err != nil {
		return fmt.Errorf("release claim on %s: %w", t.ID, err)
	}
	return p.store.AdvanceStage(ctx, t.ID, newStage, newPlan)
}

func (p *Processor) emit(ctx context.Context, projectID, ticketID, typ string, payload any) {
	data, _ := json.Marshal(payload)
	p.bus.Publish(ctx, p.store, ticket.Event{
		ProjectID: projectID,
		TicketID:  ticketID,
		Type:      typ,
		Payload:   string(data),
	})
}

// handleNextStage requires target_stage (mandatory per spec.md §4.6
// precondition 3, matching the original's hard error in
// json_output.rs:214-216), validates any pipeline_update alongside it,
// and either closes the ticket directly when target_stage names the
// terminal sentinel (see DESIGN.md's Open Question decision) or
// advances to the named, registered stage.
func (p *Processor) handleNextStage(ctx context.Context, t *ticket.Ticket, rec CompletionRecord) error {
	if rec.TargetStage == "" {
		return fmt.Errorf("next_stage outcome requires target_stage")
	}

	effectivePlan := t.ExecutionPlan
	var planUpdate []string

	if len(rec.PipelineUpdate) > 0 {
		if err := ValidatePreservesPastStages(t.ExecutionPlan, t.CurrentStage, rec.PipelineUpdate); err != nil {
			return fmt.Errorf("pipeline_update rejected for %s: %w", t.ID, err)
		}
		for _, stage := range rec.PipelineUpdate {
			if _, err := p.store.GetWorkerType(ctx, t.ProjectID, stage); err != nil {
				return fmt.Errorf("pipeline_update references unregistered worker type %q: %w", stage, err)
			}
		}
		effectivePlan = rec.PipelineUpdate
		planUpdate = rec.PipelineUpdate
	}

	if rec.TargetStage == ticket.TerminalStage {
		if err := p.store.ReleaseClaim(ctx, t.ID); err != nil {
			return fmt.Errorf("release claim on %s: %w", t.ID, err)
		}
		if err := p.store.CloseTicket(ctx, t.ID); err != nil {
			return fmt.Errorf("close %s: %w", t.ID, err)
		}
		p.emit(ctx, t.ProjectID, t.ID, "ticket_closed", map[string]string{"reason": "target_stage sentinel"})
		return p.unblockDependents(ctx, t.ID)
	}

	if _, err := p.store.GetWorkerType(ctx, t.ProjectID, rec.TargetStage); err != nil {
		return fmt.Errorf("unknown worker type %q: please register %q first: %w", rec.TargetStage, rec.TargetStage, err)
	}
	newIndex := StageIndex(effectivePlan, rec.TargetStage)
	if newIndex == -1 {
		return fmt.Errorf("target_stage %q is not part of %s's execution plan", rec.TargetStage, t.ID)
	}

	if err := p.releaseAndAdvance(ctx, t, newIndex, planUpdate); err != nil {
		return fmt.Errorf("advance %s to stage %d: %w", t.ID, newIndex, err)
	}
	p.emit(ctx, t.ProjectID, t.ID, "stage_completed", map[string]any{"new_stage": effectivePlan[newIndex]})
	p.enqueueIfReady(ctx, t.ProjectID, t.ID, effectivePlan[newIndex])
	return nil
}

// handlePrevStage requires target_stage (mandatory per spec.md §4.6
// precondition 3, matching the original's hard error in
// json_output.rs:292-299) and moves the ticket to the named, registered
// stage rather than blindly decrementing CurrentStage.
func (p *Processor) handlePrevStage(ctx context.Context, t *ticket.Ticket, rec CompletionRecord) error {
	if rec.TargetStage == "" {
		return fmt.Errorf("prev_stage outcome requires target_stage")
	}
	if _, err := p.store.GetWorkerType(ctx, t.ProjectID, rec.TargetStage); err != nil {
		return fmt.Errorf("unknown worker type %q: please register %q first: %w", rec.TargetStage, rec.TargetStage, err)
	}
	newIndex := StageIndex(t.ExecutionPlan, rec.TargetStage)
	if newIndex == -1 {
		return fmt.Errorf("target_stage %q is not part of %s's execution plan", rec.TargetStage, t.ID)
	}
	if err := p.releaseAndAdvance(ctx, t, newIndex, nil); err != nil {
		return fmt.Errorf("return %s to stage %d: %w", t.ID, newIndex, err)
	}
	p.logger.Warn("ticket returned to previous stage", "ticket_id", t.ID, "reason", rec.Reason)
	p.emit(ctx, t.ProjectID, t.ID, "stage_reverted", map[string]any{"reason": rec.Reason})
	p.enqueueIfReady(ctx, t.ProjectID, t.ID, t.ExecutionPlan[newIndex])
	return nil
}

func (p *Processor) handleCoordinatorAttention(ctx context.Context, t *ticket.Ticket, rec CompletionRecord) error {
	if err := p.store.ReleaseClaim(ctx, t.ID); err != nil {
		return fmt.Errorf("release claim on %s: %w", t.ID, err)
	}
	if err := p.store.SetOnHold(ctx, t.ID); err != nil {
		return fmt.Errorf("set %s on_hold: %w", t.ID, err)
	}
	if err := p.store.AddComment(ctx, &ticket.Comment{
		TicketID: t.ID,
		Stage:    t.CurrentStageName(),
		Content:  fmt.Sprintf("⚠️ COORDINATOR ATTENTION REQUIRED: %s", rec.Reason),
	}); err != nil {
		return fmt.Errorf("record coordinator-attention comment on %s: %w", t.ID, err)
	}
	p.emit(ctx, t.ProjectID, t.ID, "coordinator_attention", map[string]any{"reason": rec.Reason})
	return nil
}

func (p *Processor) enqueueIfReady(ctx context.Context, projectID, ticketID, stage string) {
	t, err := p.store.GetTicket(ctx, ticketID)
	if err != nil {
		p.logger.Error("reload ticket before enqueue", "ticket_id", ticketID, "error", err)
		return
	}
	if t.IsQueueEligible() {
		p.queues.Add(projectID, stage, ticketID)
	}
}

// unblockDependents implements the dependency resolver (C7): when a
// ticket closes, every dependent whose last open "blocks" edge was
// this ticket flips from blocked to ready and is resubmitted to its
// stage queue. Ported from the original's
// DependencyManager::check_and_unblock_dependents.
func (p *Processor) unblockDependents(ctx context.Context, closedTicketID string) error {
	dependents, err := p.store.ListBlockedDependents(ctx, closedTicketID)
	if err != nil {
		return fmt.Errorf("list dependents of %s: %w", closedTicketID, err)
	}
	for _, dep := range dependents {
		remaining, err := p.store.CountOpenBlockers(ctx, dep.ID)
		if err != nil {
			return fmt.Errorf("count blockers for %s: %w", dep.ID, err)
		}
		if remaining > 0 {
			continue
		}
		if err := p.store.SetDependencyStatus(ctx, dep.ID, ticket.DependencyReady); err != nil {
			return fmt.Errorf("unblock %s: %w", dep.ID, err)
		}
		p.emit(ctx, dep.ProjectID, dep.ID, "dependency_resolved", nil)
		if dep.State == ticket.StateOpen && dep.ClaimedBy == "" {
			p.queues.Add(dep.ProjectID, dep.CurrentStageName(), dep.ID)
			p.emit(ctx, dep.ProjectID, dep.ID, "resubmitted", nil)
		}
	}
	return nil
}

// handlePlanningComplete expands a planning ticket's proposed tickets
// and worker types into real, minted, dependency-linked tickets, then
// closes the planning ticket itself. Worker types named in
// worker_types_needed are registered first; the ticket specs (stages
// and priorities), the temp_id dependency graph and the project are
// then validated in full before any ticket is inserted, so a rejected
// batch inserts no tickets. Each write is its own statement rather
// than one spanning SQL transaction: worker types registered for a
// rejected batch stay registered, and a store error part-way through
// keeps the writes made before it.
func (p *Processor) handlePlanningComplete(ctx context.Context, t *ticket.Ticket, rec CompletionRecord) error {
	for _, wtSpec := range rec.WorkerTypesNeeded {
		if _, err := p.store.GetWorkerType(ctx, t.ProjectID, wtSpec.WorkerType); err != nil {
			if err := p.store.RegisterWorkerType(ctx, &ticket.WorkerType{
				ProjectID:        t.ProjectID,
				WorkerType:       wtSpec.WorkerType,
				Template:         wtSpec.Template,
				ShortDescription: wtSpec.ShortDescription,
			}); err != nil {
				return fmt.Errorf("register worker type %q: %w", wtSpec.WorkerType, err)
			}
		}
	}

	for _, spec := range rec.TicketsToCreate {
		if len(spec.ExecutionPlan) == 0 {
			return fmt.Errorf("ticket %q (temp_id) has an empty execution_plan", spec.TempID)
		}
		for _, stage := range spec.ExecutionPlan {
			if _, err := p.store.GetWorkerType(ctx, t.ProjectID, stage); err != nil {
				return fmt.Errorf("ticket %q references unregistered worker type %q: %w", spec.TempID, stage, err)
			}
		}
		if _, err := ticket.ParsePriority(spec.Priority); err != nil {
			return fmt.Errorf("ticket %q has invalid priority: %w", spec.TempID, err)
		}
	}

	var edges []dag.Edge
	byTemp := make(map[string]TicketSpecification, len(rec.TicketsToCreate))
	for _, spec := range rec.TicketsToCreate {
		byTemp[spec.TempID] = spec
		for _, dep := range spec.DependsOn {
			edges = append(edges, dag.Edge{Ticket: spec.TempID, DependsOn: dep})
		}
	}
	for _, e := range edges {
		if _, ok := byTemp[e.DependsOn]; !ok {
			return fmt.Errorf("ticket %q depends_on unknown temp_id %q", e.Ticket, e.DependsOn)
		}
	}
	graph := dag.Build(edges)
	levels, ok := graph.CalculateLevels()
	if !ok {
		return fmt.Errorf("planning batch for %s contains a dependency cycle", t.ID)
	}

	project, err := p.store.GetProject(ctx, t.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", t.ProjectID, err)
	}

	order := make([]string, 0, len(rec.TicketsToCreate))
	for tempID := range byTemp {
		order = append(order, tempID)
	}
	sortByLevel(order, levels)

	mintedIDs := make(map[string]string, len(order))
	suffixCounters := make(map[string]int)
	for _, tempID := range order {
		spec := byTemp[tempID]
		subsystem := ids.InferSubsystem(spec.ExecutionPlan)
		if _, seen := suffixCounters[subsystem]; !seen {
			max, err := p.store.MaxTicketSuffix(ctx, t.ProjectID, subsystem)
			if err != nil {
				return fmt.Errorf("resolve ticket counter for subsystem %q: %w", subsystem, err)
			}
			suffixCounters[subsystem] = max
		}
		suffixCounters[subsystem]++
		mintedID := fmt.Sprintf("%s-%s-%03d", project.Prefix, subsystem, suffixCounters[subsystem])
		mintedIDs[tempID] = mintedID

		depStatus := ticket.DependencyReady
		if len(spec.DependsOn) > 0 {
			depStatus = ticket.DependencyBlocked
		}
		priority, err := ticket.ParsePriority(spec.Priority)
		if err != nil {
			return fmt.Errorf("ticket %q has invalid priority: %w", tempID, err)
		}
		now := time.Now().UTC()
		if err := p.store.InsertTicket(ctx, &ticket.Ticket{
			ID:               mintedID,
			ProjectID:        t.ProjectID,
			Title:            spec.Title,
			Description:      spec.Description,
			ExecutionPlan:    spec.ExecutionPlan,
			CurrentStage:     0,
			State:            ticket.StateOpen,
			DependencyStatus: depStatus,
			Priority:         priority,
			ParentTicketID:   t.ID,
			CreatedAt:        now,
		}); err != nil {
			return fmt.Errorf("insert minted ticket for temp_id %q: %w", tempID, err)
		}
	}

	for _, tempID := range order {
		spec := byTemp[tempID]
		for _, dep := range spec.DependsOn {
			if err := p.store.AddDependency(ctx, &ticket.Dependency{
				ProjectID: t.ProjectID,
				TicketID:  mintedIDs[tempID],
				DependsOn: mintedIDs[dep],
				Type:      ticket.DependencyBlocks,
			}); err != nil {
				return fmt.Errorf("link dependency %s -> %s: %w", mintedIDs[tempID], mintedIDs[dep], err)
			}
		}
	}

	if err := p.store.ReleaseClaim(ctx, t.ID); err != nil {
		return fmt.Errorf("release claim on planning ticket %s: %w", t.ID, err)
	}
	if err := p.store.CloseTicket(ctx, t.ID); err != nil {
		return fmt.Errorf("close planning ticket %s: %w", t.ID, err)
	}

	for _, tempID := range order {
		mintedID := mintedIDs[tempID]
		spec := byTemp[tempID]
		if len(spec.DependsOn) == 0 {
			p.queues.Add(t.ProjectID, spec.ExecutionPlan[0], mintedID)
		}
	}
	p.emit(ctx, t.ProjectID, t.ID, "planning_complete", map[string]any{"tickets_created": len(order)})
	return nil
}

// sortByLevel orders temp_ids so parents are always minted and
// inserted before the children that depend_on them.
func sortByLevel(ids []string, levels map[string]int) {
	for i := 1; i < len(ids); i++ {
		j := i
		for j > 0 && levels[ids[j-1]] > levels[ids[j]] {
			ids[j-1], ids[j] = ids[j], ids[j-1]
			j--
		}
	}
}
