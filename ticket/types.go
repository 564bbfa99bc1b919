// Package ticket defines the core domain model shared by the store,
// the worker runtime, and the orchestration layer.
package ticket

import (
	"fmt"
	"time"
)

// State is the top-level lifecycle state of a ticket.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
	StateOnHold State = "on_hold"
)

// TerminalStage is the pre-declared target_stage value a next_stage
// completion record uses to close a ticket directly, per spec.md's own
// worked example — it never names a registered WorkerType.
const TerminalStage = "closed"

// DependencyStatus tracks whether a ticket's blockers are satisfied.
type DependencyStatus string

const (
	DependencyReady   DependencyStatus = "ready"
	DependencyBlocked DependencyStatus = "blocked"
)

// DependencyType mirrors the original's single supported edge kind.
// Only "blocks" edges participate in cycle detection and readiness.
const DependencyBlocks = "blocks"

// Priority is a ticket's urgency, a string enum on the wire
// (original_source/src/workers/completion_processor.rs's
// TicketSpecification.priority: Option<String>), not a numeric scale.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority validates a priority string from a completion record
// or API call, defaulting empty input to PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s), nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Project is a top-level namespace for tickets and worker types.
// Prefix is derived once at creation time (see ids.DerivePrefix) and
// persisted so later ticket IDs stay stable across renames.
type Project struct {
	ID        string
	Name      string
	Prefix    string
	Path      string
	CreatedAt time.Time
}

// WorkerType registers a pipeline stage's executable identity: the
// prompt template it renders and a human-facing description.
type WorkerType struct {
	ProjectID        string
	WorkerType       string
	Template         string
	ShortDescription string
	CreatedAt        time.Time
}

// Ticket is a unit of work moving through a project's execution_plan.
type Ticket struct {
	ID               string
	ProjectID        string
	Title            string
	Description      string
	ExecutionPlan    []string
	CurrentStage     int
	State            State
	DependencyStatus DependencyStatus
	Priority         Priority
	ClaimedBy        string // worker_id, empty if unclaimed
	ClaimedAt        *time.Time
	ParentTicketID   string // id of the planning ticket that minted this one, empty if created directly
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ClosedAt         *time.Time
}

// CurrentStageName returns the name of the stage the ticket currently
// sits at, or "" if CurrentStage is out of range.
func (t *Ticket) CurrentStageName() string {
	if t.CurrentStage < 0 || t.CurrentStage >= len(t.ExecutionPlan) {
		return ""
	}
	return t.ExecutionPlan[t.CurrentStage]
}

// IsQueueEligible reports whether a ticket may be handed to a worker:
// open, ready, and not already claimed.
func (t *Ticket) IsQueueEligible() bool {
	return t.State == StateOpen && t.DependencyStatus == DependencyReady && t.ClaimedBy == ""
}

// Dependency is a directed "blocks" edge: TicketID depends on
// (is blocked by) DependsOn until DependsOn closes.
type Dependency struct {
	ProjectID string
	TicketID  string
	DependsOn string
	Type      string
	CreatedAt time.Time
}

// Comment is an append-only audit record of a worker's reported
// outcome for a ticket, one per processed completion record.
type Comment struct {
	ID         int64
	TicketID   string
	WorkerType string
	WorkerID   string
	Stage      string
	Content    string
	CreatedAt  time.Time
}

// Event is a best-effort, non-authoritative observation emitted as
// side effects happen. Losing an event never changes ticket state.
type Event struct {
	ID        int64
	ProjectID string
	TicketID  string
	Type      string
	Payload   string // JSON object, opaque to the bus
	CreatedAt time.Time
}

// Worker identifies one claim-lifetime of a ticket at a stage. Nonce
// is the per-ticket claim counter the store records in worker_claims;
// completion reports are matched by worker ID only, not by nonce.
type Worker struct {
	ID        string
	ProjectID string
	TicketID  string
	Stage     string
	Nonce     int64
	SpawnedAt time.Time
}
