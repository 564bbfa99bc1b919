// Package outcome decodes and applies a worker's completion record,
// ported from the original's workers/json_output.rs,
// workers/completion_processor.rs, and workers/pipeline.rs.
package outcome

// Kind enumerates the four outcomes a worker's completion record may
// report. A ticket is closed by a next_stage record whose target_stage
// is ticket.TerminalStage, not by a fifth outcome — see DESIGN.md's
// Open Question decision.
type Kind string

const (
	KindNextStage             Kind = "next_stage"
	KindPrevStage             Kind = "prev_stage"
	KindCoordinatorAttention  Kind = "coordinator_attention"
	KindPlanningComplete      Kind = "planning_complete"
)

// TicketSpecification describes one ticket to mint during planning
// expansion. TempID is a caller-chosen placeholder used only to wire
// DependsOn edges within the same batch; it never reaches storage.
type TicketSpecification struct {
	TempID        string   `json:"temp_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	ExecutionPlan []string `json:"execution_plan"`
	Subsystem     string   `json:"subsystem,omitempty"`
	TicketType    string   `json:"ticket_type,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	DependsOn     []string `json:"depends_on,omitempty"`
}

// WorkerTypeSpecification registers a worker type referenced by a
// planning ticket's newly-minted execution plans, if it doesn't
// already exist.
type WorkerTypeSpecification struct {
	WorkerType       string `json:"worker_type"`
	Template         string `json:"template"`
	ShortDescription string `json:"short_description,omitempty"`
}

// CompletionRecord is the canonical JSON shape a worker writes to
// stdout on completion, unifying the original's two slightly
// divergent Rust schemas (json_output.rs's target_stage/pipeline_update
// and completion_processor.rs's tickets_to_create/worker_types_needed/
// planning_complete) into the single wire format spec.md names.
type CompletionRecord struct {
	TicketID         string                    `json:"ticket_id,omitempty"`
	Outcome          Kind                      `json:"outcome"`
	TargetStage      string                    `json:"target_stage,omitempty"`
	PipelineUpdate   []string                  `json:"pipeline_update,omitempty"`
	Comment          string                    `json:"comment,omitempty"`
	Reason           string                    `json:"reason,omitempty"`
	TicketsToCreate  []TicketSpecification     `json:"tickets_to_create,omitempty"`
	WorkerTypesNeeded []WorkerTypeSpecification `json:"worker_types_needed,omitempty"`
}
