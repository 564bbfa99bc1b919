package ticket

import "context"

// Store is the persistence interface for the coordination core.
// internal/db provides the SQLite-backed implementation; tests use an
// in-memory SQLite database through the same implementation rather
// than a hand-rolled fake, since every method here is transactional.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	GetProjectByPath(ctx context.Context, path string) (*Project, error)

	// Worker types
	RegisterWorkerType(ctx context.Context, wt *WorkerType) error
	GetWorkerType(ctx context.Context, projectID, workerType string) (*WorkerType, error)
	ListWorkerTypes(ctx context.Context, projectID string) ([]WorkerType, error)

	// Tickets
	GetTicket(ctx context.Context, id string) (*Ticket, error)
	ListTicketsByProject(ctx context.Context, projectID string) ([]Ticket, error)
	ListOpenUnclaimedReady(ctx context.Context, projectID string) ([]Ticket, error)
	ListStalledClaims(ctx context.Context, olderThan int64) ([]Ticket, error)
	ListAgedOnHold(ctx context.Context, olderThan int64) ([]Ticket, error)
	ListBlockedDependents(ctx context.Context, closedTicketID string) ([]Ticket, error)
	MaxTicketSuffix(ctx context.Context, projectID, subsystem string) (int, error)

	// Ticket mutation (transactional, invariant-preserving)
	InsertTicket(ctx context.Context, t *Ticket) error
	ClaimTicket(ctx context.Context, ticketID, workerID string) (nonce int64, err error)
	ReleaseClaim(ctx context.Context, ticketID string) error
	AdvanceStage(ctx context.Context, ticketID string, newStage int, newPlan []string) error
	CloseTicket(ctx context.Context, ticketID string) error
	SetOnHold(ctx context.Context, ticketID string) error
	ReopenTicket(ctx context.Context, ticketID string) error
	SetDependencyStatus(ctx context.Context, ticketID string, status DependencyStatus) error

	// Dependencies
	AddDependency(ctx context.Context, d *Dependency) error
	ListDependencies(ctx context.Context, projectID string) ([]Dependency, error)
	ListDependenciesFor(ctx context.Context, ticketID string) ([]Dependency, error)
	CountOpenBlockers(ctx context.Context, ticketID string) (int, error)
	TicketExists(ctx context.Context, ticketID string) (bool, error)

	// Comments and events
	AddComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, ticketID string) ([]Comment, error)
	AddEvent(ctx context.Context, e *Event) error

	// Config
	GetConfigValue(ctx context.Context, key string) (string, bool, error)
	SetConfigValue(ctx context.Context, key, value string) error

	Close() error
}
