package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arctek/conductor/ticket"
)

// Store is the SQLite-backed ticket.Store implementation. Every
// mutation that must be atomic opens its own transaction and commits
// or rolls back explicitly, the way internal/db/store.go does in the
// teacher repo.
type Store struct {
	db *DB
}

// NewStore wraps an opened DB in a ticket.Store.
func NewStore(d *DB) *Store { return &Store{db: d} }

var _ ticket.Store = (*Store)(nil)

func (s *Store) Close() error { return s.db.Close() }

const timeLayout = time.RFC3339Nano

func nowString() string { return time.Now().UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, s)
	return t
}

// --- Projects ---------------------------------------------------------

func (s *Store) CreateProject(ctx context.Context, p *ticket.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO projects (id, name, prefix, path, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Prefix, p.Path, p.CreatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*ticket.Project, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT id, name, prefix, path, created_at FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *Store) GetProjectByPath(ctx context.Context, path string) (*ticket.Project, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT id, name, prefix, path, created_at FROM projects WHERE path = ?`, path)
	return scanProject(row)
}

// ListProjectIDs returns every known project id, used by the recovery
// loop to know what to sweep.
func (s *Store) ListProjectIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT id FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanProject(row *sql.Row) (*ticket.Project, error) {
	var p ticket.Project
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Prefix, &p.Path, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project not found: %w", err)
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// --- Worker types -------------------------------------------------------

func (s *Store) RegisterWorkerType(ctx context.Context, wt *ticket.WorkerType) error {
	if wt.CreatedAt.IsZero() {
		wt.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO worker_types (project_id, worker_type, template, short_description, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (project_id, worker_type) DO UPDATE SET
			template = excluded.template,
			short_description = excluded.short_description`,
		wt.ProjectID, wt.WorkerType, wt.Template, wt.ShortDescription, wt.CreatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("register worker type: %w", err)
	}
	return nil
}

func (s *Store) GetWorkerType(ctx context.Context, projectID, workerType string) (*ticket.WorkerType, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT project_id, worker_type, template, short_description, created_at
		FROM worker_types WHERE project_id = ? AND worker_type = ?`, projectID, workerType)
	var wt ticket.WorkerType
	var createdAt string
	if err := row.Scan(&wt.ProjectID, &wt.WorkerType, &wt.Template, &wt.ShortDescription, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("worker type %q: %w", workerType, err)
		}
		return nil, fmt.Errorf("scan worker type: %w", err)
	}
	wt.CreatedAt = parseTime(createdAt)
	return &wt, nil
}

func (s *Store) ListWorkerTypes(ctx context.Context, projectID string) ([]ticket.WorkerType, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT project_id, worker_type, template, short_description, created_at
		FROM worker_types WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list worker types: %w", err)
	}
	defer rows.Close()

	var out []ticket.WorkerType
	for rows.Next() {
		var wt ticket.WorkerType
		var createdAt string
		if err := rows.Scan(&wt.ProjectID, &wt.WorkerType, &wt.Template, &wt.ShortDescription, &createdAt); err != nil {
			return nil, fmt.Errorf("scan worker type: %w", err)
		}
		wt.CreatedAt = parseTime(createdAt)
		out = append(out, wt)
	}
	return out, rows.Err()
}

// --- Tickets --------------------------------------------------------------

func (s *Store) InsertTicket(ctx context.Context, t *ticket.Ticket) error {
	plan, err := json.Marshal(t.ExecutionPlan)
	if err != nil {
		return fmt.Errorf("marshal execution plan: %w", err)
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	priority := t.Priority
	if priority == "" {
		priority = ticket.PriorityMedium
	}
	var parentID sql.NullString
	if t.ParentTicketID != "" {
		parentID = sql.NullString{String: t.ParentTicketID, Valid: true}
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO tickets (id, project_id, title, description, execution_plan, current_stage,
			state, dependency_status, priority, claimed_by, parent_ticket_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, string(plan), t.CurrentStage,
		string(t.State), string(t.DependencyStatus), string(priority), t.ClaimedBy, parentID,
		t.CreatedAt.Format(timeLayout), t.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*ticket.Ticket, error) {
	row := s.db.conn.QueryRowContext(ctx, ticketSelect+` WHERE id = ?`, id)
	return scanTicket(row)
}

const ticketSelect = `SELECT id, project_id, title, description, execution_plan, current_stage,
	state, dependency_status, priority, claimed_by, claimed_at, parent_ticket_id, created_at, updated_at, closed_at FROM tickets`

func scanTicket(row *sql.Row) (*ticket.Ticket, error) {
	var t ticket.Ticket
	var plan, priority string
	var claimedAt, parentID, closedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &plan, &t.CurrentStage,
		&t.State, &t.DependencyStatus, &priority, &t.ClaimedBy, &claimedAt, &parentID, &createdAt, &updatedAt, &closedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket not found: %w", err)
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	if err := json.Unmarshal([]byte(plan), &t.ExecutionPlan); err != nil {
		return nil, fmt.Errorf("unmarshal execution plan: %w", err)
	}
	t.Priority = ticket.Priority(priority)
	if claimedAt.Valid {
		ct := parseTime(claimedAt.String)
		t.ClaimedAt = &ct
	}
	if parentID.Valid {
		t.ParentTicketID = parentID.String
	}
	if closedAt.Valid {
		ct := parseTime(closedAt.String)
		t.ClosedAt = &ct
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func scanTicketRows(rows *sql.Rows) (ticket.Ticket, error) {
	var t ticket.Ticket
	var plan, priority string
	var claimedAt, parentID, closedAt sql.NullString
	var createdAt, updatedAt string
	if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &plan, &t.CurrentStage,
		&t.State, &t.DependencyStatus, &priority, &t.ClaimedBy, &claimedAt, &parentID, &createdAt, &updatedAt, &closedAt); err != nil {
		return t, fmt.Errorf("scan ticket: %w", err)
	}
	if err := json.Unmarshal([]byte(plan), &t.ExecutionPlan); err != nil {
		return t, fmt.Errorf("unmarshal execution plan: %w", err)
	}
	t.Priority = ticket.Priority(priority)
	if claimedAt.Valid {
		ct := parseTime(claimedAt.String)
		t.ClaimedAt = &ct
	}
	if parentID.Valid {
		t.ParentTicketID = parentID.String
	}
	if closedAt.Valid {
		ct := parseTime(closedAt.String)
		t.ClosedAt = &ct
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (s *Store) ListTicketsByProject(ctx context.Context, projectID string) ([]ticket.Ticket, error) {
	rows, err := s.db.conn.QueryContext(ctx, ticketSelect+` WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

func collectTickets(rows *sql.Rows) ([]ticket.Ticket, error) {
	var out []ticket.Ticket
	for rows.Next() {
		t, err := scanTicketRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// priorityRankSQL orders the text-enum priority column by severity
// (critical first), since lexicographic order doesn't match it.
const priorityRankSQL = `CASE priority
	WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END`

func (s *Store) ListOpenUnclaimedReady(ctx context.Context, projectID string) ([]ticket.Ticket, error) {
	rows, err := s.db.conn.QueryContext(ctx, ticketSelect+`
		WHERE project_id = ? AND state = 'open' AND dependency_status = 'ready' AND claimed_by = ''
		ORDER BY `+priorityRankSQL+` DESC, created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list ready tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

// ListStalledClaims returns open+claimed tickets whose claimed_at is
// strictly older than olderThan (unix seconds) — matching the
// original's strict-inequality stall comparison.
func (s *Store) ListStalledClaims(ctx context.Context, olderThan int64) ([]ticket.Ticket, error) {
	cutoff := time.Unix(olderThan, 0).UTC().Format(timeLayout)
	rows, err := s.db.conn.QueryContext(ctx, ticketSelect+`
		WHERE state = 'open' AND claimed_by != '' AND claimed_at IS NOT NULL AND julianday(claimed_at) < julianday(?)`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stalled claims: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (s *Store) ListAgedOnHold(ctx context.Context, olderThan int64) ([]ticket.Ticket, error) {
	cutoff := time.Unix(olderThan, 0).UTC().Format(timeLayout)
	rows, err := s.db.conn.QueryContext(ctx, ticketSelect+`
		WHERE state = 'on_hold' AND julianday(updated_at) < julianday(?)`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list aged on_hold: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (s *Store) ListBlockedDependents(ctx context.Context, closedTicketID string) ([]ticket.Ticket, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+ticketCols("t")+` FROM tickets t
		JOIN ticket_dependencies d ON d.ticket_id = t.id
		WHERE d.depends_on = ? AND t.dependency_status = 'blocked'`, closedTicketID)
	if err != nil {
		return nil, fmt.Errorf("list blocked dependents: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

func ticketCols(alias string) string {
	return alias + `.id, ` + alias + `.project_id, ` + alias + `.title, ` + alias + `.description, ` +
		alias + `.execution_plan, ` + alias + `.current_stage, ` + alias + `.state, ` +
		alias + `.dependency_status, ` + alias + `.priority, ` + alias + `.claimed_by, ` +
		alias + `.claimed_at, ` + alias + `.parent_ticket_id, ` + alias + `.created_at, ` +
		alias + `.updated_at, ` + alias + `.closed_at`
}

func (s *Store) MaxTicketSuffix(ctx context.Context, projectID, subsystem string) (int, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id FROM tickets WHERE project_id = ? AND id LIKE ?`,
		projectID, "%-"+subsystem+"-%")
	if err != nil {
		return 0, fmt.Errorf("list ticket ids: %w", err)
	}
	defer rows.Close()

	max := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan ticket id: %w", err)
		}
		if n, ok := suffixNumber(id); ok && n > max {
			max = n
		}
	}
	return max, rows.Err()
}

// suffixNumber extracts the trailing "-NNN" numeric component of a
// ticket ID, e.g. "ABC-BE-007" -> 7.
func suffixNumber(id string) (int, bool) {
	idx := -1
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '-' {
			idx = i
			break
		}
	}
	if idx == -1 || idx == len(id)-1 {
		return 0, false
	}
	n := 0
	for _, c := range id[idx+1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// --- Ticket mutation --------------------------------------------------

func (s *Store) ClaimTicket(ctx context.Context, ticketID, workerID string) (int64, error) {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE tickets SET claimed_by = ?, claimed_at = ?, updated_at = ?
		WHERE id = ? AND state = 'open' AND dependency_status = 'ready' AND claimed_by = ''`,
		workerID, nowString(), nowString(), ticketID)
	if err != nil {
		return 0, fmt.Errorf("claim ticket: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, fmt.Errorf("ticket %s is not claimable", ticketID)
	}

	var nonce int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(nonce), 0) + 1 FROM worker_claims WHERE ticket_id = ?`, ticketID)
	if err := row.Scan(&nonce); err != nil {
		return 0, fmt.Errorf("compute claim nonce: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO worker_claims (worker_id, project_id, ticket_id, stage, nonce, spawned_at)
		SELECT ?, project_id, id, json_extract(execution_plan, '$[' || current_stage || ']'), ?, ? FROM tickets WHERE id = ?`,
		workerID, nonce, nowString(), ticketID); err != nil {
		return 0, fmt.Errorf("record claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit claim tx: %w", err)
	}
	return nonce, nil
}

func (s *Store) ReleaseClaim(ctx context.Context, ticketID string) error {
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE tickets SET claimed_by = '', claimed_at = NULL, updated_at = ?
		WHERE id = ? AND claimed_by != ''`, nowString(), ticketID)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// AdvanceStage sets current_stage (and, if non-nil, rewrites
// execution_plan) and always releases the current claim — a ticket
// moving stages needs a fresh worker spawned against the new stage.
func (s *Store) AdvanceStage(ctx context.Context, ticketID string, newStage int, newPlan []string) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin advance tx: %w", err)
	}
	defer tx.Rollback()

	if newPlan != nil {
		plan, err := json.Marshal(newPlan)
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE tickets SET execution_plan = ?, current_stage = ?, claimed_by = '', claimed_at = NULL, updated_at = ?
			WHERE id = ?`, string(plan), newStage, nowString(), ticketID); err != nil {
			return fmt.Errorf("advance stage with plan update: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE tickets SET current_stage = ?, claimed_by = '', claimed_at = NULL, updated_at = ?
			WHERE id = ?`, newStage, nowString(), ticketID); err != nil {
			return fmt.Errorf("advance stage: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) CloseTicket(ctx context.Context, ticketID string) error {
	now := nowString()
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE tickets SET state = 'closed', claimed_by = '', claimed_at = NULL, updated_at = ?, closed_at = ?
		WHERE id = ?`, now, now, ticketID)
	if err != nil {
		return fmt.Errorf("close ticket: %w", err)
	}
	return nil
}

func (s *Store) SetOnHold(ctx context.Context, ticketID string) error {
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE tickets SET state = 'on_hold', claimed_by = '', claimed_at = NULL, updated_at = ?
		WHERE id = ?`, nowString(), ticketID)
	if err != nil {
		return fmt.Errorf("set on_hold: %w", err)
	}
	return nil
}

// ReopenTicket transitions an on_hold ticket back to open, used by
// the recovery loop when an on_hold ticket has aged past the
// configured recovery threshold.
func (s *Store) ReopenTicket(ctx context.Context, ticketID string) error {
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE tickets SET state = 'open', updated_at = ? WHERE id = ? AND state = 'on_hold'`,
		nowString(), ticketID)
	if err != nil {
		return fmt.Errorf("reopen ticket: %w", err)
	}
	return nil
}

func (s *Store) SetDependencyStatus(ctx context.Context, ticketID string, status ticket.DependencyStatus) error {
	_, err := s.db.conn.ExecContext(ctx, `
		UPDATE tickets SET dependency_status = ?, updated_at = ? WHERE id = ?`,
		string(status), nowString(), ticketID)
	if err != nil {
		return fmt.Errorf("set dependency status: %w", err)
	}
	return nil
}

// --- Dependencies -------------------------------------------------------

func (s *Store) AddDependency(ctx context.Context, d *ticket.Dependency) error {
	if d.Type == "" {
		d.Type = ticket.DependencyBlocks
	}
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO ticket_dependencies (project_id, ticket_id, depends_on, dependency_type, created_at)
		VALUES (?, ?, ?, ?, ?)`, d.ProjectID, d.TicketID, d.DependsOn, d.Type, nowString())
	if err != nil {
		return fmt.Errorf("add dependency: %w", err)
	}
	return nil
}

func (s *Store) ListDependencies(ctx context.Context, projectID string) ([]ticket.Dependency, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT project_id, ticket_id, depends_on, dependency_type, created_at
		FROM ticket_dependencies WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func (s *Store) ListDependenciesFor(ctx context.Context, ticketID string) ([]ticket.Dependency, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT project_id, ticket_id, depends_on, dependency_type, created_at
		FROM ticket_dependencies WHERE ticket_id = ?`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies for ticket: %w", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func scanDependencies(rows *sql.Rows) ([]ticket.Dependency, error) {
	var out []ticket.Dependency
	for rows.Next() {
		var d ticket.Dependency
		var createdAt string
		if err := rows.Scan(&d.ProjectID, &d.TicketID, &d.DependsOn, &d.Type, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CountOpenBlockers(ctx context.Context, ticketID string) (int, error) {
	var n int
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ticket_dependencies d
		JOIN tickets t ON t.id = d.depends_on
		WHERE d.ticket_id = ? AND d.dependency_type = 'blocks' AND t.state != 'closed'`, ticketID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count open blockers: %w", err)
	}
	return n, nil
}

func (s *Store) TicketExists(ctx context.Context, ticketID string) (bool, error) {
	var n int
	row := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE id = ?`, ticketID)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("check ticket existence: %w", err)
	}
	return n > 0, nil
}

// --- Comments and events ------------------------------------------------

func (s *Store) AddComment(ctx context.Context, c *ticket.Comment) error {
	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO comments (ticket_id, worker_type, worker_id, stage, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, c.TicketID, c.WorkerType, c.WorkerID, c.Stage, c.Content, nowString())
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	id, _ := res.LastInsertId()
	c.ID = id
	return nil
}

func (s *Store) ListComments(ctx context.Context, ticketID string) ([]ticket.Comment, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, ticket_id, worker_type, worker_id, stage, content, created_at
		FROM comments WHERE ticket_id = ? ORDER BY created_at ASC`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []ticket.Comment
	for rows.Next() {
		var c ticket.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TicketID, &c.WorkerType, &c.WorkerID, &c.Stage, &c.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AddEvent(ctx context.Context, e *ticket.Event) error {
	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO events (project_id, ticket_id, type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`, e.ProjectID, e.TicketID, e.Type, e.Payload, nowString())
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	id, _ := res.LastInsertId()
	e.ID = id
	return nil
}

// --- Config ---------------------------------------------------------------

func (s *Store) GetConfigValue(ctx context.Context, key string) (string, bool, error) {
	var v string
	row := s.db.conn.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key)
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get config value: %w", err)
	}
	return v, true, nil
}

func (s *Store) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set config value: %w", err)
	}
	return nil
}
