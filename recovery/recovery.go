// Package recovery implements the periodic self-healing sweep: ready
// tickets missing from their queue get enqueued, stalled claims are
// released, and aged on_hold tickets are recovered. Ported from the
// original's database/recovery.rs and the teacher's background.go
// ticker-interval loop shape.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arctek/conductor/queue"
	"github.com/arctek/conductor/ticket"
)

// Stats tallies one sweep's actions, mirroring the original's
// RecoveryStats.
type Stats struct {
	TicketsEnqueued        int
	ClaimedTicketsReleased int
	OnHoldTicketsRecovered int
}

// Loop periodically sweeps every project for tickets needing recovery.
type Loop struct {
	store        ticket.Store
	queues       *queue.Manager
	logger       *slog.Logger
	interval     time.Duration
	stallTimeout time.Duration
	onHoldMaxAge time.Duration
	projectIDs   func(context.Context) ([]string, error)

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLoop constructs a recovery loop. projectIDs supplies the set of
// projects to sweep each tick (e.g. orchestration.Orchestrator.ProjectIDs).
func NewLoop(store ticket.Store, queues *queue.Manager, logger *slog.Logger, interval, stallTimeout, onHoldMaxAge time.Duration, projectIDs func(context.Context) ([]string, error)) *Loop {
	return &Loop{
		store:        store,
		queues:       queues,
		logger:       logger,
		interval:     interval,
		stallTimeout: stallTimeout,
		onHoldMaxAge: onHoldMaxAge,
		projectIDs:   projectIDs,
	}
}

// Start runs the sweep immediately, then on every tick, until Stop is
// called or ctx is cancelled.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.stopCh != nil {
		l.mu.Unlock()
		return
	}
	l.stopCh = make(chan struct{})
	stopCh := l.stopCh
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runLoop(ctx, stopCh)
	}()
}

// Stop signals the loop to exit and waits for it to do so.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopCh == nil {
		l.mu.Unlock()
		return
	}
	close(l.stopCh)
	l.stopCh = nil
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Loop) runLoop(ctx context.Context, stopCh chan struct{}) {
	if stats, err := l.Sweep(ctx); err != nil {
		l.logger.Error("recovery sweep failed", "error", err)
	} else {
		l.logReport(stats)
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			stats, err := l.Sweep(ctx)
			if err != nil {
				l.logger.Error("recovery sweep failed", "error", err)
				continue
			}
			l.logReport(stats)
		}
	}
}

func (l *Loop) logReport(s Stats) {
	if s.TicketsEnqueued == 0 && s.ClaimedTicketsReleased == 0 && s.OnHoldTicketsRecovered == 0 {
		return
	}
	l.logger.Info("recovery sweep completed",
		"tickets_enqueued", s.TicketsEnqueued,
		"claims_released", s.ClaimedTicketsReleased,
		"on_hold_recovered", s.OnHoldTicketsRecovered)
}

// Sweep runs one recovery pass across every project now, independent
// of the ticker — used both by the loop and by an operator-triggered
// manual recovery operation.
func (l *Loop) Sweep(ctx context.Context) (Stats, error) {
	var stats Stats

	projects, err := l.projectIDs(ctx)
	if err != nil {
		return stats, err
	}

	stallCutoff := time.Now().Add(-l.stallTimeout).Unix()
	onHoldCutoff := time.Now().Add(-l.onHoldMaxAge).Unix()

	for _, projectID := range projects {
		ready, err := l.store.ListOpenUnclaimedReady(ctx, projectID)
		if err != nil {
			return stats, err
		}
		for _, t := range ready {
			alreadyQueued := false
			for _, task := range l.queues.Tasks(projectID, t.CurrentStageName()) {
				if task.TicketID == t.ID {
					alreadyQueued = true
					break
				}
			}
			if !alreadyQueued {
				l.queues.Add(projectID, t.CurrentStageName(), t.ID)
				stats.TicketsEnqueued++
			}
		}

		stalled, err := l.store.ListStalledClaims(ctx, stallCutoff)
		if err != nil {
			return stats, err
		}
		for _, t := range stalled {
			if t.ProjectID != projectID {
				continue
			}
			if err := l.store.ReleaseClaim(ctx, t.ID); err != nil {
				l.logger.Error("release stalled claim", "ticket_id", t.ID, "error", err)
				continue
			}
			l.queues.Add(projectID, t.CurrentStageName(), t.ID)
			stats.ClaimedTicketsReleased++
		}

		aged, err := l.store.ListAgedOnHold(ctx, onHoldCutoff)
		if err != nil {
			return stats, err
		}
		for _, t := range aged {
			if t.ProjectID != projectID {
				continue
			}
			if err := l.recoverOnHold(ctx, &t); err != nil {
				l.logger.Error("recover on_hold ticket", "ticket_id", t.ID, "error", err)
				continue
			}
			stats.OnHoldTicketsRecovered++
		}
	}
	return stats, nil
}

// recoverOnHold reopens an aged on_hold ticket and resubmits it if its
// dependencies are ready — idempotent since it is guarded by the
// on_hold precondition the query already filtered on.
func (l *Loop) recoverOnHold(ctx context.Context, t *ticket.Ticket) error {
	if err := l.store.ReopenTicket(ctx, t.ID); err != nil {
		return err
	}
	if t.DependencyStatus != ticket.DependencyReady {
		return nil // still blocked on an open dependency; stays open-but-blocked
	}
	l.queues.Add(t.ProjectID, t.CurrentStageName(), t.ID)
	return nil
}
