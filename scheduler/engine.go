// Package scheduler runs durable follow-up actions: automatic unbans, timeout
// expiries, role restorations and temp-channel teardowns. Actions live in the
// scheduled_actions table keyed by due time, so a restarted process simply
// resumes polling.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"warden-bot/model"
	"warden-bot/utils/database/actions"
	"warden-bot/utils/database/cases"
)

// ExecutorFunc performs the platform-side effect of one action kind. It is
// supplied by the command layer, which alone knows how to call the chat
// platform. Executors must be idempotent: finding the target already in the
// desired state is success, not an error.
type ExecutorFunc func(ctx context.Context, c *model.Case, a *model.ScheduledAction) error

// Engine claims due actions exactly once and drives them through
// pending -> claimed -> {done | pending(retry) | failed_permanently},
// mirroring the outcome onto the associated case.
type Engine struct {
	cases   *cases.Store
	actions *actions.Store
	cfg     model.SchedulerConfig

	mu        sync.RWMutex
	executors map[model.ActionKind]ExecutorFunc

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an engine. Zero config fields fall back to workable defaults.
func New(caseStore *cases.Store, actionStore *actions.Store, cfg model.SchedulerConfig) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.ClaimStaleness <= 0 {
		cfg.ClaimStaleness = 5 * time.Minute
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Engine{
		cases:     caseStore,
		actions:   actionStore,
		cfg:       cfg,
		executors: make(map[model.ActionKind]ExecutorFunc),
		done:      make(chan struct{}),
	}
}

// Register installs the executor for one action kind, replacing any previous
// registration.
func (e *Engine) Register(kind model.ActionKind, fn ExecutorFunc) {
	e.mu.Lock()
	e.executors[kind] = fn
	e.mu.Unlock()
}

// Schedule records a follow-up action for a case.
func (e *Engine) Schedule(c *model.Case, kind model.ActionKind, dueAt time.Time) (int64, error) {
	return e.actions.Schedule(model.ScheduledAction{
		CaseID:  c.ID,
		GuildID: c.GuildID,
		Kind:    kind,
		DueAt:   dueAt.Unix(),
	})
}

// ScheduleTarget records a case-less action against an arbitrary target,
// such as a temp channel awaiting teardown.
func (e *Engine) ScheduleTarget(guildID string, kind model.ActionKind, targetID string, dueAt time.Time) (int64, error) {
	return e.actions.Schedule(model.ScheduledAction{
		GuildID:  guildID,
		Kind:     kind,
		TargetID: targetID,
		DueAt:    dueAt.Unix(),
	})
}

// Start begins the polling loop.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Tick(time.Now())
			case <-e.done:
				return
			}
		}
	}()
}

// Stop terminates the polling loop and waits for an in-flight tick.
func (e *Engine) Stop() {
	log.Println("Stopping scheduled action engine...")
	close(e.done)
	e.wg.Wait()
	log.Println("Scheduled action engine stopped.")
}

// Tick runs one poll pass. It is safe to call concurrently with itself (a
// slow previous tick still running when the next fires): the per-row claim
// update guarantees each action executes at most once.
func (e *Engine) Tick(now time.Time) {
	reclaimed, err := e.actions.ReclaimStale(now, e.cfg.ClaimStaleness)
	if err != nil {
		log.Printf("Error reclaiming stale actions: %v", err)
	} else if reclaimed > 0 {
		log.Printf("Reclaimed %d stale scheduled actions", reclaimed)
	}

	due, err := e.actions.DuePending(now)
	if err != nil {
		log.Printf("Error selecting due actions: %v", err)
		return
	}

	for _, action := range due {
		claimed, err := e.actions.Claim(action.ID, now)
		if err != nil {
			log.Printf("Error claiming action %d: %v", action.ID, err)
			continue
		}
		if !claimed {
			continue // another tick got it first
		}
		e.execute(now, action)
	}
}

func (e *Engine) execute(now time.Time, action model.ScheduledAction) {
	e.mu.RLock()
	fn, ok := e.executors[action.Kind]
	e.mu.RUnlock()
	if !ok {
		e.fail(action, fmt.Sprintf("no executor registered for kind %s", action.Kind))
		return
	}

	var c *model.Case
	if action.CaseID != "" {
		var err error
		c, err = e.cases.GetByID(action.CaseID)
		if err != nil {
			e.fail(action, fmt.Sprintf("case lookup failed: %v", err))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ExecutionTimeout)
	err := fn(ctx, c, &action)
	cancel()

	switch {
	case err == nil:
		if err := e.actions.MarkDone(action.ID); err != nil {
			log.Printf("Error marking action %d done: %v", action.ID, err)
		}
		e.resolveCase(action, model.CaseResolved)

	case isTransient(err):
		attempts := action.AttemptCount + 1
		if attempts >= e.cfg.MaxAttempts {
			e.fail(action, fmt.Sprintf("%v: %v", model.ErrRetryBudgetExhausted, err))
			return
		}
		delay := e.backoff(attempts)
		log.Printf("Action %d failed transiently (attempt %d/%d), retrying in %s: %v",
			action.ID, attempts, e.cfg.MaxAttempts, delay, err)
		if err := e.actions.Retry(action.ID, now.Add(delay), attempts, err.Error()); err != nil {
			log.Printf("Error rescheduling action %d: %v", action.ID, err)
		}

	default:
		e.fail(action, err.Error())
	}
}

func (e *Engine) fail(action model.ScheduledAction, reason string) {
	log.Printf("Action %d failed permanently: %s", action.ID, reason)
	if err := e.actions.MarkFailed(action.ID, reason); err != nil {
		log.Printf("Error marking action %d failed: %v", action.ID, err)
	}
	e.resolveCase(action, model.CaseFailed)
}

func (e *Engine) resolveCase(action model.ScheduledAction, outcome model.CaseStatus) {
	if action.CaseID == "" {
		return
	}
	err := e.cases.ResolveCase(action.CaseID, outcome)
	if err != nil && !errors.Is(err, model.ErrNotFound) && !errors.Is(err, model.ErrConflict) {
		log.Printf("Error resolving case %s as %s: %v", action.CaseID, outcome, err)
	}
}

// backoff is exponential in the attempt count, capped.
func (e *Engine) backoff(attempts int) time.Duration {
	delay := e.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= e.cfg.BackoffCap {
			return e.cfg.BackoffCap
		}
	}
	if delay > e.cfg.BackoffCap {
		delay = e.cfg.BackoffCap
	}
	return delay
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return model.IsTransient(err)
}
