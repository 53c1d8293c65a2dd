// Firemaking state machine.
//
// Information Hiding:
// - Transition rules and the failure ceiling
// - Inventory-empty inference from fuel absence verdicts
// - Journal bookkeeping for each run
//
// One transition runs to completion before the next begins. Cancellation is
// checked at every state boundary; skills finish any click already started.

package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richinex/firemaker/internal/parse"
	"github.com/richinex/firemaker/model"
	"github.com/richinex/firemaker/skills"
	"github.com/richinex/firemaker/storage"
	"github.com/richinex/firemaker/window"
)

// Skills are the perception and action primitives the controller composes.
type Skills interface {
	CaptureFrame(ctx context.Context) (*model.Frame, error)
	FindItem(ctx context.Context, frame *model.Frame, name string) (model.GroundedPoint, error)
	UseItemOnItem(ctx context.Context, a, b string) model.SkillResult
	VerifyOutcome(ctx context.Context, expected string) (bool, error)
	MoveAway(ctx context.Context, fracX, fracY float64) model.SkillResult
}

// Locator resolves and invalidates the cached game window.
type Locator interface {
	Resolve(ctx context.Context, force bool) (model.WindowRect, error)
	Invalidate()
}

// Controller drives one firemaking run at a time.
type Controller struct {
	skills  Skills
	windows Locator
	cfg     Config
	journal storage.Journal
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

func newController(s Skills, w Locator, cfg Config, journal storage.Journal, logger *zap.Logger) *Controller {
	return &Controller{
		skills:  s,
		windows: w,
		cfg:     cfg,
		journal: journal,
		logger:  logger.Named("agent"),
		sleep:   sleepContext,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Run executes the task until Done or Aborted.
func (c *Controller) Run(ctx context.Context) Result {
	start := c.now()
	runID := c.newID()
	st := &TaskState{refresh: c.cfg.RefreshWindow}
	var trace []Transition

	c.startJournal(ctx, runID, start)
	c.logger.Info("run started",
		zap.String("run_id", runID),
		zap.Int("target", c.cfg.Target),
		zap.String("tool", c.cfg.ToolItem),
		zap.String("fuel", c.cfg.FuelItem),
	)

	state := StateIdle
	reason := ""
	for !state.Terminal() {
		var next State
		if ctx.Err() != nil {
			next, reason = c.interrupted(st, ctx.Err())
		} else {
			next, reason = c.step(ctx, st, state)
		}
		t := Transition{
			From:                state,
			To:                  next,
			Reason:              reason,
			FiresMade:           st.FiresMade,
			ConsecutiveFailures: st.ConsecutiveFailures,
			At:                  c.now(),
		}
		trace = append(trace, t)
		c.record(ctx, runID, len(trace), t)
		state = next
	}

	result := Result{
		RunID:     runID,
		FiresMade: st.FiresMade,
		Detail:    reason,
		Duration:  c.now().Sub(start),
		Trace:     trace,
	}
	if state == StateDone {
		result.Outcome = OutcomeDone
		c.logger.Info("run finished", zap.Int("fires_made", st.FiresMade), zap.String("detail", reason))
	} else {
		result.Outcome = OutcomeAborted
		result.Err = st.lastErr
		c.logger.Error("run aborted",
			zap.Int("fires_made", st.FiresMade),
			zap.String("detail", reason),
			zap.Error(st.lastErr),
		)
	}
	c.finishJournal(ctx, runID, start, result)
	return result
}

// step performs the work of state and returns the next state with a reason.
func (c *Controller) step(ctx context.Context, st *TaskState, state State) (State, string) {
	switch state {
	case StateIdle:
		return StateLocating, "start"

	case StateLocating:
		force := st.refresh
		st.refresh = false
		rect, err := c.windows.Resolve(ctx, force)
		if err != nil {
			if errors.Is(err, window.ErrWindowNotFound) && !st.Resolved {
				st.lastErr = err
				st.LastFailure = err.Error()
				return StateAborted, err.Error()
			}
			return c.fail(ctx, st, err)
		}
		st.Resolved = true
		return StatePerceivingInventory, "window " + rect.String()

	case StatePerceivingInventory:
		frame, err := c.skills.CaptureFrame(ctx)
		if err != nil {
			return c.fail(ctx, st, err)
		}
		if _, err := c.skills.FindItem(ctx, frame, c.cfg.ToolItem); err != nil {
			return c.fail(ctx, st, err)
		}
		if _, err := c.skills.FindItem(ctx, frame, c.cfg.FuelItem); err != nil {
			if errors.Is(err, parse.ErrAbsent) {
				st.FuelMisses++
				if st.FuelMisses >= c.cfg.EmptyConfirmations {
					return StateDone, fmt.Sprintf("inventory empty: no %s after %d checks", c.cfg.FuelItem, st.FuelMisses)
				}
			}
			return c.fail(ctx, st, err)
		}
		st.FuelMisses = 0
		return StateActing, fmt.Sprintf("found %s and %s", c.cfg.ToolItem, c.cfg.FuelItem)

	case StateActing:
		res := c.skills.UseItemOnItem(ctx, c.cfg.ToolItem, c.cfg.FuelItem)
		if !res.Success {
			return c.fail(ctx, st, resultErr(res))
		}
		return StateVerifying, res.Detail

	case StateVerifying:
		if err := c.sleep(ctx, c.cfg.SettleDuration); err != nil {
			return c.fail(ctx, st, err)
		}
		ok, err := c.skills.VerifyOutcome(ctx, c.cfg.ExpectedOutcome)
		if err != nil {
			return c.fail(ctx, st, err)
		}
		if !ok {
			return c.fail(ctx, st, fmt.Errorf("%w: %s", ErrOutcomeNotObserved, c.cfg.ExpectedOutcome))
		}
		return StateAdvancing, "verified: " + c.cfg.ExpectedOutcome

	case StateAdvancing:
		st.FiresMade++
		st.ConsecutiveFailures = 0
		c.logger.Info("fire made", zap.Int("fires_made", st.FiresMade))

		if res := c.skills.MoveAway(ctx, c.cfg.StepAwayX, c.cfg.StepAwayY); !res.Success {
			if errors.Is(res.Err, skills.ErrFatal) {
				return c.fail(ctx, st, res.Err)
			}
			c.logger.Warn("step away failed", zap.String("detail", res.Detail))
		}
		if c.cfg.Target > 0 && st.FiresMade >= c.cfg.Target {
			return StateDone, fmt.Sprintf("target of %d reached", c.cfg.Target)
		}
		if err := c.sleep(ctx, c.cfg.BetweenFires); err != nil {
			return c.fail(ctx, st, err)
		}
		return StatePerceivingInventory, "next fire"

	case StateRecovering:
		st.ConsecutiveFailures++
		if st.ConsecutiveFailures >= c.cfg.MaxConsecutiveFailures {
			st.lastErr = fmt.Errorf("%w (%d): %w", ErrTooManyFailures, st.ConsecutiveFailures, st.lastErr)
			return StateAborted, fmt.Sprintf("%d consecutive failures, last: %s", st.ConsecutiveFailures, st.LastFailure)
		}
		c.windows.Invalidate()
		if err := c.sleep(ctx, c.cfg.RecoveryPause); err != nil {
			return c.interrupted(st, err)
		}
		return StateLocating, fmt.Sprintf("retry %d/%d after: %s",
			st.ConsecutiveFailures, c.cfg.MaxConsecutiveFailures-1, st.LastFailure)

	default:
		st.lastErr = fmt.Errorf("no transition from %s", state)
		return StateAborted, st.lastErr.Error()
	}
}

// fail routes a failure to Recovering, or to Aborted when it is fatal or the
// run was interrupted.
func (c *Controller) fail(ctx context.Context, st *TaskState, err error) (State, string) {
	if ctx.Err() != nil {
		return c.interrupted(st, ctx.Err())
	}
	st.lastErr = err
	st.LastFailure = err.Error()
	if errors.Is(err, skills.ErrFatal) {
		return StateAborted, "fatal: " + err.Error()
	}
	return StateRecovering, err.Error()
}

func (c *Controller) interrupted(st *TaskState, cause error) (State, string) {
	st.lastErr = fmt.Errorf("%w: %w", ErrInterrupted, cause)
	st.LastFailure = ErrInterrupted.Error()
	return StateAborted, ErrInterrupted.Error()
}

func resultErr(res model.SkillResult) error {
	if res.Err != nil {
		return res.Err
	}
	return errors.New(res.Detail)
}

func (c *Controller) startJournal(ctx context.Context, runID string, start time.Time) {
	if c.journal == nil {
		return
	}
	err := c.journal.StartRun(context.WithoutCancel(ctx), storage.RunRecord{
		ID:        runID,
		StartedAt: start,
		Target:    c.cfg.Target,
	})
	if err != nil {
		c.logger.Warn("journal unavailable", zap.Error(err))
		c.journal = nil
	}
}

func (c *Controller) record(ctx context.Context, runID string, seq int, t Transition) {
	c.logger.Info("transition",
		zap.String("from", t.From.String()),
		zap.String("to", t.To.String()),
		zap.String("reason", t.Reason),
		zap.Int("fires_made", t.FiresMade),
		zap.Int("consecutive_failures", t.ConsecutiveFailures),
	)
	if c.journal == nil {
		return
	}
	err := c.journal.RecordTransition(context.WithoutCancel(ctx), storage.TransitionRecord{
		RunID:               runID,
		Seq:                 seq,
		From:                t.From.String(),
		To:                  t.To.String(),
		Reason:              t.Reason,
		FiresMade:           t.FiresMade,
		ConsecutiveFailures: t.ConsecutiveFailures,
		At:                  t.At,
	})
	if err != nil {
		c.logger.Warn("journal write failed", zap.Error(err))
	}
}

func (c *Controller) finishJournal(ctx context.Context, runID string, start time.Time, r Result) {
	if c.journal == nil {
		return
	}
	err := c.journal.FinishRun(context.WithoutCancel(ctx), storage.RunRecord{
		ID:         runID,
		StartedAt:  start,
		FinishedAt: start.Add(r.Duration),
		Target:     c.cfg.Target,
		FiresMade:  r.FiresMade,
		Outcome:    r.Outcome.String(),
		Detail:     r.Detail,
	})
	if err != nil {
		c.logger.Warn("journal write failed", zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Skills = (*skills.Library)(nil)
var _ Locator = (*window.Locator)(nil)
