package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richinex/firemaker/internal/parse"
	"github.com/richinex/firemaker/model"
	"github.com/richinex/firemaker/skills"
	"github.com/richinex/firemaker/storage"
	"github.com/richinex/firemaker/window"
)

var testRect = model.WindowRect{Width: 1280, Height: 720}

// scriptedSkills answers from per-call queues; an exhausted queue repeats its
// last entry.
type scriptedSkills struct {
	tool    []error
	fuel    []error
	use     []model.SkillResult
	verify  []error
	verdict []bool
	capture error
	move    model.SkillResult

	finds, uses, verifies, moves int
	calls                        []string
}

func (s *scriptedSkills) CaptureFrame(context.Context) (*model.Frame, error) {
	s.calls = append(s.calls, "capture")
	if s.capture != nil {
		return nil, s.capture
	}
	return &model.Frame{Rect: testRect}, nil
}

func (s *scriptedSkills) FindItem(_ context.Context, _ *model.Frame, name string) (model.GroundedPoint, error) {
	s.calls = append(s.calls, "find:"+name)
	s.finds++
	var queue *[]error
	if name == "tinderbox" {
		queue = &s.tool
	} else {
		queue = &s.fuel
	}
	if err := next(queue); err != nil {
		return model.GroundedPoint{}, err
	}
	p, _ := model.Ground(testRect, name, 10, 20)
	return p, nil
}

func (s *scriptedSkills) UseItemOnItem(_ context.Context, a, b string) model.SkillResult {
	s.calls = append(s.calls, "use")
	s.uses++
	if len(s.use) == 0 {
		return model.Succeeded("used " + a + " on " + b)
	}
	r := s.use[0]
	if len(s.use) > 1 {
		s.use = s.use[1:]
	}
	return r
}

func (s *scriptedSkills) VerifyOutcome(context.Context, string) (bool, error) {
	s.calls = append(s.calls, "verify")
	s.verifies++
	if err := next(&s.verify); err != nil {
		return false, err
	}
	if len(s.verdict) == 0 {
		return true, nil
	}
	v := s.verdict[0]
	if len(s.verdict) > 1 {
		s.verdict = s.verdict[1:]
	}
	return v, nil
}

func (s *scriptedSkills) MoveAway(context.Context, float64, float64) model.SkillResult {
	s.calls = append(s.calls, "move")
	s.moves++
	if s.move.Err != nil {
		return s.move
	}
	return model.Succeeded("stepped away")
}

func next(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return err
}

type fakeLocator struct {
	errs        []error
	resolves    int
	forced      []bool
	invalidated int
}

func (l *fakeLocator) Resolve(_ context.Context, force bool) (model.WindowRect, error) {
	l.resolves++
	l.forced = append(l.forced, force)
	if err := next(&l.errs); err != nil {
		return model.WindowRect{}, err
	}
	return testRect, nil
}

func (l *fakeLocator) Invalidate() { l.invalidated++ }

func newTestController(t *testing.T, s Skills, l Locator, mutate ...func(*Builder)) *Controller {
	t.Helper()
	b := NewBuilder(s, l).Logger(zap.NewNop())
	for _, m := range mutate {
		m(b)
	}
	c, err := b.Build()
	require.NoError(t, err)
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	c.newID = func() string { return "run-1" }
	return c
}

func states(trace []Transition) []State {
	out := []State{trace[0].From}
	for _, t := range trace {
		out = append(out, t.To)
	}
	return out
}

func absent(item string) error {
	return fmt.Errorf("find %s: %w: no %s reported", item, parse.ErrAbsent, item)
}

func TestHappyPathSingleFire(t *testing.T) {
	s := &scriptedSkills{}
	c := newTestController(t, s, &fakeLocator{}, func(b *Builder) { b.TestMode() })

	res := c.Run(context.Background())
	require.Equal(t, OutcomeDone, res.Outcome, res.Detail)
	assert.Equal(t, 1, res.FiresMade)
	assert.Equal(t, 0, res.ExitCode())
	assert.Equal(t, []State{
		StateIdle, StateLocating, StatePerceivingInventory, StateActing,
		StateVerifying, StateAdvancing, StateDone,
	}, states(res.Trace))
	assert.Equal(t, 1, s.moves)
	assert.Equal(t, "run-1", res.RunID)
}

func TestVerificationFailureRecovers(t *testing.T) {
	// "No fire visible" parses to false.
	s := &scriptedSkills{verdict: []bool{false, true}}
	l := &fakeLocator{}
	c := newTestController(t, s, l, func(b *Builder) { b.Target(1) })

	res := c.Run(context.Background())
	require.Equal(t, OutcomeDone, res.Outcome)

	var recovering Transition
	for _, tr := range res.Trace {
		if tr.From == StateVerifying {
			recovering = tr
			break
		}
	}
	assert.Equal(t, StateRecovering, recovering.To)
	assert.Equal(t, 0, recovering.FiresMade)
	assert.Contains(t, recovering.Reason, ErrOutcomeNotObserved.Error())

	var relocate Transition
	for _, tr := range res.Trace {
		if tr.From == StateRecovering {
			relocate = tr
		}
	}
	assert.Equal(t, StateLocating, relocate.To)
	assert.Equal(t, 1, relocate.ConsecutiveFailures)
	assert.Equal(t, 1, l.invalidated)
	assert.Equal(t, 1, res.FiresMade)
}

func TestConsecutiveFuelAbsenceEndsRun(t *testing.T) {
	const fires = 2
	fuel := []error{nil, nil, absent("logs"), absent("logs")}
	s := &scriptedSkills{fuel: fuel}
	c := newTestController(t, s, &fakeLocator{})

	res := c.Run(context.Background())
	require.Equal(t, OutcomeDone, res.Outcome, res.Detail)
	assert.Equal(t, fires, res.FiresMade)
	assert.Contains(t, res.Detail, "inventory empty")
	assert.Equal(t, 0, res.ExitCode())
}

func TestSingleFuelAbsenceIsRetried(t *testing.T) {
	s := &scriptedSkills{fuel: []error{absent("logs"), nil}}
	c := newTestController(t, s, &fakeLocator{}, func(b *Builder) { b.Target(1) })

	res := c.Run(context.Background())
	require.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, 1, res.FiresMade)
	assert.Contains(t, states(res.Trace), StateRecovering)
}

func TestParseFailureOfFuelDoesNotCountAsEmpty(t *testing.T) {
	garbled := fmt.Errorf("find logs: %w", parse.ErrParseFailure)
	s := &scriptedSkills{fuel: []error{garbled}}
	c := newTestController(t, s, &fakeLocator{})

	res := c.Run(context.Background())
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrTooManyFailures)
	assert.ErrorIs(t, res.Err, parse.ErrParseFailure)
}

func TestAbsentToolIsAFailure(t *testing.T) {
	s := &scriptedSkills{tool: []error{absent("tinderbox")}}
	c := newTestController(t, s, &fakeLocator{})

	res := c.Run(context.Background())
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, 0, s.uses)
}

func TestNoWindowAbortsImmediately(t *testing.T) {
	s := &scriptedSkills{}
	l := &fakeLocator{errs: []error{fmt.Errorf("%w: no window titled %q", window.ErrWindowNotFound, "RuneLite")}}
	c := newTestController(t, s, l)

	res := c.Run(context.Background())
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, window.ErrWindowNotFound)
	assert.Equal(t, 0, res.FiresMade)
	assert.NotEqual(t, 0, res.ExitCode())
	assert.Equal(t, []State{StateIdle, StateLocating, StateAborted}, states(res.Trace))
	assert.Empty(t, s.calls)
}

func TestLostWindowAfterResolveRecovers(t *testing.T) {
	s := &scriptedSkills{capture: nil}
	l := &fakeLocator{errs: []error{nil, window.ErrWindowNotFound, nil}}
	s.verdict = []bool{false, true}
	c := newTestController(t, s, l, func(b *Builder) { b.Target(1) })

	res := c.Run(context.Background())
	require.Equal(t, OutcomeDone, res.Outcome, res.Detail)
	assert.Equal(t, 3, l.resolves)
}

func TestFailureCeiling(t *testing.T) {
	for _, ceiling := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprint(ceiling), func(t *testing.T) {
			s := &scriptedSkills{verdict: []bool{false}}
			cfg := DefaultConfig()
			cfg.MaxConsecutiveFailures = ceiling
			c := newTestController(t, s, &fakeLocator{}, func(b *Builder) { b.Config(cfg) })

			res := c.Run(context.Background())
			assert.Equal(t, OutcomeAborted, res.Outcome)
			assert.Equal(t, ceiling, s.verifies)
			for _, tr := range res.Trace {
				assert.LessOrEqual(t, tr.ConsecutiveFailures, ceiling)
			}
			last := res.Trace[len(res.Trace)-1]
			assert.Equal(t, StateRecovering, last.From)
			assert.Equal(t, StateAborted, last.To)
			assert.Equal(t, ceiling, last.ConsecutiveFailures)
		})
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	s := &scriptedSkills{verdict: []bool{false, false, true, false, false, true}}
	c := newTestController(t, s, &fakeLocator{}, func(b *Builder) { b.Target(2) })

	res := c.Run(context.Background())
	require.Equal(t, OutcomeDone, res.Outcome, res.Detail)
	assert.Equal(t, 2, res.FiresMade)
}

func TestFatalInputAborts(t *testing.T) {
	fatal := fmt.Errorf("%w: click tinderbox: no display", skills.ErrFatal)
	s := &scriptedSkills{use: []model.SkillResult{model.Failed(fatal)}}
	c := newTestController(t, s, &fakeLocator{})

	res := c.Run(context.Background())
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, skills.ErrFatal)
	assert.Equal(t, 1, s.uses, "fatal errors are not retried")
	assert.NotContains(t, states(res.Trace), StateRecovering)
}

func TestInterruptAtBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &scriptedSkills{}
	c := newTestController(t, s, &fakeLocator{})
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return nil
	}

	res := c.Run(ctx)
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, "interrupted", res.Detail)
	assert.ErrorIs(t, res.Err, ErrInterrupted)
	assert.Equal(t, 130, res.ExitCode())
	// The settle wait cancelled the run; the verifying step still completed
	// and the next boundary stopped it before any fire was counted.
	assert.Equal(t, StateAdvancing, res.Trace[len(res.Trace)-1].From)
	assert.Equal(t, 0, res.FiresMade)
}

func TestRefreshWindowForcesFirstResolve(t *testing.T) {
	l := &fakeLocator{}
	c := newTestController(t, &scriptedSkills{}, l, func(b *Builder) { b.TestMode().RefreshWindow(true) })

	res := c.Run(context.Background())
	require.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, []bool{true}, l.forced)
}

func TestJournalRecordsRun(t *testing.T) {
	journal := storage.NewInMemoryStorage()
	c := newTestController(t, &scriptedSkills{}, &fakeLocator{}, func(b *Builder) {
		b.TestMode().Journal(journal)
	})

	res := c.Run(context.Background())
	require.Equal(t, OutcomeDone, res.Outcome)

	runs, err := journal.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "done", runs[0].Outcome)
	assert.Equal(t, 1, runs[0].FiresMade)

	transitions, err := journal.Transitions(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, transitions, len(res.Trace))
	assert.Equal(t, "Idle", transitions[0].From)
}

type brokenJournal struct{}

func (brokenJournal) StartRun(context.Context, storage.RunRecord) error {
	return errors.New("disk full")
}
func (brokenJournal) RecordTransition(context.Context, storage.TransitionRecord) error { return nil }
func (brokenJournal) FinishRun(context.Context, storage.RunRecord) error { return nil }

func TestBrokenJournalDoesNotStopRun(t *testing.T) {
	c := newTestController(t, &scriptedSkills{}, &fakeLocator{}, func(b *Builder) {
		b.TestMode().Journal(brokenJournal{})
	})
	res := c.Run(context.Background())
	assert.Equal(t, OutcomeDone, res.Outcome)
}

func TestBuildValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveFailures = 0
	_, err := NewBuilder(&scriptedSkills{}, &fakeLocator{}).Config(cfg).Build()
	assert.Error(t, err)

	_, err = NewBuilder(nil, &fakeLocator{}).Build()
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.MaxConsecutiveFailures = 2
	cfg.EmptyConfirmations = 3
	_, err = NewBuilder(&scriptedSkills{}, &fakeLocator{}).Config(cfg).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed max consecutive failures")

	cfg.EmptyConfirmations = 2
	_, err = NewBuilder(&scriptedSkills{}, &fakeLocator{}).Config(cfg).Build()
	assert.NoError(t, err)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "PerceivingInventory", StatePerceivingInventory.String())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateRecovering.Terminal())
}
