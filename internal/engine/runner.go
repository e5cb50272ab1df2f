// Package engine drives one campaign run through its states: open and
// authenticate the session, discover targets page by page, act on each
// unseen target under quota, then replay deferred items once.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kolangzi/naver-automation/internal/governor"
	"github.com/kolangzi/naver-automation/internal/observability"
	"github.com/kolangzi/naver-automation/internal/types"
)

// State is a state of the run machine.
type State string

const (
	StateInit         State = "INIT"
	StateAuthenticate State = "AUTHENTICATING"
	StateDiscover     State = "DISCOVERING"
	StateAct          State = "ACTING"
	StateDrain        State = "DRAINING_DEFERRED"
	StateDone         State = "DONE"
	StateCancelled    State = "CANCELLED"
	StateFatal        State = "FATAL"
)

// ErrFatal wraps every error that aborts a run.
var ErrFatal = errors.New("run aborted")

// retryFailed is recorded for a deferred item that is deferred again.
const retryFailed = "retry failed"

// Opener opens the session of a run. The logger forwards to the run's sink.
type Opener[S Session] func(ctx context.Context, logger *zap.Logger) (S, error)

// Builder creates the campaign for an open session.
type Builder[S Session] func(session S, logger *zap.Logger) (Campaign, error)

// Config holds the per-run parameters.
type Config struct {
	Identity string
	RunCap   int
	DailyCap int
}

// Runner executes runs of one campaign kind.
type Runner[S Session] struct {
	cfg    Config
	open   Opener[S]
	build  Builder[S]
	pacer  *governor.Pacer
	stop   *StopSignal
	sink   observability.Sink
	base   *zap.Logger
	logger *zap.Logger
	now    func() time.Time
}

// Option customizes a Runner.
type Option func(*options)

type options struct {
	stop   *StopSignal
	sink   observability.Sink
	logger *zap.Logger
	now    func() time.Time
}

// WithStop sets the signal that cancels the run.
func WithStop(s *StopSignal) Option { return func(o *options) { o.stop = s } }

// WithSink forwards log lines and progress to a front-end.
func WithSink(s observability.Sink) Option { return func(o *options) { o.sink = s } }

// WithLogger sets the base logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock replaces time.Now in summaries.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New creates a runner.
func New[S Session](cfg Config, open Opener[S], build Builder[S], pacer *governor.Pacer, opts ...Option) *Runner[S] {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.stop == nil {
		o.stop = NewStopSignal()
	}
	base := o.sink.Attach(o.logger)
	return &Runner[S]{
		cfg:    cfg,
		open:   open,
		build:  build,
		pacer:  pacer,
		stop:   o.stop,
		sink:   o.sink,
		base:   base,
		logger: base.Named("engine"),
		now:    o.now,
	}
}

// Stop returns the runner's stop signal.
func (r *Runner[S]) Stop() *StopSignal { return r.stop }

// run is the mutable state of one execution.
type run struct {
	id       string
	state    State
	quota    governor.QuotaState
	targets  []*types.Target
	byID     map[string]*types.Target
	deferred []types.DeferredItem
	attempts int
	replayed int
	depth    int

	// attempted is set before a chain runs.
	attempted map[string]bool
	// pause is cancelled by the stop signal and by the caller's context.
	pause context.Context
}

// Run executes one run to a terminal state. The returned error is non-nil
// only for FATAL and wraps ErrFatal. The summary is always populated.
func (r *Runner[S]) Run(ctx context.Context) (types.Summary, error) {
	rn := &run{
		id:    uuid.NewString(),
		quota: governor.NewQuota(r.cfg.RunCap, r.cfg.DailyCap),
		byID:  make(map[string]*types.Target),
	}
	rn.attempted = make(map[string]bool)
	log := r.logger.With(zap.String("run_id", rn.id))
	started := r.now()

	pause, cancelPause := context.WithCancel(ctx)
	defer cancelPause()
	stopPause := context.AfterFunc(r.stop.Context(), cancelPause)
	defer stopPause()
	rn.pause = pause

	state, campaign, err := r.execute(ctx, rn, log)
	rn.state = state
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFatal, err)
		log.Error("run failed", zap.Error(err))
	}

	sum := r.summarize(rn, started, campaign)
	if err != nil {
		sum.Error = err.Error()
	}
	log.Info("run finished",
		zap.String("state", sum.State),
		zap.Int("discovered", sum.Discovered),
		zap.Int("attempted", sum.Attempted),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("deferred", sum.Deferred))
	return sum, err
}

func (r *Runner[S]) stopped(ctx context.Context) bool {
	return r.stop.Stopped() || ctx.Err() != nil
}

func (r *Runner[S]) enter(rn *run, log *zap.Logger, s State) {
	if rn.state == s {
		return
	}
	rn.state = s
	log.Info("entering state", zap.String("state", string(s)))
}

// execute walks the state machine. The session is closed on every path
// once it is open.
func (r *Runner[S]) execute(ctx context.Context, rn *run, log *zap.Logger) (State, string, error) {
	r.enter(rn, log, StateInit)
	if r.stopped(ctx) {
		return StateCancelled, "", nil
	}

	session, err := r.open(ctx, r.base)
	if err != nil {
		return StateFatal, "", fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close session", zap.Error(err))
		}
	}()

	r.enter(rn, log, StateAuthenticate)
	if r.stopped(ctx) {
		return StateCancelled, "", nil
	}
	if err := session.EnsureAuthenticated(ctx); err != nil {
		if r.stopped(ctx) {
			return StateCancelled, "", nil
		}
		return StateFatal, "", fmt.Errorf("failed to authenticate: %w", err)
	}

	campaign, err := r.build(session, r.base)
	if err != nil {
		return StateFatal, "", fmt.Errorf("failed to build campaign: %w", err)
	}
	name := campaign.Name()
	log = log.With(zap.String("campaign", name))

	r.enter(rn, log, StateDiscover)
	if r.stopped(ctx) {
		return StateCancelled, name, nil
	}
	src, err := campaign.Prepare(ctx)
	if err != nil {
		log.Warn("failed to prepare target source, nothing to act on", zap.Error(err))
	} else if !r.discover(ctx, rn, log, campaign, src) {
		return StateCancelled, name, nil
	}

	r.enter(rn, log, StateDrain)
	if !r.drain(ctx, rn, log, campaign) {
		return StateCancelled, name, nil
	}
	r.enter(rn, log, StateDone)
	return StateDone, name, nil
}

// discover alternates DISCOVERING and ACTING until the list is exhausted,
// discovery fails or the quota is reached. It returns false on stop.
func (r *Runner[S]) discover(ctx context.Context, rn *run, log *zap.Logger, c Campaign, src Source) bool {
	for {
		if r.stopped(ctx) {
			return false
		}
		r.enter(rn, log, StateDiscover)

		found, hasMore, err := src.Collect(ctx)
		if err != nil {
			log.Warn("discovery failed, treating the list as exhausted", zap.Error(err))
			return true
		}
		unseen := rn.admit(found)
		log.Debug("collected targets",
			zap.Int("found", len(found)),
			zap.Int("unseen", len(unseen)),
			zap.Bool("has_more", hasMore),
			zap.Int("depth", rn.depth))

		if len(unseen) == 0 {
			if !hasMore {
				log.Info("no more targets")
				return true
			}
			ok, err := src.Advance(ctx)
			if err != nil || !ok {
				log.Info("list cannot grow further", zap.Error(err))
				return true
			}
			rn.depth++
			continue
		}

		r.enter(rn, log, StateAct)
		cont, reached := r.act(ctx, rn, log, c, src, unseen)
		if !cont {
			return !r.stopped(ctx)
		}
		if reached {
			return true
		}
	}
}

// act runs chains on unseen targets in order. It returns cont=false to
// leave discovery (stop or failed reload) and reached=true when the quota
// stops the pass.
func (r *Runner[S]) act(ctx context.Context, rn *run, log *zap.Logger, c Campaign, src Source, unseen []*types.Target) (cont, reached bool) {
	for _, t := range unseen {
		if r.stopped(ctx) {
			return false, false
		}
		if ok, why := rn.quota.Allow(); !ok {
			log.Info("quota reached", zap.String("reason", why))
			return true, true
		}

		tlog := log.With(zap.String("target", t.Label()))
		rn.attempted[t.ID] = true
		rn.attempts++
		res := c.Act(ctx, t)
		r.apply(rn, tlog, t, res)
		r.progress(rn, src)

		if res.NeedsReload {
			if !r.reload(ctx, rn, tlog, src) {
				return false, false
			}
			if r.stopped(ctx) {
				return false, false
			}
			r.pauseBetween(rn, log)
			// The list reordered; the rest of this page is re-collected.
			return true, false
		}
		r.pauseBetween(rn, log)
	}
	return true, false
}

func (r *Runner[S]) reload(ctx context.Context, rn *run, log *zap.Logger, src Source) bool {
	if err := src.Reload(ctx); err != nil {
		log.Warn("failed to reload list, treating it as exhausted", zap.Error(err))
		return false
	}
	restored := src.RestoreDepth(ctx, rn.depth)
	if restored > rn.depth {
		restored = rn.depth
	}
	if restored < rn.depth {
		log.Info("list depth only partially restored",
			zap.Int("wanted", rn.depth), zap.Int("restored", restored))
	}
	rn.depth = restored
	return true
}

func (r *Runner[S]) pauseBetween(rn *run, log *zap.Logger) {
	if err := r.pacer.BetweenTargets(rn.pause); err != nil {
		return
	}
	if _, err := r.pacer.Idle(rn.pause); err != nil {
		log.Debug("idle pause interrupted")
	}
}

// apply records a chain result on its target.
func (r *Runner[S]) apply(rn *run, log *zap.Logger, t *types.Target, res Result) {
	outcome := res.Outcome
	if outcome == "" {
		outcome = types.OutcomeFailed
	}
	if res.Defer != nil && outcome != types.OutcomeSucceeded {
		outcome = types.OutcomeDeferred
	}
	t.Outcome = outcome
	t.Reason = res.Reason

	if outcome == types.OutcomeSucceeded {
		rn.quota.RecordSuccess()
	}
	if res.Defer != nil {
		item := *res.Defer
		item.Target = *t
		rn.deferred = append(rn.deferred, item)
		log.Info("deferred for one retry", zap.String("step", item.Step))
	}

	fields := []zap.Field{zap.String("outcome", string(outcome))}
	if t.Reason != "" {
		fields = append(fields, zap.String("reason", t.Reason))
	}
	log.Info("target processed", fields...)
}

func (r *Runner[S]) progress(rn *run, src Source) {
	if sized, ok := src.(Sized); ok {
		r.sink.Report(rn.attempts, sized.Total())
		return
	}
	r.sink.Report(rn.quota.RunSuccess, rn.quota.RunCap)
}

// drain replays deferred items once, in the order they were deferred. It
// returns false on stop.
func (r *Runner[S]) drain(ctx context.Context, rn *run, log *zap.Logger, c Campaign) bool {
	if len(rn.deferred) == 0 {
		return true
	}
	log.Info("replaying deferred items", zap.Int("count", len(rn.deferred)))

	for i := range rn.deferred {
		if r.stopped(ctx) {
			return false
		}
		item := &rn.deferred[i]
		t := rn.byID[item.Target.ID]
		tlog := log.With(zap.String("target", item.Target.Label()), zap.String("step", item.Step))

		if item.Counts {
			if ok, why := rn.quota.Allow(); !ok {
				tlog.Info("quota reached, leaving deferred", zap.String("reason", why))
				t.Reason = "not retried: " + why
				continue
			}
		}

		rn.replayed++
		res := c.Retry(ctx, item)
		outcome := res.Outcome
		reason := res.Reason
		if res.Defer != nil || outcome == types.OutcomeDeferred || outcome == "" {
			outcome, reason = types.OutcomeFailed, retryFailed
		}
		if outcome == types.OutcomeSucceeded && item.Counts {
			rn.quota.RecordSuccess()
		}

		if item.Counts {
			t.Outcome, t.Reason = outcome, reason
		} else {
			// The primary chain already succeeded; only annotate.
			t.Reason = item.Step + " " + string(outcome)
			if reason != "" {
				t.Reason += ": " + reason
			}
		}
		tlog.Info("deferred item replayed", zap.String("outcome", string(outcome)), zap.String("reason", reason))

		if i < len(rn.deferred)-1 {
			r.pauseBetween(rn, log)
		}
	}
	return true
}

// admit records newly seen targets in discovery order and returns the
// found targets that were never attempted. An attempted id is never
// returned again, even when it reappears after a reload.
func (rn *run) admit(found []types.Target) []*types.Target {
	var unseen []*types.Target
	batch := make(map[string]bool, len(found))
	for _, f := range found {
		if f.ID == "" || batch[f.ID] {
			continue
		}
		batch[f.ID] = true
		t, ok := rn.byID[f.ID]
		if !ok {
			t = &types.Target{}
			*t = f
			t.Outcome = types.OutcomePending
			t.Depth = rn.depth
			rn.byID[t.ID] = t
			rn.targets = append(rn.targets, t)
		}
		if !rn.attempted[t.ID] {
			unseen = append(unseen, t)
		}
	}
	return unseen
}

func (r *Runner[S]) summarize(rn *run, started time.Time, campaign string) types.Summary {
	sum := types.Summary{
		RunID:      rn.id,
		Campaign:   campaign,
		Identity:   r.cfg.Identity,
		State:      string(rn.state),
		StartedAt:  started,
		FinishedAt: r.now(),
		Discovered: len(rn.targets),
		Attempted:  rn.attempts,
		Replayed:   rn.replayed,
		Targets:    make([]types.Target, 0, len(rn.targets)),
	}
	for _, t := range rn.targets {
		switch t.Outcome {
		case types.OutcomeSucceeded:
			sum.Succeeded++
		case types.OutcomeSkipped:
			sum.Skipped++
		case types.OutcomeFailed:
			sum.Failed++
		case types.OutcomeDeferred:
			sum.Deferred++
		}
		sum.Targets = append(sum.Targets, *t)
	}
	return sum
}
