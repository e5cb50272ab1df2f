package engine

import (
	"context"

	"github.com/kolangzi/naver-automation/internal/types"
)

// Session is an authenticated browser session owned by one run.
type Session interface {
	EnsureAuthenticated(ctx context.Context) error
	Close() error
}

// Source discovers targets from one remote list.
type Source interface {
	// Collect extracts the targets currently rendered. It has no side
	// effects; hasMore reports whether Advance can grow the list.
	Collect(ctx context.Context) (targets []types.Target, hasMore bool, err error)
	// Advance grows the list by one page.
	Advance(ctx context.Context) (bool, error)
	// Reload returns the list to its natural order.
	Reload(ctx context.Context) error
	// RestoreDepth replays Advance up to depth times and returns how many
	// succeeded.
	RestoreDepth(ctx context.Context, depth int) int
}

// Sized is implemented by sources that know their size up front.
type Sized interface {
	Total() int
}

// Result is the outcome of one chain as reported by a campaign.
type Result struct {
	Outcome types.Outcome
	Reason  string
	// NeedsReload asks the engine to reload the list and restore depth.
	NeedsReload bool
	// Defer queues a follow-up for the replay pass. The target's Outcome
	// is OutcomeDeferred when the primary chain itself was postponed.
	Defer *types.DeferredItem
}

// Campaign binds a source to its action chains.
type Campaign interface {
	Name() string
	// Prepare runs the one-off setup of a run and returns its source.
	Prepare(ctx context.Context) (Source, error)
	Act(ctx context.Context, t *types.Target) Result
	Retry(ctx context.Context, item *types.DeferredItem) Result
}

// StaticSource serves a list collected up front.
type StaticSource struct {
	targets []types.Target
}

// NewStaticSource wraps targets.
func NewStaticSource(targets []types.Target) *StaticSource {
	return &StaticSource{targets: targets}
}

func (s *StaticSource) Collect(context.Context) ([]types.Target, bool, error) {
	return append([]types.Target(nil), s.targets...), false, nil
}

func (s *StaticSource) Advance(context.Context) (bool, error) { return false, nil }
func (s *StaticSource) Reload(context.Context) error { return nil }
func (s *StaticSource) RestoreDepth(_ context.Context, _ int) int { return 0 }
func (s *StaticSource) Total() int { return len(s.targets) }
