package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolangzi/naver-automation/internal/config"
)

type recordingSleeper struct {
	slept []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func TestPacerDrawStaysInsideBand(t *testing.T) {
	p := NewPacer(config.Default().Pacing)
	band := config.Band{MinMS: 500, MaxMS: 1500}

	for i := 0; i < 500; i++ {
		d := p.Draw(band)
		require.GreaterOrEqual(t, d, 500*time.Millisecond)
		require.Less(t, d, 1500*time.Millisecond)
	}
}

func TestPacerDrawUsesRandSource(t *testing.T) {
	p := NewPacer(config.PacingConfig{}, WithRand(func() float64 { return 0.5 }))
	assert.Equal(t, 3*time.Second, p.Draw(config.Band{MinMS: 2000, MaxMS: 4000}))
	assert.Equal(t, 2*time.Second, p.Draw(config.Band{MinMS: 2000, MaxMS: 2000}))
}

func TestPacerPausesUseTheirBands(t *testing.T) {
	rec := &recordingSleeper{}
	cfg := config.Default().Pacing
	p := NewPacer(cfg, WithSleeper(rec.sleep), WithRand(func() float64 { return 0 }))
	ctx := context.Background()

	require.NoError(t, p.PageLoad(ctx))
	require.NoError(t, p.BeforeClick(ctx))
	require.NoError(t, p.BetweenTargets(ctx))

	assert.Equal(t, []time.Duration{cfg.PageLoad.Min(), cfg.BeforeClick.Min(), cfg.BetweenTargets.Min()}, rec.slept)
}

func TestPacerReadingIsClamped(t *testing.T) {
	rec := &recordingSleeper{}
	cfg := config.Default().Pacing
	p := NewPacer(cfg, WithSleeper(rec.sleep), WithRand(func() float64 { return 0 }))

	require.NoError(t, p.Reading(context.Background(), 0))
	require.NoError(t, p.Reading(context.Background(), 100000))

	assert.Equal(t, cfg.Reading.Min(), rec.slept[0])
	assert.Equal(t, cfg.Reading.Max(), rec.slept[1])
}

func TestPacerIdle(t *testing.T) {
	cfg := config.Default().Pacing
	cfg.IdleProbability = 0.1

	t.Run("skips when the draw is above the probability", func(t *testing.T) {
		rec := &recordingSleeper{}
		p := NewPacer(cfg, WithSleeper(rec.sleep), WithRand(func() float64 { return 0.5 }))
		idled, err := p.Idle(context.Background())
		require.NoError(t, err)
		assert.False(t, idled)
		assert.Empty(t, rec.slept)
	})

	t.Run("pauses when the draw is below the probability", func(t *testing.T) {
		rec := &recordingSleeper{}
		p := NewPacer(cfg, WithSleeper(rec.sleep), WithRand(func() float64 { return 0.05 }))
		idled, err := p.Idle(context.Background())
		require.NoError(t, err)
		assert.True(t, idled)
		require.Len(t, rec.slept, 1)
		assert.GreaterOrEqual(t, rec.slept[0], cfg.Idle.Min())
	})
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestQuota(t *testing.T) {
	t.Run("run cap blocks new chains", func(t *testing.T) {
		q := NewQuota(2, 10)
		ok, _ := q.Allow()
		assert.True(t, ok)

		q.RecordSuccess()
		q.RecordSuccess()
		ok, reason := q.Allow()
		assert.False(t, ok)
		assert.Contains(t, reason, "run cap")
	})

	t.Run("daily cap blocks new chains", func(t *testing.T) {
		q := NewQuota(10, 1)
		q.RecordSuccess()
		ok, reason := q.Allow()
		assert.False(t, ok)
		assert.Contains(t, reason, "daily")
	})

	t.Run("counters only grow", func(t *testing.T) {
		q := NewQuota(5, 5)
		prevRun, prevDaily := q.RunSuccess, q.DailyActions
		for i := 0; i < 3; i++ {
			q.RecordSuccess()
			assert.Greater(t, q.RunSuccess, prevRun)
			assert.Greater(t, q.DailyActions, prevDaily)
			prevRun, prevDaily = q.RunSuccess, q.DailyActions
		}
	})
}
