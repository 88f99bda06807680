package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/utils/config"
)

func testConfig(seed uint64, total int32) config.Config {
	c := config.Default()
	c.Control.Seed = &seed
	c.Control.Step.Total = total
	return c
}

func newRunning(t *testing.T, c config.Config) *Context {
	t.Helper()
	ctx := NewContext("test", c)
	require.NoError(t, ctx.Init())
	return ctx
}

func TestStateMachine(t *testing.T) {
	ctx := NewContext("test", testConfig(1, 100))
	assert.Equal(t, StateUninitialized, ctx.State())

	_, err := ctx.Step()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, ctx.Pause(), ErrNotRunning)
	assert.ErrorIs(t, ctx.Resume(), ErrNotRunning)
	assert.ErrorIs(t, ctx.Run(context.Background()), ErrNotRunning)

	require.NoError(t, ctx.Init())
	assert.Equal(t, StateRunning, ctx.State())
	assert.ErrorIs(t, ctx.Init(), ErrAlreadyInitialized)

	s, err := ctx.Step()
	require.NoError(t, err)
	assert.Equal(t, int32(1), s.Step)
	assert.InDelta(t, .1, s.T, 1e-12)

	require.NoError(t, ctx.Pause())
	assert.Equal(t, StatePaused, ctx.State())
	_, err = ctx.Step()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, ctx.Pause(), ErrNotRunning)

	require.NoError(t, ctx.Resume())
	require.NoError(t, ctx.Resume())
	_, err = ctx.Step()
	require.NoError(t, err)
	assert.Equal(t, int32(2), ctx.Snapshot().Step)

	ctx.Stop()
	ctx.Stop()
	assert.Equal(t, StateStopped, ctx.State())
	_, err = ctx.Step()
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, ctx.Pause(), ErrStopped)
	assert.ErrorIs(t, ctx.Resume(), ErrStopped)
	assert.ErrorIs(t, ctx.Init(), ErrStopped)
}

func TestInitConfigurationError(t *testing.T) {
	cases := map[string]func(c *config.Config){
		"unknown environment": func(c *config.Config) { c.Input.Environment = "nowhere" },
		"missing file":        func(c *config.Config) { c.Input.File = "does/not/exist.yml" },
		"zero interval":       func(c *config.Config) { c.Control.Step.Interval = 0 },
		"bad etiquette":       func(c *config.Config) { c.Etiquette.Mode = "stay_center" },
	}
	for name, edit := range cases {
		t.Run(name, func(t *testing.T) {
			c := testConfig(1, 10)
			edit(&c)
			ctx := NewContext("test", c)
			err := ctx.Init()
			var cerr *config.ConfigurationError
			require.True(t, errors.As(err, &cerr), "want ConfigurationError, got %v", err)
			assert.Equal(t, StateUninitialized, ctx.State())
		})
	}
}

func TestRunToCompletion(t *testing.T) {
	ctx := newRunning(t, testConfig(3, 50))
	steps := make([]int32, 0)
	err := ctx.Run(context.Background(), ObserverFunc(func(s Snapshot) {
		steps = append(steps, s.Step)
	}))
	require.NoError(t, err)
	require.Len(t, steps, 50)
	for i, step := range steps {
		assert.Equal(t, int32(i+1), step)
	}
	assert.Equal(t, StateStopped, ctx.State())
	assert.Equal(t, int32(50), ctx.Snapshot().Step)
}

func TestRunStopsAtStepBoundary(t *testing.T) {
	ctx := newRunning(t, testConfig(3, 1000))
	n := 0
	err := ctx.Run(context.Background(), ObserverFunc(func(s Snapshot) {
		n++
		if s.Step == 10 {
			ctx.Stop()
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, int32(10), ctx.Clock().InternalStep)
}

func TestRunContextCancel(t *testing.T) {
	ctx := newRunning(t, testConfig(3, 1000))
	c, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := 0
	err := ctx.Run(c, ObserverFunc(func(s Snapshot) {
		n++
		if s.Step == 5 {
			cancel()
		}
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, n)
	// 取消不改变状态，可以继续运行
	assert.Equal(t, StateRunning, ctx.State())
}

func TestRunPauseResume(t *testing.T) {
	ctx := newRunning(t, testConfig(3, 20))
	paused := make(chan struct{})
	go func() {
		<-paused
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, StatePaused, ctx.State())
		assert.NoError(t, ctx.Resume())
	}()
	n := 0
	err := ctx.Run(context.Background(), ObserverFunc(func(s Snapshot) {
		n++
		if s.Step == 5 {
			require.NoError(t, ctx.Pause())
			close(paused)
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestRunPausedCancel(t *testing.T) {
	ctx := newRunning(t, testConfig(3, 20))
	require.NoError(t, ctx.Pause())
	c, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ctx.Run(c), context.DeadlineExceeded)
	assert.Equal(t, int32(0), ctx.Clock().InternalStep)
}

func TestSnapshotConservationAndBounds(t *testing.T) {
	ctx := newRunning(t, testConfig(11, 600))
	env := ctx.Environment()
	prev := 0
	err := ctx.Run(context.Background(), ObserverFunc(func(s Snapshot) {
		assert.Equal(t, prev+s.Spawned-s.Arrived-s.Discarded, len(s.Agents))
		assert.Equal(t, int64(len(s.Agents)), s.Counts.Active())
		for _, a := range s.Agents {
			assert.Equal(t, entity.StatusActive, a.Status)
			assert.True(t, env.InBounds(a.Position))
		}
		prev = len(s.Agents)
	}))
	require.NoError(t, err)
}

func TestDeterminism(t *testing.T) {
	run := func() (Snapshot, []float64) {
		c := testConfig(2024, 400)
		c.Etiquette.Mode = config.EtiquetteRandomChoice
		ctx := newRunning(t, c)
		require.NoError(t, ctx.Run(context.Background()))
		times := make([]float64, 0)
		for _, ev := range ctx.Recorder().Arrivals() {
			times = append(times, ev.TravelTime)
		}
		return ctx.Snapshot(), times
	}
	s1, t1 := run()
	s2, t2 := run()
	assert.Equal(t, s1, s2)
	assert.Equal(t, t1, t2)
	assert.NotEmpty(t, t1)
}

func TestCalibrationCorridor(t *testing.T) {
	run := func() float64 {
		c := testConfig(20240601, 1000)
		c.Input.Environment = "corridor"
		c.Population.ArrivalRate = 1
		c.Control.Step.Interval = .1
		ctx := newRunning(t, c)
		require.NoError(t, ctx.Run(context.Background()))
		r := ctx.Report()
		require.Positive(t, r.Overall.Count)
		assert.Less(t, r.Overall.StdDev, 5.)
		assert.Contains(t, r.ByDirection, ctx.Environment().Flows[0].Direction)
		assert.Contains(t, r.ByDirection, ctx.Environment().Flows[1].Direction)
		return r.Overall.Mean
	}
	mean := run()
	assert.GreaterOrEqual(t, mean, 15.)
	assert.LessOrEqual(t, mean, 25.)
	assert.Equal(t, mean, run())
}
