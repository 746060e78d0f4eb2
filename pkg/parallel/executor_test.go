package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Empty(t *testing.T) {
	e := NewExecutor(0)
	outcomes := e.Execute(context.Background(), nil)
	assert.Empty(t, outcomes)
}

func TestExecute_PreservesTaskOrder(t *testing.T) {
	e := NewExecutor(0)
	tasks := []Task{
		{Unit: "a", Run: func(context.Context) error { return nil }},
		{Unit: "b", Run: func(context.Context) error { return errors.New("b failed") }},
		{Unit: "c", Run: func(context.Context) error { return nil }},
	}

	outcomes := e.Execute(context.Background(), tasks)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "a", outcomes[0].Unit)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "b", outcomes[1].Unit)
	assert.EqualError(t, outcomes[1].Err, "b failed")
	assert.Equal(t, "c", outcomes[2].Unit)
	assert.NoError(t, outcomes[2].Err)
}

func TestExecute_FailureDoesNotCancelSiblings(t *testing.T) {
	e := NewExecutor(0)

	var started atomic.Int64
	gate := make(chan struct{})

	tasks := []Task{
		{Unit: "fail-fast", Run: func(context.Context) error {
			started.Add(1)
			return errors.New("boom")
		}},
		{Unit: "slow", Run: func(context.Context) error {
			started.Add(1)
			<-gate
			return nil
		}},
		{Unit: "other", Run: func(context.Context) error {
			started.Add(1)
			<-gate
			return nil
		}},
	}

	done := make(chan []Outcome)
	go func() { done <- e.Execute(context.Background(), tasks) }()

	// Let the slow tasks finish only after the failing one already has.
	close(gate)
	outcomes := <-done

	assert.Equal(t, int64(3), started.Load())
	assert.Equal(t, 2, Succeeded(outcomes))
	assert.Len(t, Failures(outcomes), 1)
}

func TestExecute_RespectsWidth(t *testing.T) {
	const width = 2
	e := NewExecutor(width)

	var mu sync.Mutex
	running, peak := 0, 0

	task := Task{Unit: "unit", Run: func(context.Context) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}}

	tasks := make([]Task, 16)
	for i := range tasks {
		tasks[i] = task
	}

	outcomes := e.Execute(context.Background(), tasks)

	assert.Equal(t, 16, Succeeded(outcomes))
	assert.LessOrEqual(t, peak, width)
}

func TestExecute_CanceledContextStillReportsEveryUnit(t *testing.T) {
	e := NewExecutor(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task{
		{Unit: "a", Run: func(context.Context) error { return nil }},
		{Unit: "b", Run: func(context.Context) error { return nil }},
	}

	outcomes := e.Execute(ctx, tasks)

	// Semaphore acquisition fails on the dead context, but every unit's
	// outcome is still observed.
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Error(t, o.Err)
	}
}

func TestSucceededAndFailures(t *testing.T) {
	outcomes := []Outcome{
		{Unit: "a"},
		{Unit: "b", Err: errors.New("x")},
		{Unit: "c", Err: errors.New("y")},
	}

	assert.Equal(t, 1, Succeeded(outcomes))
	assert.Len(t, Failures(outcomes), 2)
}
