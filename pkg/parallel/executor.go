// Package parallel provides a bounded fan-out executor that runs every
// task to completion and reports one outcome per task.
package parallel

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Task is one independently executed unit of work.
type Task struct {
	// Unit identifies the task in outcomes, e.g. a repository name or an
	// image reference.
	Unit string
	Run  func(ctx context.Context) error
}

// Outcome is the result of one task.
type Outcome struct {
	Unit string
	Err  error
}

// Executor runs tasks concurrently with an optional width bound.
type Executor struct {
	width int64
}

// NewExecutor creates an executor. A width <= 0 means unbounded: one
// goroutine per task.
func NewExecutor(width int64) *Executor {
	return &Executor{width: width}
}

// Execute runs all tasks and returns their outcomes in task order. A
// failing task never cancels its siblings; Execute returns only after
// every started task has reported.
func (e *Executor) Execute(ctx context.Context, tasks []Task) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	var sem *semaphore.Weighted
	if e.width > 0 {
		sem = semaphore.NewWeighted(e.width)
	}

	// A plain group, not WithContext: task failures are recorded, never
	// propagated as group errors, so siblings keep running.
	var group errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					outcomes[i] = Outcome{Unit: task.Unit, Err: fmt.Errorf("acquire semaphore: %w", err)}
					return nil
				}
				defer sem.Release(1)
			}
			outcomes[i] = Outcome{Unit: task.Unit, Err: task.Run(ctx)}
			return nil
		})
	}
	_ = group.Wait()

	return outcomes
}

// Succeeded counts the outcomes without an error.
func Succeeded(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failures collects the errors of the failed outcomes, in task order.
func Failures(outcomes []Outcome) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
