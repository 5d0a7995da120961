// Package saga runs multi-store lifecycle operations as ordered lists of
// reversible steps. On failure at step k the compensations of steps
// 1..k-1 run in reverse order; if a compensation itself fails the
// unreconciled state is reported so callers can log it for manual or
// automated reconciliation.
package saga

import (
	"context"
	"fmt"
	"time"
)

// ExecuteFunc performs a step's forward action. The returned map is merged
// into the saga data visible to subsequent steps and to compensations.
type ExecuteFunc func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error)

// CompensateFunc undoes a step's forward action.
type CompensateFunc func(ctx context.Context, data map[string]interface{}) error

// Step is one unit of a saga. A nil Compensate marks the step as
// irreversible: it is skipped during rollback.
type Step struct {
	Name        string
	Description string
	Execute     ExecuteFunc
	Compensate  CompensateFunc
	Timeout     time.Duration
}

// Definition is an ordered list of steps forming one lifecycle operation.
type Definition struct {
	name    string
	timeout time.Duration
	steps   []*Step
}

// NewDefinition creates a new saga definition
func NewDefinition(name string) *Definition {
	return &Definition{name: name}
}

// Name returns the saga's name
func (d *Definition) Name() string {
	return d.name
}

// WithTimeout bounds the whole saga's execution time
func (d *Definition) WithTimeout(timeout time.Duration) *Definition {
	d.timeout = timeout
	return d
}

// AddStep appends a step to the definition
func (d *Definition) AddStep(step *Step) *Definition {
	d.steps = append(d.steps, step)
	return d
}

// StepError reports a step failure that was fully compensated: every
// reversible completed step was rolled back and no orphaned state
// remains.
type StepError struct {
	Saga string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga %s: step %s failed: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// CompensationError reports a step failure whose rollback also failed,
// leaving orphaned resources behind. Completed lists the steps whose
// forward action committed; Unreconciled lists those whose compensation
// failed.
type CompensationError struct {
	Saga         string
	Step         string
	Err          error
	Completed    []string
	Unreconciled []string
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("saga %s: step %s failed (%v) and compensation left steps %v unreconciled",
		e.Saga, e.Step, e.Err, e.Unreconciled)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

// Execute runs the saga's steps in order over the given data. On step
// failure the compensations of completed steps run in reverse; the data
// passed to each compensation includes every output merged so far.
func (d *Definition) Execute(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	if data == nil {
		data = make(map[string]interface{})
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	completed := make([]*Step, 0, len(d.steps))
	for _, step := range d.steps {
		output, err := d.runStep(ctx, step, data)
		if err != nil {
			return data, d.compensate(ctx, step, err, completed, data)
		}
		for k, v := range output {
			data[k] = v
		}
		completed = append(completed, step)
	}
	return data, nil
}

func (d *Definition) runStep(ctx context.Context, step *Step, data map[string]interface{}) (map[string]interface{}, error) {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	return step.Execute(ctx, data)
}

// compensate rolls back completed steps in reverse order. Compensation
// runs on a background-derived context so a cancelled request cannot
// interrupt cleanup midway.
func (d *Definition) compensate(ctx context.Context, failed *Step, cause error, completed []*Step, data map[string]interface{}) error {
	compCtx := context.WithoutCancel(ctx)

	var unreconciled []string
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(compCtx, data); err != nil {
			unreconciled = append(unreconciled, step.Name)
		}
	}

	if len(unreconciled) > 0 {
		names := make([]string, 0, len(completed))
		for _, step := range completed {
			names = append(names, step.Name)
		}
		return &CompensationError{
			Saga:         d.name,
			Step:         failed.Name,
			Err:          cause,
			Completed:    names,
			Unreconciled: unreconciled,
		}
	}
	return &StepError{Saga: d.name, Step: failed.Name, Err: cause}
}
