package saga

import (
	"context"
	"errors"
	"testing"
	"time"
)

func step(name string, execute ExecuteFunc, compensate CompensateFunc) *Step {
	return &Step{Name: name, Execute: execute, Compensate: compensate}
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	var order []string
	def := NewDefinition("test")
	for _, name := range []string{"one", "two", "three"} {
		n := name
		def.AddStep(step(n, func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
			order = append(order, n)
			return map[string]interface{}{n: true}, nil
		}, nil))
	}

	data, err := def.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(order) != 3 || order[0] != "one" || order[1] != "two" || order[2] != "three" {
		t.Errorf("steps ran out of order: %v", order)
	}
	for _, name := range []string{"one", "two", "three"} {
		if data[name] != true {
			t.Errorf("output of step %s not merged into data", name)
		}
	}
}

func TestExecutePropagatesDataBetweenSteps(t *testing.T) {
	def := NewDefinition("test")
	def.AddStep(step("produce", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"value": 42}, nil
	}, nil))

	var seen interface{}
	def.AddStep(step("consume", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		seen = data["value"]
		return nil, nil
	}, nil))

	if _, err := def.Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if seen != 42 {
		t.Errorf("second step saw %v, want 42", seen)
	}
}

func TestExecuteCompensatesInReverseOrder(t *testing.T) {
	var compensated []string
	boom := errors.New("boom")

	def := NewDefinition("test")
	for _, name := range []string{"one", "two"} {
		n := name
		def.AddStep(step(n, func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
			return nil, nil
		}, func(ctx context.Context, data map[string]interface{}) error {
			compensated = append(compensated, n)
			return nil
		}))
	}
	def.AddStep(step("failing", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		return nil, boom
	}, nil))

	_, err := def.Execute(context.Background(), nil)

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Execute() error = %v, want *StepError", err)
	}
	if stepErr.Step != "failing" {
		t.Errorf("StepError.Step = %q, want %q", stepErr.Step, "failing")
	}
	if !errors.Is(err, boom) {
		t.Error("StepError does not wrap the cause")
	}
	if len(compensated) != 2 || compensated[0] != "two" || compensated[1] != "one" {
		t.Errorf("compensations ran in order %v, want [two one]", compensated)
	}
}

func TestExecuteSkipsNilCompensations(t *testing.T) {
	var compensated []string

	def := NewDefinition("test")
	def.AddStep(step("reversible", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	}, func(ctx context.Context, data map[string]interface{}) error {
		compensated = append(compensated, "reversible")
		return nil
	}))
	def.AddStep(step("irreversible", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	}, nil))
	def.AddStep(step("failing", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		return nil, errors.New("boom")
	}, nil))

	_, err := def.Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("Execute() expected error")
	}
	if len(compensated) != 1 || compensated[0] != "reversible" {
		t.Errorf("compensated = %v, want [reversible]", compensated)
	}
}

func TestExecuteReportsUnreconciledSteps(t *testing.T) {
	def := NewDefinition("test")
	def.AddStep(step("stuck", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	}, func(ctx context.Context, data map[string]interface{}) error {
		return errors.New("compensation failed")
	}))
	def.AddStep(step("failing", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		return nil, errors.New("boom")
	}, nil))

	_, err := def.Execute(context.Background(), nil)

	var compErr *CompensationError
	if !errors.As(err, &compErr) {
		t.Fatalf("Execute() error = %v, want *CompensationError", err)
	}
	if len(compErr.Unreconciled) != 1 || compErr.Unreconciled[0] != "stuck" {
		t.Errorf("Unreconciled = %v, want [stuck]", compErr.Unreconciled)
	}
	if len(compErr.Completed) != 1 || compErr.Completed[0] != "stuck" {
		t.Errorf("Completed = %v, want [stuck]", compErr.Completed)
	}
}

func TestExecuteStepTimeout(t *testing.T) {
	def := NewDefinition("test")
	def.AddStep(&Step{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Execute: func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return nil, nil
			}
		},
	})

	_, err := def.Execute(context.Background(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want deadline exceeded", err)
	}
}

func TestCompensationRunsAfterCallerCancellation(t *testing.T) {
	compensated := false

	ctx, cancel := context.WithCancel(context.Background())
	def := NewDefinition("test")
	def.AddStep(step("first", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	}, func(ctx context.Context, data map[string]interface{}) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		compensated = true
		return nil
	}))
	def.AddStep(step("failing", func(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
		cancel()
		return nil, errors.New("boom")
	}, nil))

	_, err := def.Execute(ctx, nil)

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Execute() error = %v, want *StepError", err)
	}
	if !compensated {
		t.Error("compensation did not run after caller cancellation")
	}
}
