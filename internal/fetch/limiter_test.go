package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunLimitedRespectsLimit(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int32

	tasks := make([]func(context.Context) (int, error), 20)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (int, error) {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return i, nil
		}
	}

	outcomes := RunLimited(context.Background(), tasks, limit)

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, want <= %d", got, limit)
	}
	for i, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("task %d failed: %v", i, o.Err)
		}
		if o.Value != i {
			t.Errorf("outcome %d holds value %d, want slot to match task order", i, o.Value)
		}
	}
}

func TestRunLimitedIsolatesFailures(t *testing.T) {
	errBoom := errors.New("boom")
	tasks := []func(context.Context) (string, error){
		func(ctx context.Context) (string, error) { return "a", nil },
		func(ctx context.Context) (string, error) { return "", errBoom },
		func(ctx context.Context) (string, error) { return "c", nil },
	}

	outcomes := RunLimited(context.Background(), tasks, 2)

	if !outcomes[0].Ok() || outcomes[0].Value != "a" {
		t.Errorf("task 0 outcome = %+v, want a", outcomes[0])
	}
	if outcomes[1].Ok() || !errors.Is(outcomes[1].Err, errBoom) {
		t.Errorf("task 1 outcome = %+v, want boom", outcomes[1])
	}
	if !outcomes[2].Ok() || outcomes[2].Value != "c" {
		t.Errorf("task 2 outcome = %+v, want c", outcomes[2])
	}
}

func TestRunLimitedZeroLimitFallsBack(t *testing.T) {
	tasks := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { return 42, nil },
	}
	outcomes := RunLimited(context.Background(), tasks, 0)
	if len(outcomes) != 1 || outcomes[0].Value != 42 {
		t.Errorf("outcomes = %+v, want single 42", outcomes)
	}
}
