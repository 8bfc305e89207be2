package testutil

import (
	"sync"
	"testing"
	"time"
)

// TestTime is the fixed clock reading used across tests.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// ConcurrentTestRunner releases a batch of functions at the same instant.
type ConcurrentTestRunner struct {
	t testing.TB
}

// NewConcurrentTestRunner creates a runner bound to t.
func NewConcurrentTestRunner(t testing.TB) *ConcurrentTestRunner {
	return &ConcurrentTestRunner{t: t}
}

// RunConcurrent starts every fn behind a shared gate and returns their errors in argument order.
func (r *ConcurrentTestRunner) RunConcurrent(funcs ...func() error) []error {
	r.t.Helper()

	errs := make([]error, len(funcs))
	gate := make(chan struct{})
	var wg sync.WaitGroup
	for i, fn := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			errs[i] = fn()
		}()
	}
	close(gate)
	wg.Wait()
	return errs
}

// CountSucceeded returns how many of errs are nil.
func CountSucceeded(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}
