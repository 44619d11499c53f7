// Package lifetime lets a command stay alive until the server it started
// has shut down.
package lifetime

import (
	"context"
	"reflect"
	"sync"

	"github.com/davezuko/hardhat-pack/internal/errors"
)

// Handle is a long-lived resource that settles exactly once: Done is closed
// and Err reports nil for a clean close or the error that ended it.
type Handle interface {
	Done() <-chan struct{}
	Err() error
}

// Signal is a Handle settled by its owner.
type Signal struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Err is only meaningful after Done is closed.
func (s *Signal) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close settles the signal cleanly. It reports whether this call settled it.
func (s *Signal) Close() bool {
	return s.settle(nil)
}

// Fail settles the signal with err. It reports whether this call settled it.
func (s *Signal) Fail(err error) bool {
	return s.settle(err)
}

func (s *Signal) settle(err error) bool {
	settled := false
	s.once.Do(func() {
		s.err = err
		close(s.done)
		settled = true
	})
	return settled
}

// WaitUntilClosed blocks until h closes, returning its error if it failed.
// Without a handle it fails right away with errors.ErrServerNotAvailable.
func WaitUntilClosed(ctx context.Context, h Handle) error {
	if isNil(h) {
		return errors.ErrServerNotAvailable
	}
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isNil also catches a nil pointer stored in a non-nil Handle.
func isNil(h Handle) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}
