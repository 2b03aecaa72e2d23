package osal

import (
	"context"
	"time"
)

// BinarySemaphore is a signal with at most one outstanding grant: Give is a
// no-op if the semaphore is already signaled, and Take consumes the signal
// at most once. This is the rendezvous primitive a waiter uses to block a
// caller goroutine until its response arrives or it times out.
type BinarySemaphore struct {
	ch chan struct{}
}

// NewBinarySemaphore returns an unsignaled semaphore.
func NewBinarySemaphore() *BinarySemaphore {
	return &BinarySemaphore{ch: make(chan struct{}, 1)}
}

// Give signals the semaphore. A Give on an already-signaled semaphore is
// dropped rather than blocking or panicking, so "at most once" holds even if
// a caller mistakenly gives twice.
func (s *BinarySemaphore) Give() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Take blocks until the semaphore is signaled or timeout elapses, returning
// true on a grant and false on timeout. WaitForever blocks indefinitely.
func (s *BinarySemaphore) Take(timeout time.Duration) bool {
	if timeout == WaitForever {
		<-s.ch
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	select {
	case <-s.ch:
		return true
	case <-ctx.Done():
		return false
	}
}
