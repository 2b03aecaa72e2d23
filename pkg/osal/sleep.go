package osal

import "time"

// Sleep suspends the calling goroutine for d, the monotonic sleep primitive
// the waiter table's allocate-retry loop is built on.
func Sleep(d time.Duration) {
	time.Sleep(d)
}
