package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/librescoot/linkrpc/pkg/osal"
)

// WaiterMax bounds the number of outstanding requests.
const WaiterMax = 8

// allocRetries and allocRetryDelay implement the "sleep 1ms and retry up
// to ~255 times before failing" backoff when no waiter slot is free.
const (
	allocRetries    = 255
	allocRetryDelay = time.Millisecond
)

// Result codes a waiter can resolve to.
type Result int

const (
	ResultSuccess Result = iota
	ResultError
	ResultOverflow
	ResultTimeout
)

// Waiter is the per-outstanding-request rendezvous slot. gen is a
// monotonic allocation generation bumped every time the slot is claimed.
// The wire's typed message carries only an 8-bit seq, never a
// generation, so a late RESP/ERR can only ever be looked up by seq — gen
// cannot be round-tripped over the wire without changing that layout.
// gen is therefore a local hardening/diagnostic measure, not a wire-level
// fix: once a slot is freed and its seq reallocated to a new Waiter, a
// late response belonging to the old allocation is indistinguishable on
// the wire from one meant for the new allocation, and Find necessarily
// returns the new one. gen is readable through Generation(), but neither
// Find nor the dispatcher consults it, so it cannot suppress the race. respBuf/
// respLen are owned by the calling goroutine for the waiter's lifetime;
// the dispatcher only writes into them before signaling sem, and the
// caller only reads them after Take returns — the semaphore establishes
// the happens-before edge.
type Waiter struct {
	inUse bool
	seq   byte
	gen   uint16

	sem *osal.BinarySemaphore

	respBuf    []byte
	respBufCap int
	respLen    *int

	Result Result
}

// WaiterTable is the fixed-size table of waiter slots.
type WaiterTable struct {
	mu      sync.Mutex
	slots   []*Waiter
	nextSeq byte
}

// NewWaiterTable constructs a table of WaiterMax empty slots.
func NewWaiterTable() *WaiterTable {
	slots := make([]*Waiter, WaiterMax)
	for i := range slots {
		slots[i] = &Waiter{}
	}
	return &WaiterTable{slots: slots}
}

// ErrNoWaiterSlot is returned by Alloc when every slot stays occupied
// through the retry budget.
var ErrNoWaiterSlot = fmt.Errorf("transport: no free waiter slot after retrying")

// nextSequence advances the monotonic seq counter, skipping 0 (reserved for
// STREAM messages). Must be called with mu held.
func (t *WaiterTable) nextSequence() byte {
	t.nextSeq++
	if t.nextSeq == 0 {
		t.nextSeq = 1
	}
	return t.nextSeq
}

// Alloc claims a free slot, assigns it a fresh seq (and bumps its
// generation), and returns it. If the table is full it sleeps
// allocRetryDelay and retries up to allocRetries times before failing.
func (t *WaiterTable) Alloc(respBuf []byte, respLen *int) (*Waiter, error) {
	for attempt := 0; attempt <= allocRetries; attempt++ {
		t.mu.Lock()
		for _, w := range t.slots {
			if !w.inUse {
				seq := t.nextSequence()
				w.inUse = true
				w.seq = seq
				w.gen++
				w.sem = osal.NewBinarySemaphore()
				w.respBuf = respBuf
				w.respBufCap = len(respBuf)
				w.respLen = respLen
				w.Result = ResultError
				t.mu.Unlock()
				return w, nil
			}
		}
		t.mu.Unlock()
		if attempt < allocRetries {
			osal.Sleep(allocRetryDelay)
		}
	}
	return nil, ErrNoWaiterSlot
}

// Find returns the in-use waiter matching seq, or nil, false. A late
// response for a seq whose waiter has already been freed and not yet
// reallocated correctly finds nothing, since inUse is false; see the
// Waiter.gen doc comment for the residual cross-wire race this cannot
// close.
func (t *WaiterTable) Find(seq byte) (*Waiter, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range t.slots {
		if w.inUse && w.seq == seq {
			return w, true
		}
	}
	return nil, false
}

// Generation reports w's current allocation generation, for diagnostics.
func (w *Waiter) Generation() uint16 { return w.gen }

// Free marks w's slot free again. Safe to call once the caller no longer
// references the slot (after the semaphore has fired, or after a timeout).
func (t *WaiterTable) Free(w *Waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w.inUse = false
	w.respBuf = nil
	w.respLen = nil
	w.sem = nil
}
