package transport

import (
	"fmt"
	"log"
	"time"

	"github.com/librescoot/linkrpc/pkg/osal"
)

// QueueDepth is the default depth for every bounded queue in the stack.
const QueueDepth = 16

// ReqTimeoutDefault and HandlerTimeoutDefault are the stack's default
// timeouts.
const (
	ReqTimeoutDefault     = 200 * time.Millisecond
	HandlerTimeoutDefault = 150 * time.Millisecond
)

// RequestItem is the bounded copy of an inbound REQ/STREAM message the
// dispatcher hands to the worker pool.
type RequestItem struct {
	Type MessageType
	Seq  byte
	Name string
	Args []byte
}

// Transport owns the registry, waiter table, and the three queues that
// connect the link layer, the callers, and the worker pool: an inbound
// payload queue (fed by the RX thread), an outbound payload queue (drained
// by the TX thread), and a worker request queue (drained by the worker
// pool). It runs its own dispatcher thread once Start is called.
type Transport struct {
	registry *Registry
	waiters  *WaiterTable

	rxQueue     *osal.Queue[[]byte]
	txQueue     *osal.Queue[[]byte]
	workerQueue *osal.Queue[RequestItem]

	threads *osal.Group
}

// New constructs a Transport with default queue depths.
func New() *Transport {
	return &Transport{
		registry:    NewRegistry(),
		waiters:     NewWaiterTable(),
		rxQueue:     osal.NewQueue[[]byte](QueueDepth),
		txQueue:     osal.NewQueue[[]byte](QueueDepth),
		workerQueue: osal.NewQueue[RequestItem](QueueDepth),
		threads:     osal.NewGroup(),
	}
}

// Registry exposes the function registry for Register calls.
func (t *Transport) Registry() *Registry { return t.registry }

// RXQueue is fed inbound payload events by the RX thread's link decoder.
func (t *Transport) RXQueue() *osal.Queue[[]byte] { return t.rxQueue }

// TXQueue is drained by the TX thread, which link-frames and writes each
// payload to the PHY.
func (t *Transport) TXQueue() *osal.Queue[[]byte] { return t.txQueue }

// WorkerQueue is drained by the worker pool.
func (t *Transport) WorkerQueue() *osal.Queue[RequestItem] { return t.workerQueue }

// Start launches the inbound dispatcher thread.
func (t *Transport) Start() {
	t.threads.Go("transport-dispatcher", t.dispatchLoop)
}

// Stop closes rxQueue, unblocking dispatchLoop's in-flight Receive, then
// signals the dispatcher thread to exit and waits for it.
func (t *Transport) Stop() {
	t.rxQueue.Close()
	t.threads.Stop()
}

func (t *Transport) dispatchLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		payload, err := t.rxQueue.Receive(osal.WaitForever)
		if err != nil {
			if err == osal.ErrClosed {
				return
			}
			continue
		}
		t.dispatch(payload)
	}
}

func (t *Transport) dispatch(payload []byte) {
	msg, err := Parse(payload)
	if err != nil {
		log.Printf("transport: dropping malformed payload: %v", err)
		return
	}

	switch msg.Type {
	case TypeRESP, TypeERR:
		t.dispatchResponse(msg)
	case TypeREQ, TypeSTREAM:
		t.dispatchRequest(msg)
	default:
		log.Printf("transport: dropping payload with unexpected type %s", msg.Type)
	}
}

func (t *Transport) dispatchResponse(msg Message) {
	// The waiter mutex is held from lookup through delivery, so a caller
	// that timed out cannot Free the slot while it is being written.
	t.waiters.mu.Lock()
	var w *Waiter
	for _, s := range t.waiters.slots {
		if s.inUse && s.seq == msg.Seq {
			w = s
			break
		}
	}
	if w == nil {
		t.waiters.mu.Unlock()
		log.Printf("transport: no waiter for seq=%d (%s), dropping", msg.Seq, msg.Type)
		return
	}
	if len(msg.Args) > w.respBufCap {
		w.Result = ResultOverflow
		*w.respLen = 0
	} else {
		copy(w.respBuf, msg.Args)
		*w.respLen = len(msg.Args)
		if msg.Type == TypeRESP {
			w.Result = ResultSuccess
		} else {
			w.Result = ResultError
		}
	}
	sem := w.sem
	t.waiters.mu.Unlock()
	sem.Give()
}

func (t *Transport) dispatchRequest(msg Message) {
	item := RequestItem{
		Type: msg.Type,
		Seq:  msg.Seq,
		Name: msg.Name,
		Args: append([]byte(nil), msg.Args...),
	}
	if err := t.workerQueue.TrySend(item); err != nil {
		log.Printf("transport: worker queue full, dropping %s for %q (seq=%d)", msg.Type, msg.Name, msg.Seq)
	}
}

// Request sends name(args) and blocks for a response. respBuf
// must have capacity at least ArgsMax — the caller must provide at least
// that much room regardless of how small the actual response turns out to
// be, so the dispatcher never needs to allocate on the hot path. On success
// it returns the number of response bytes written into respBuf[:n].
func (t *Transport) Request(name string, args []byte, respBuf []byte, timeout time.Duration) (n int, err error) {
	if len(name) < MinName || len(name) > MaxName {
		return 0, fmt.Errorf("%w: name length %d out of [%d,%d]", ErrInvalidArgs, len(name), MinName, MaxName)
	}
	if respBuf == nil {
		return 0, fmt.Errorf("%w: respBuf must not be nil", ErrInvalidArgs)
	}
	if len(respBuf) < ArgsMax {
		return 0, fmt.Errorf("%w: respBuf capacity %d below required minimum %d", ErrInvalidArgs, len(respBuf), ArgsMax)
	}
	if timeout == 0 {
		timeout = ReqTimeoutDefault
	}

	respLen := 0
	w, err := t.waiters.Alloc(respBuf, &respLen)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGeneric, err)
	}

	payload, err := Build(Message{Type: TypeREQ, Seq: w.seq, Name: name, Args: args})
	if err != nil {
		t.waiters.Free(w)
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	if err := t.txQueue.Send(payload, osal.WaitForever); err != nil {
		t.waiters.Free(w)
		return 0, fmt.Errorf("%w: enqueue REQ: %v", ErrGeneric, err)
	}

	if !w.sem.Take(timeout) {
		t.waiters.Free(w)
		return 0, fmt.Errorf("%w: %v", ErrGeneric, ErrTimeout)
	}

	result := w.Result
	n = respLen
	t.waiters.Free(w)

	switch result {
	case ResultSuccess:
		return n, nil
	case ResultOverflow:
		return 0, ErrOverflow
	default:
		return 0, ErrGeneric
	}
}

// Stream sends a fire-and-forget STREAM message.
func (t *Transport) Stream(name string, args []byte) error {
	if len(name) < MinName || len(name) > MaxName {
		return fmt.Errorf("%w: name length %d out of [%d,%d]", ErrInvalidArgs, len(name), MinName, MaxName)
	}
	payload, err := Build(Message{Type: TypeSTREAM, Seq: 0, Name: name, Args: args})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if err := t.txQueue.Send(payload, osal.WaitForever); err != nil {
		return fmt.Errorf("%w: enqueue STREAM: %v", ErrGeneric, err)
	}
	return nil
}
