// Package worker implements the fixed-size pool of handler-invoking
// threads that pull REQ/STREAM items off the transport layer's worker
// queue, call the registered handler, and build the RESP/ERR reply.
package worker

import (
	"log"

	"github.com/librescoot/linkrpc/pkg/osal"
	"github.com/librescoot/linkrpc/pkg/transport"
)

// OutCap bounds a handler's output buffer, derived from ArgsMax: a
// RESP/ERR payload's args field is itself bounded by ArgsMax.
const OutCap = transport.ArgsMax

// WorkerCountDefault is the default pool size.
const WorkerCountDefault = 1

// Pool runs WorkerCount goroutines pulling from a shared request queue.
type Pool struct {
	registry    *transport.Registry
	workerQueue *osal.Queue[transport.RequestItem]
	txQueue     *osal.Queue[[]byte]
	count       int
	threads     *osal.Group
}

// New constructs a Pool of count workers (count <= 0 defaults to
// WorkerCountDefault) serving registry against items pulled from
// workerQueue, enqueuing REQ replies onto txQueue.
func New(registry *transport.Registry, workerQueue *osal.Queue[transport.RequestItem], txQueue *osal.Queue[[]byte], count int) *Pool {
	if count <= 0 {
		count = WorkerCountDefault
	}
	return &Pool{
		registry:    registry,
		workerQueue: workerQueue,
		txQueue:     txQueue,
		count:       count,
		threads:     osal.NewGroup(),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.count; i++ {
		p.threads.Go("worker", p.loop)
	}
}

// Stop closes workerQueue, unblocking every worker's in-flight Receive,
// then signals them to exit and waits for them.
func (p *Pool) Stop() {
	p.workerQueue.Close()
	p.threads.Stop()
}

func (p *Pool) loop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		item, err := p.workerQueue.Receive(osal.WaitForever)
		if err != nil {
			if err == osal.ErrClosed {
				return
			}
			continue
		}
		p.handle(item)
	}
}

func (p *Pool) handle(req transport.RequestItem) {
	handler, found := p.registry.Find(req.Name)

	var (
		out        [OutCap]byte
		outLen     int
		rc         int
		overflowed bool
	)

	if !found {
		rc = -1
	} else {
		outLen, rc = handler(req.Args, out[:], int(transport.HandlerTimeoutDefault.Milliseconds()))
		if outLen > OutCap {
			log.Printf("worker: handler %q produced %d bytes, exceeding OutCap %d", req.Name, outLen, OutCap)
			overflowed = true
			outLen = 0
		}
	}

	if req.Type == transport.TypeSTREAM {
		return // fire-and-forget: no output, successful or not
	}

	var resp transport.Message
	switch {
	case !found:
		resp = errMessage(req.Seq, req.Name, transport.TagNoFunc)
	case overflowed:
		resp = errMessage(req.Seq, req.Name, transport.TagOverflow)
	case rc < 0:
		resp = errMessage(req.Seq, req.Name, tagForCode(rc))
	default:
		resp = transport.Message{Type: transport.TypeRESP, Seq: req.Seq, Name: req.Name, Args: append([]byte(nil), out[:outLen]...)}
	}

	payload, err := transport.Build(resp)
	if err != nil {
		log.Printf("worker: failed to build response for %q: %v", req.Name, err)
		return
	}
	if err := p.txQueue.Send(payload, osal.WaitForever); err != nil {
		log.Printf("worker: failed to enqueue response for %q: %v", req.Name, err)
	}
}

func errMessage(seq byte, name string, tag transport.ErrTag) transport.Message {
	return transport.Message{Type: transport.TypeERR, Seq: seq, Name: name, Args: []byte(tag)}
}

// tagForCode maps a handler's negative return code to one of the wire
// error tags. Handlers are free to return any negative code; anything
// not otherwise distinguished maps to FAIL.
func tagForCode(rc int) transport.ErrTag {
	switch rc {
	case CodeInvalidArgs:
		return transport.TagInvalidArgs
	case CodeTimeout:
		return transport.TagTimeout
	default:
		return transport.TagFail
	}
}

// Handler return codes a handler body may use.
const (
	CodeSuccess     = 0
	CodeFail        = -1
	CodeInvalidArgs = -2
	CodeTimeout     = -3
)
