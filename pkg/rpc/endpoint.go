// Package rpc wires a PHY, the link-layer framer, the transport dispatcher
// and the worker pool into a single running endpoint: own the RX/TX
// threads, own the registry, and give the caller just Register/Request/
// Stream/Start/Stop.
package rpc

import (
	"log"
	"time"

	"github.com/librescoot/linkrpc/pkg/link"
	"github.com/librescoot/linkrpc/pkg/osal"
	"github.com/librescoot/linkrpc/pkg/phy"
	"github.com/librescoot/linkrpc/pkg/transport"
	"github.com/librescoot/linkrpc/pkg/worker"
)

// Endpoint is one side of a point-to-point link: a PHY plus everything
// above it. Both ends of a link run an identical Endpoint; which side
// calls Request and which side only Register+Start is purely an
// application-level choice, the same way the framework treats every peer
// symmetrically.
type Endpoint struct {
	phy       phy.PHY
	decoder   *link.Decoder
	transport *transport.Transport
	pool      *worker.Pool
	threads   *osal.Group

	rxBufSize  int
	reqTimeout time.Duration
}

// New builds an Endpoint over p. Handlers must be registered via Register
// before Start.
func New(p phy.PHY, cfg Config) *Endpoint {
	cfg = cfg.withDefaults()

	t := transport.New()
	pool := worker.New(t.Registry(), t.WorkerQueue(), t.TXQueue(), cfg.WorkerCount)

	e := &Endpoint{
		phy:        p,
		transport:  t,
		pool:       pool,
		threads:    osal.NewGroup(),
		rxBufSize:  256,
		reqTimeout: cfg.ReqTimeout,
	}
	e.decoder = link.NewDecoder(e.onFrame, e.onNoise)
	return e
}

// Register adds name to the function registry. Calling it before Start
// puts the handler in place before the first inbound message; the
// registry guards Register and the worker pool's lookups with one mutex.
func (e *Endpoint) Register(name string, h transport.Handler) error {
	return e.transport.Registry().Register(name, h)
}

// Request sends name(args) to the peer and blocks for its response,
// copying at most len(out) response bytes into out and returning how many
// were written. A zero timeout uses the Config's ReqTimeout.
//
// Unlike transport.Transport.Request, out may be any size: Endpoint holds
// the ArgsMax-sized scratch buffer the transport layer requires and copies
// only the bytes the caller asked for.
func (e *Endpoint) Request(name string, args []byte, out []byte, timeout time.Duration) (int, error) {
	if timeout == 0 {
		timeout = e.reqTimeout
	}
	var scratch [transport.ArgsMax]byte
	n, err := e.transport.Request(name, args, scratch[:], timeout)
	if err != nil {
		return 0, err
	}
	return copy(out, scratch[:n]), nil
}

// Stream sends a fire-and-forget STREAM message.
func (e *Endpoint) Stream(name string, args []byte) error {
	return e.transport.Stream(name, args)
}

// Start launches the transport dispatcher, the worker pool, the RX thread
// (PHY -> decoder -> transport) and the TX thread (transport -> link
// framing -> PHY), in that order, so every consumer is running before the
// threads that feed it.
func (e *Endpoint) Start() {
	e.transport.Start()
	e.pool.Start()
	e.threads.Go("rpc-rx", e.rxLoop)
	e.threads.Go("rpc-tx", e.txLoop)
}

// Stop closes the PHY first, unblocking rxLoop's in-flight Receive, then
// stops the transport (which closes its RX queue, unblocking onFrame if
// it was blocked enqueueing into a full queue), then waits for the RX/TX
// threads, then stops the worker pool.
func (e *Endpoint) Stop() {
	if err := e.phy.Close(); err != nil {
		log.Printf("rpc: phy close: %v", err)
	}
	e.transport.Stop()
	e.threads.Stop()
	e.pool.Stop()
}

func (e *Endpoint) rxLoop(stop <-chan struct{}) {
	buf := make([]byte, e.rxBufSize)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := e.phy.Receive(buf)
		if err != nil {
			log.Printf("rpc: phy receive: %v", err)
			return
		}
		e.decoder.Feed(buf[:n])
	}
}

func (e *Endpoint) txLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		payload, err := e.transport.TXQueue().Receive(250 * time.Millisecond)
		if err != nil {
			if err == osal.ErrClosed {
				return
			}
			continue
		}
		if err := link.BuildAndSend(phyWriter{e.phy}, payload); err != nil {
			log.Printf("rpc: tx: %v", err)
		}
	}
}

func (e *Endpoint) onFrame(payload []byte) {
	if err := e.transport.RXQueue().Send(payload, osal.WaitForever); err != nil {
		log.Printf("rpc: rx enqueue: %v", err)
	}
}

func (e *Endpoint) onNoise(reason string, b byte) {
	// Rate-limited by nature: the decoder only calls this on a byte that
	// fails to advance the parser, which a clean link rarely produces.
	log.Printf("rpc: link noise: %s (byte=0x%02x)", reason, b)
}

// phyWriter adapts phy.PHY's Send to the io.Writer-shaped link.Writer the
// encoder expects.
type phyWriter struct {
	p phy.PHY
}

func (w phyWriter) Write(p []byte) (int, error) {
	return w.p.Send(p)
}
