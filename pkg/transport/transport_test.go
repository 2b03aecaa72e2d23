package transport

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/librescoot/linkrpc/pkg/osal"
)

// fakeServer drains tr's TX queue, parses the REQ/STREAM, and replies
// according to respond, feeding the reply straight back into tr's RX
// queue — a loopback good enough to exercise Request/Stream end to end
// without a real PHY/link layer.
func fakeServer(t *testing.T, tr *Transport, respond func(req Message) (Message, bool)) func() {
	t.Helper()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			payload, err := tr.TXQueue().Receive(100 * time.Millisecond)
			select {
			case <-stop:
				return
			default:
			}
			if err != nil {
				continue
			}
			req, err := Parse(payload)
			if err != nil {
				continue
			}
			resp, ok := respond(req)
			if !ok {
				continue
			}
			out, err := Build(resp)
			if err != nil {
				t.Errorf("fakeServer: Build response: %v", err)
				continue
			}
			if err := tr.RXQueue().Send(out, osal.WaitForever); err != nil {
				t.Errorf("fakeServer: enqueue response: %v", err)
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

func TestRequestResponseRoundTrip(t *testing.T) {
	tr := New()
	tr.Start()
	defer tr.Stop()

	stopServer := fakeServer(t, tr, func(req Message) (Message, bool) {
		if req.Name != "ping" {
			return Message{}, false
		}
		return Message{Type: TypeRESP, Seq: req.Seq, Name: req.Name, Args: []byte("pong")}, true
	})
	defer stopServer()

	respBuf := make([]byte, ArgsMax)
	n, err := tr.Request("ping", nil, respBuf, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(respBuf[:n]) != "pong" {
		t.Fatalf("Request response = %q, want %q", respBuf[:n], "pong")
	}
}

func TestRequestUnknownFunctionReturnsError(t *testing.T) {
	tr := New()
	tr.Start()
	defer tr.Stop()

	stopServer := fakeServer(t, tr, func(req Message) (Message, bool) {
		return Message{Type: TypeERR, Seq: req.Seq, Name: req.Name, Args: []byte("NOFUNC")}, true
	})
	defer stopServer()

	respBuf := make([]byte, ArgsMax)
	_, err := tr.Request("nope", nil, respBuf, 500*time.Millisecond)
	if err != ErrGeneric {
		t.Fatalf("Request with ERR reply = %v, want ErrGeneric", err)
	}
}

// TestResponseOverflowSafety exercises the dispatcher's overflow-safety
// property directly, since Request's own precondition
// (respBuf >= ArgsMax, matching the wire's ArgsMax cap on args) means a
// caller can never legitimately under-size its buffer relative to what the
// wire can carry; the overflow path exists for a waiter allocated with a
// smaller capacity than the wire maximum.
func TestResponseOverflowSafety(t *testing.T) {
	tr := New()
	tr.Start()
	defer tr.Stop()

	n := 0
	smallBuf := make([]byte, 4)
	w, err := tr.waiters.Alloc(smallBuf, &n)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	tooBig := []byte("this response is longer than four bytes")
	tr.dispatchResponse(Message{Type: TypeRESP, Seq: w.seq, Name: "x", Args: tooBig})

	if w.Result != ResultOverflow {
		t.Fatalf("Result = %v, want ResultOverflow", w.Result)
	}
	if n != 0 {
		t.Fatalf("respLen = %d, want 0 on overflow", n)
	}
	for _, b := range smallBuf {
		if b != 0 {
			t.Fatal("respBuf must not be written on overflow")
		}
	}
	tr.waiters.Free(w)
}

func TestStreamProducesNoResponse(t *testing.T) {
	tr := New()
	tr.Start()
	defer tr.Stop()

	invoked := make(chan []byte, 1)
	stopServer := fakeServer(t, tr, func(req Message) (Message, bool) {
		invoked <- req.Args
		return Message{}, false // STREAM gets no reply
	})
	defer stopServer()

	if err := tr.Stream("log", []byte{0x01, 0x02}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	select {
	case args := <-invoked:
		if len(args) != 2 || args[0] != 0x01 || args[1] != 0x02 {
			t.Fatalf("unexpected stream args: %v", args)
		}
	case <-time.After(time.Second):
		t.Fatal("stream message was never observed on the wire")
	}
}

func TestConcurrentRequestsBothSucceed(t *testing.T) {
	tr := New()
	tr.Start()
	defer tr.Stop()

	stopServer := fakeServer(t, tr, func(req Message) (Message, bool) {
		return Message{Type: TypeRESP, Seq: req.Seq, Name: req.Name, Args: []byte("pong")}, true
	})
	defer stopServer()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, ArgsMax)
			n, err := tr.Request("ping", nil, buf, 500*time.Millisecond)
			if err != nil {
				errs <- err
				return
			}
			if string(buf[:n]) != "pong" {
				errs <- fmt.Errorf("got %q, want %q", buf[:n], "pong")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Request failed: %v", err)
		}
	}
}

func TestTimeoutThenLateResponseDropped(t *testing.T) {
	tr := New()
	tr.Start()
	defer tr.Stop()

	var muSeq sync.Mutex
	var slowSeq byte
	_ = slowSeq
	release := make(chan struct{})
	var closeOnce sync.Once

	stopServer := fakeServer(t, tr, func(req Message) (Message, bool) {
		if req.Name == "slow" {
			muSeq.Lock()
			slowSeq = req.Seq
			muSeq.Unlock()
			// Hold the reply until told to send it, without blocking the
			// fake server from answering other requests meanwhile.
			go func(seq byte) {
				<-release
				late, _ := Build(Message{Type: TypeRESP, Seq: seq, Name: "slow", Args: []byte("late")})
				tr.RXQueue().Send(late, osal.WaitForever)
			}(req.Seq)
			return Message{}, false
		}
		return Message{Type: TypeRESP, Seq: req.Seq, Name: req.Name, Args: []byte("pong")}, true
	})
	defer stopServer()
	defer closeOnce.Do(func() { close(release) })

	bufA := make([]byte, ArgsMax)
	_, errA := tr.Request("slow", nil, bufA, 30*time.Millisecond)
	if errA == nil {
		t.Fatal("caller A should observe a timeout")
	}

	bufB := make([]byte, ArgsMax)
	nB, errB := tr.Request("ping", nil, bufB, 500*time.Millisecond)
	if errB != nil {
		t.Fatalf("caller B should succeed: %v", errB)
	}
	if string(bufB[:nB]) != "pong" {
		t.Fatalf("caller B got %q, want pong", bufB[:nB])
	}

	closeOnce.Do(func() { close(release) })
	time.Sleep(50 * time.Millisecond)
	if string(bufB[:nB]) != "pong" {
		t.Fatalf("caller B's buffer was mutated by the stale late response: %q", bufB[:nB])
	}
}
