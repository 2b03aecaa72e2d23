package osal

import (
	"testing"
	"time"
)

func TestQueueSendReceiveOrder(t *testing.T) {
	q := NewQueue[int](4)
	for i := 0; i < 4; i++ {
		if err := q.Send(i, WaitForever); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	for i := 0; i < 4; i++ {
		got, err := q.Receive(WaitForever)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if got != i {
			t.Fatalf("Receive = %d, want %d", got, i)
		}
	}
}

func TestQueueTrySendFull(t *testing.T) {
	q := NewQueue[int](1)
	if err := q.TrySend(1); err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	if err := q.TrySend(2); err != ErrFull {
		t.Fatalf("TrySend on full queue = %v, want ErrFull", err)
	}
}

func TestQueueTryReceiveEmpty(t *testing.T) {
	q := NewQueue[int](1)
	if _, err := q.TryReceive(); err != ErrEmpty {
		t.Fatalf("TryReceive on empty queue = %v, want ErrEmpty", err)
	}
}

func TestQueueReceiveTimeout(t *testing.T) {
	q := NewQueue[int](1)
	start := time.Now()
	_, err := q.Receive(20 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("Receive timeout = %v, want ErrTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("Receive returned before timeout elapsed")
	}
}

func TestQueueCloseUnblocksReceive(t *testing.T) {
	q := NewQueue[int](1)
	done := make(chan error, 1)
	go func() {
		_, err := q.Receive(WaitForever)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("Receive after close = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}

func TestBinarySemaphoreAtMostOnce(t *testing.T) {
	sem := NewBinarySemaphore()
	sem.Give()
	sem.Give()
	if !sem.Take(WaitForever) {
		t.Fatal("Take after double Give should succeed once")
	}
	if sem.Take(20 * time.Millisecond) {
		t.Fatal("second Take should time out: Give was coalesced to one signal")
	}
}

func TestBinarySemaphoreTimeout(t *testing.T) {
	sem := NewBinarySemaphore()
	if sem.Take(20 * time.Millisecond) {
		t.Fatal("Take on never-given semaphore should time out")
	}
}
