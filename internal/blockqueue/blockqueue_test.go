package blockqueue

import (
	"testing"
	"time"
)

func TestPushPopFIFO(t *testing.T) {
	q, err := New[int](3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, v := range []int{1, 2, 3} {
		if err := q.Push(v); err != nil {
			t.Fatalf("Push(%d): %v", v, err)
		}
	}
	if err := q.Push(4); err != ErrFull {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	for _, want := range []int{1, 2, 3} {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %d, %v; want %d, true", got, ok, want)
		}
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q, _ := New[string](2)
	result := make(chan string, 1)
	go func() {
		v, ok := q.Pop()
		if !ok {
			result <- "closed"
			return
		}
		result <- v
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-result:
		t.Fatalf("Pop returned before any Push")
	default:
	}

	q.Push("hello")
	select {
	case v := <-result:
		if v != "hello" {
			t.Fatalf("got %q, want hello", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("Pop never woke after Push")
	}
}

func TestPopTimedExpires(t *testing.T) {
	q, _ := New[int](1)
	start := time.Now()
	_, ok := q.PopTimed(20 * time.Millisecond)
	if ok {
		t.Fatalf("expected timeout")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("returned too early")
	}
}

func TestCloseWakesWaiters(t *testing.T) {
	q, _ := New[int](1)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected false after close with no items")
		}
	case <-time.After(time.Second):
		t.Fatalf("Pop never woke after Close")
	}
}

func TestPushAfterCloseFails(t *testing.T) {
	q, _ := New[int](1)
	q.Close()
	if err := q.Push(1); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
