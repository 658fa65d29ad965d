package syncutil

import (
	"testing"
	"time"
)

func TestSemaphoreWaitPost(t *testing.T) {
	sem, err := NewSemaphore(2)
	if err != nil {
		t.Fatalf("NewSemaphore: %v", err)
	}
	sem.Wait()
	sem.Wait()
	if sem.TryWait() {
		t.Fatalf("TryWait succeeded with no permits available")
	}
	sem.Post()
	if !sem.TryWait() {
		t.Fatalf("TryWait failed after Post")
	}
}

func TestNewSemaphoreRejectsNegative(t *testing.T) {
	if _, err := NewSemaphore(-1); err != ErrResourceInit {
		t.Fatalf("expected ErrResourceInit, got %v", err)
	}
}

func TestCondWaitTimeoutExpires(t *testing.T) {
	var mu Mutex
	cond := NewCond(&mu)

	mu.Lock()
	start := time.Now()
	ok := cond.WaitTimeout(20 * time.Millisecond)
	mu.Unlock()

	if ok {
		t.Fatalf("expected timeout, got signaled")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("returned before deadline")
	}
}

func TestCondBroadcastWakesWaiter(t *testing.T) {
	var mu Mutex
	cond := NewCond(&mu)
	woke := make(chan bool, 1)

	go func() {
		mu.Lock()
		ok := cond.WaitTimeout(time.Second)
		mu.Unlock()
		woke <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	cond.Broadcast()
	mu.Unlock()

	select {
	case ok := <-woke:
		if !ok {
			t.Fatalf("expected a real wake, got timeout")
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter never woke")
	}
}
