package workerpool

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingHandler struct {
	reads, writes, processes atomic.Int64
}

func (h *countingHandler) Read(Task) bool  { h.reads.Add(1); return true }
func (h *countingHandler) Write(Task) bool { h.writes.Add(1); return true }
func (h *countingHandler) Process(Task)    { h.processes.Add(1) }

func TestProactorModeOnlyProcesses(t *testing.T) {
	h := &countingHandler{}
	p, err := New(ModeProactor, h, 4, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	for i := 0; i < 10; i++ {
		if err := p.Submit(Task{ConnID: uint32(i), Intent: IntentRead}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	waitForCount(t, &h.processes, 10)
	if h.reads.Load() != 0 || h.writes.Load() != 0 {
		t.Fatalf("expected proactor mode to never call Read/Write directly")
	}
}

func TestReactorModeDispatchesByIntent(t *testing.T) {
	h := &countingHandler{}
	p, err := New(ModeReactor, h, 2, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	p.Submit(Task{ConnID: 1, Intent: IntentRead})
	p.Submit(Task{ConnID: 2, Intent: IntentWrite})
	p.Submit(Task{ConnID: 3, Intent: IntentProcess})

	waitForCount(t, &h.reads, 1)
	waitForCount(t, &h.writes, 1)
	waitForCount(t, &h.processes, 1)
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	h := &blockingHandler{release: block}
	p, err := New(ModeProactor, h, 1, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		close(block)
		p.Close()
	}()

	if err := p.Submit(Task{ConnID: 1}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	time.Sleep(10 * time.Millisecond) // let the single worker pick it up and block
	if err := p.Submit(Task{ConnID: 2}); err != nil {
		t.Fatalf("second Submit (should just fill queue): %v", err)
	}
	if err := p.Submit(Task{ConnID: 3}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

type blockingHandler struct {
	release chan struct{}
}

func (h *blockingHandler) Read(Task) bool  { return true }
func (h *blockingHandler) Write(Task) bool { return true }
func (h *blockingHandler) Process(Task)    { <-h.release }

func TestCloseDrainsAndStops(t *testing.T) {
	h := &countingHandler{}
	p, err := New(ModeProactor, h, 3, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		p.Submit(Task{ConnID: uint32(i)})
	}
	p.Close()
	if h.processes.Load() != 5 {
		t.Fatalf("expected all 5 tasks processed before Close returns, got %d", h.processes.Load())
	}
	if err := p.Submit(Task{ConnID: 99}); err == nil {
		t.Fatalf("expected Submit after Close to fail")
	}
}

func waitForCount(t *testing.T, counter *atomic.Int64, want int64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("counter never reached %d, stuck at %d", want, counter.Load())
}
