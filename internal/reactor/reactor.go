package reactor

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/yourusername/webserver/internal/applog"
	"github.com/yourusername/webserver/internal/httpstate"
	"github.com/yourusername/webserver/internal/metrics"
	"github.com/yourusername/webserver/internal/socket"
	"github.com/yourusername/webserver/internal/timerlist"
	"github.com/yourusername/webserver/internal/workerpool"
)

// Config holds everything needed to run one reactor instance, covering
// both the original's command-line switches (port, TRIGMode,
// actor_model, thread count) and the additions spec calls for (doc
// root, idle timeout).
type Config struct {
	ListenAddr   string
	DocRoot      string
	Mode         httpstate.Mode
	Concurrency  workerpool.Mode
	WorkerCount  int
	MaxTasks     int
	IdleTimeout  time.Duration
	TickInterval time.Duration
	Linger       bool
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 8
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = 10000
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 5 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 3 * c.TickInterval
	}
	return c
}

// Reactor is the single-threaded readiness loop tying the connection
// arena, the platform poller, the self-pipe, the idle-timer list, the
// worker pool, and request fulfillment together. It implements
// workerpool.Handler itself (see io.go) so a Task handed to a worker
// calls straight back into it.
type Reactor struct {
	cfg   Config
	users httpstate.UserStore
	log   *applog.Logger

	listenAddr net.Addr
	listenFile *os.File
	listenFd   int32

	poller Poller
	arena  *Arena
	pipe   *selfPipe

	timers   *timerlist.List
	timersMu sync.Mutex

	pool *workerpool.Pool

	activeConns atomic.Int64
	shutdown    atomic.Bool
	tickerStop  chan struct{}
	tickerDone  chan struct{}
}

// New builds a Reactor. Listen (or Run, which calls it) must be invoked
// before the event loop starts.
func New(cfg Config, users httpstate.UserStore, log *applog.Logger) *Reactor {
	return &Reactor{
		cfg:    cfg.withDefaults(),
		users:  users,
		log:    log,
		arena:  NewArena(),
		timers: timerlist.New(),
	}
}

// Listen opens the listening socket, tunes it, and wires up the
// poller, self-pipe, and worker pool. Run calls this automatically if
// it hasn't been called yet.
func (r *Reactor) Listen() error {
	if r.listenFile != nil {
		return nil
	}

	ln, err := net.Listen("tcp", r.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("reactor: listen %s: %w", r.cfg.ListenAddr, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("reactor: %s did not produce a TCP listener", r.cfg.ListenAddr)
	}
	if err := socket.ApplyListener(tcpLn, socket.DefaultConfig()); err != nil {
		ln.Close()
		return fmt.Errorf("reactor: tune listener: %w", err)
	}
	r.listenAddr = tcpLn.Addr()

	// File() duplicates the fd into a blocking-mode *os.File; the
	// original net.TCPListener is then redundant and closed, leaving the
	// dup as the reactor's own fd to poll directly with accept4. The
	// *os.File must be kept alive for the reactor's lifetime: its
	// finalizer closes the fd once it becomes unreachable.
	file, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return fmt.Errorf("reactor: export listener fd: %w", err)
	}
	ln.Close()

	fd := int(file.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		file.Close()
		return fmt.Errorf("reactor: set listener nonblocking: %w", err)
	}

	poller, err := NewPoller(r.cfg.Mode == httpstate.ModeEdgeTriggered)
	if err != nil {
		file.Close()
		return fmt.Errorf("reactor: create poller: %w", err)
	}
	if err := poller.AddRead(int32(fd)); err != nil {
		poller.Close()
		file.Close()
		return fmt.Errorf("reactor: register listener: %w", err)
	}

	pipe, err := newSelfPipe(syscall.SIGINT, syscall.SIGTERM)
	if err != nil {
		poller.Close()
		file.Close()
		return fmt.Errorf("reactor: create self-pipe: %w", err)
	}
	if err := poller.AddRead(int32(pipe.readFd)); err != nil {
		pipe.close()
		poller.Close()
		file.Close()
		return fmt.Errorf("reactor: register self-pipe: %w", err)
	}

	pool, err := workerpool.New(r.cfg.Concurrency, r, r.cfg.WorkerCount, r.cfg.MaxTasks)
	if err != nil {
		pipe.close()
		poller.Close()
		file.Close()
		return fmt.Errorf("reactor: start worker pool: %w", err)
	}

	r.listenFile = file
	r.listenFd = int32(fd)
	r.poller = poller
	r.pipe = pipe
	r.pool = pool
	r.tickerStop = make(chan struct{})
	r.tickerDone = make(chan struct{})
	go r.runTicker()
	return nil
}

// runTicker periodically wakes the event loop to run idle-eviction
// sweeps, the Go replacement for the original's alarm(TIMESLOT)/SIGALRM
// loop: a real timer signal would race the runtime's own signal
// handling, so a goroutine drives the same wakeup through the self-pipe
// instead.
func (r *Reactor) runTicker() {
	defer close(r.tickerDone)
	t := time.NewTicker(r.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.pipe.writeByte(sigByteTick)
		case <-r.tickerStop:
			return
		}
	}
}

// Run drives the event loop until ctx is canceled or a shutdown signal
// arrives on the self-pipe, then waits for in-flight work to finish.
func (r *Reactor) Run(ctx context.Context) error {
	if err := r.Listen(); err != nil {
		return err
	}
	defer r.teardown()

	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.pipe.writeByte(sigByteShutdown)
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	events := make([]Event, 128)
	for {
		n, err := r.poller.Wait(events, -1)
		if err != nil {
			return fmt.Errorf("reactor: poll: %w", err)
		}
		now := time.Now()
		for i := 0; i < n; i++ {
			r.handleEvent(events[i], now)
		}
		if r.shutdown.Load() && r.activeConns.Load() == 0 {
			return nil
		}
	}
}

func (r *Reactor) handleEvent(ev Event, now time.Time) {
	switch ev.Fd {
	case r.listenFd:
		if !r.shutdown.Load() {
			r.acceptLoop()
			r.poller.ModRead(r.listenFd)
		}
	case int32(r.pipe.readFd):
		for _, b := range r.pipe.drain() {
			switch b {
			case sigByteShutdown:
				r.beginShutdown()
			case sigByteTick:
				r.sweepIdle(now)
			}
		}
		r.poller.ModRead(int32(r.pipe.readFd))
	default:
		r.handleConnEvent(ev)
	}
}

// beginShutdown stops accepting new connections and lets already-open
// ones finish their in-flight work; Run exits once activeConns reaches
// zero.
func (r *Reactor) beginShutdown() {
	if r.shutdown.CompareAndSwap(false, true) {
		if r.log != nil {
			r.log.Infof("reactor: shutdown requested, draining %d connections", r.activeConns.Load())
		}
	}
}

func (r *Reactor) teardown() {
	if r.tickerStop != nil {
		close(r.tickerStop)
		<-r.tickerDone
	}
	if r.pool != nil {
		r.pool.Close()
	}
	if r.pipe != nil {
		r.pipe.close()
	}
	if r.poller != nil {
		r.poller.Close()
	}
	if r.listenFile != nil {
		r.listenFile.Close()
	}
}

// sweepIdle runs on every tick, expiring whichever timer entries have
// passed, the Go analogue of the original's Utils::timer_handler calling
// tick() off SIGALRM.
func (r *Reactor) sweepIdle(now time.Time) {
	r.timersMu.Lock()
	r.timers.Tick(now)
	r.timersMu.Unlock()
}

// idleExpired is the callback threaded onto every connection's timer
// entry. It closes the connection unless the slot has since been
// recycled (stale callback) or is already mid-I/O on the worker pool.
func (r *Reactor) idleExpired(e *timerlist.Entry) {
	slot := r.arena.Slot(int(e.ConnID))
	if !slot.Valid(e.Generation) {
		return
	}
	if slot.State() != StateIdle {
		// A read or write is in flight; the connection made progress
		// recently enough to be mid-request, not idle. Tick has already
		// unlinked e, so put it back for another full timeout (timersMu
		// is still held by sweepIdle); touchIdle extends it again once
		// that work completes.
		e.ExpireAt = time.Now().Add(r.cfg.IdleTimeout)
		r.timers.Add(e)
		return
	}
	if r.log != nil {
		r.log.Infof("reactor: closing fd %d after idle timeout", e.ConnID)
	}
	metrics.TimerEvictions.Inc()
	r.closeConnTimerFired(int(e.ConnID), e.Generation)
}

func (r *Reactor) scheduleIdle(fd int, gen uint32) {
	e := &timerlist.Entry{
		ExpireAt:   time.Now().Add(r.cfg.IdleTimeout),
		ConnID:     uint32(fd),
		Generation: gen,
		Callback:   r.idleExpired,
	}
	r.timersMu.Lock()
	r.timers.Add(e)
	r.timersMu.Unlock()
	r.arena.Slot(fd).SetTimer(e)
}

// Addr returns the bound listen address, useful when ListenAddr asked
// for an ephemeral port (":0") and the caller needs to know which one
// was actually chosen. Only valid after Listen (or Run) succeeds.
func (r *Reactor) Addr() net.Addr {
	return r.listenAddr
}

// touchIdle extends a connection's idle deadline after it makes
// progress, the equivalent of the original's adjust_timer call.
func (r *Reactor) touchIdle(fd int) {
	slot := r.arena.Slot(fd)
	e := slot.Timer()
	if e == nil {
		return
	}
	r.timersMu.Lock()
	e.ExpireAt = time.Now().Add(r.cfg.IdleTimeout)
	r.timers.Adjust(e)
	r.timersMu.Unlock()
}
