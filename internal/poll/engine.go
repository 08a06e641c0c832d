// internal/poll/engine.go
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovenlabs/nanolink/protocol"
)

// StatusFunc fetches one status snapshot from the device.
type StatusFunc func(ctx context.Context) (protocol.SensorValueList, error)

// Engine turns periodic status requests into a push-style feed.
//
// Each tick fetches a snapshot; on success it stores the snapshot and
// invokes every subscriber once, with no payload. Subscribers read
// LastStatus themselves. A failed tick logs and leaves LastStatus alone;
// the loop never escalates repeated failures.
//
// Stop policy: Stop cancels an in-flight request and blocks until the
// loop goroutine has exited. A request that already succeeded completes
// its fan-out before Stop returns; a cancelled one fires nobody. Either
// way, once Stop returns no subscriber runs.
type Engine struct {
	fetch StatusFunc
	log   zerolog.Logger

	mu      sync.Mutex
	subs    map[int]func()
	nextID  int
	last    protocol.SensorValueList
	hasLast bool
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// tick is swappable so tests can drive virtual time.
	tick func(time.Duration) (<-chan time.Time, func())
}

// NewEngine creates a stopped engine.
func NewEngine(fetch StatusFunc, log zerolog.Logger) *Engine {
	return &Engine{
		fetch: fetch,
		log:   log,
		subs:  make(map[int]func()),
		tick:  tickerTick,
	}
}

func tickerTick(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start launches the poll loop. No-op while already running.
func (e *Engine) Start(interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running || interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	go e.loop(ctx, interval, e.done)
}

// Stop halts the loop and waits for it. Safe to call when stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Subscribe registers a callback fired after each successful tick.
func (e *Engine) Subscribe(fn func()) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.subs[e.nextID] = fn
	return e.nextID
}

// Unsubscribe removes a registration. Unknown ids are ignored.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, id)
}

// LastStatus returns the most recent snapshot, if any tick has succeeded.
func (e *Engine) LastStatus() (protocol.SensorValueList, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.hasLast
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	tick, stop := e.tick(interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	vals, err := e.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.log.Warn().Err(err).Msg("status poll failed")
		}
		return
	}

	e.mu.Lock()
	e.last = vals
	e.hasLast = true
	subs := make([]func(), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		e.fire(fn)
	}
}

// fire runs one callback; a panicking subscriber must not take down the
// loop or starve the remaining subscribers.
func (e *Engine) fire(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("subscriber panicked")
		}
	}()
	fn()
}
