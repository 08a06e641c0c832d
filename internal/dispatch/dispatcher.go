// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovenlabs/nanolink/protocol"
)

// Transport is the exact write surface the dispatcher needs.
// Notifications come back through HandleNotify, registered once by the
// connection layer.
type Transport interface {
	Write(p []byte) error
	IsConnected() bool
}

// Config is the per-exchange policy.
type Config struct {
	Layout       protocol.Layout
	MaxChunkSize int           // bytes per write; BLE default 20
	RetryLimit   int           // extra write attempts after the first
	RetryBackoff time.Duration // delay between write attempts
}

const (
	defaultMaxChunkSize = 20
	defaultRetryLimit   = 2
	defaultRetryBackoff = 100 * time.Millisecond
)

// Dispatcher owns the single-flight request lifecycle.
//
// The device processes one command at a time and the wire format carries no
// correlation id, so the next complete valid frame belongs to the current
// request. Exclusivity is therefore a correctness requirement: callers
// queue on a capacity-1 semaphore channel and are admitted in block order.
type Dispatcher struct {
	cfg Config
	tr  Transport
	log zerolog.Logger

	sem chan struct{}

	// mu guards the in-flight exchange state shared with HandleNotify.
	mu       sync.Mutex
	asm      *protocol.Assembler
	inflight chan protocol.Frame
}

// New creates a dispatcher. Zero config fields take defaults.
func New(cfg Config, tr Transport, log zerolog.Logger) *Dispatcher {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = defaultMaxChunkSize
	}
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = defaultRetryLimit
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}

	return &Dispatcher{
		cfg: cfg,
		tr:  tr,
		log: log,
		sem: make(chan struct{}, 1),
		asm: protocol.NewAssembler(cfg.Layout),
	}
}

// Send submits a command and waits for the matched response frame.
// Concurrent callers block until the exchange ahead of them finishes.
func (d *Dispatcher) Send(ctx context.Context, kind protocol.MessageKind, payload []byte, timeout time.Duration) (protocol.Frame, error) {
	if !d.tr.IsConnected() {
		return protocol.Frame{}, protocol.ErrNotConnected
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return protocol.Frame{}, ctx.Err()
	}
	defer func() { <-d.sem }()

	return d.exchange(ctx, kind, payload, timeout)
}

// TrySend is Send without queueing: if an exchange is already in flight it
// fails immediately with ErrDeviceBusy.
func (d *Dispatcher) TrySend(ctx context.Context, kind protocol.MessageKind, payload []byte, timeout time.Duration) (protocol.Frame, error) {
	if !d.tr.IsConnected() {
		return protocol.Frame{}, protocol.ErrNotConnected
	}

	select {
	case d.sem <- struct{}{}:
	default:
		return protocol.Frame{}, protocol.ErrDeviceBusy
	}
	defer func() { <-d.sem }()

	return d.exchange(ctx, kind, payload, timeout)
}

// Post writes a command the device does not answer. It still takes the
// exclusivity slot so the write cannot interleave with a running exchange.
func (d *Dispatcher) Post(ctx context.Context, kind protocol.MessageKind, payload []byte) error {
	if !d.tr.IsConnected() {
		return protocol.ErrNotConnected
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.sem }()

	d.mu.Lock()
	d.asm.Reset()
	d.mu.Unlock()

	frame, err := d.cfg.Layout.Encode(protocol.Frame{Domain: protocol.DomainConfig, Kind: kind, Payload: payload})
	if err != nil {
		return err
	}
	return d.writeChunks(ctx, frame)
}

// exchange runs one request/response cycle. Caller holds the semaphore.
func (d *Dispatcher) exchange(ctx context.Context, kind protocol.MessageKind, payload []byte, timeout time.Duration) (protocol.Frame, error) {
	// Fresh assembly state and result slot per call. Nothing survives from
	// the previous exchange.
	result := make(chan protocol.Frame, 1)
	d.mu.Lock()
	d.asm.Reset()
	d.inflight = result
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inflight = nil
		d.mu.Unlock()
	}()

	frame, err := d.cfg.Layout.Encode(protocol.Frame{Domain: protocol.DomainConfig, Kind: kind, Payload: payload})
	if err != nil {
		return protocol.Frame{}, err
	}

	if err := d.writeChunks(ctx, frame); err != nil {
		return protocol.Frame{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-result:
		return resp, nil
	case <-timer.C:
		d.log.Debug().Stringer("kind", kind).Dur("timeout", timeout).Msg("exchange timed out")
		return protocol.Frame{}, protocol.ErrTimeout
	case <-ctx.Done():
		return protocol.Frame{}, ctx.Err()
	}
}

func (d *Dispatcher) writeChunks(ctx context.Context, frame []byte) error {
	for _, chunk := range protocol.Split(frame, d.cfg.MaxChunkSize) {
		if err := d.writeRetry(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// writeRetry attempts one chunk write with bounded retries and backoff.
func (d *Dispatcher) writeRetry(ctx context.Context, chunk []byte) error {
	var last error
	for attempt := 0; attempt <= d.cfg.RetryLimit; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.cfg.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		last = d.tr.Write(chunk)
		if last == nil {
			return nil
		}
		d.log.Debug().Err(last).Int("attempt", attempt+1).Msg("chunk write failed")
	}
	return fmt.Errorf("%w: %v", protocol.ErrRetryExhausted, last)
}

// HandleNotify feeds one inbound notification chunk. Register it once with
// the transport's notify callback at connection time.
//
// A corrupt reassembled frame is discarded and assembly restarts; the
// in-flight caller keeps waiting until its deadline. Chunks arriving with
// no request in flight are dropped.
func (d *Dispatcher) HandleNotify(p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inflight == nil {
		d.log.Debug().Int("len", len(p)).Msg("dropping notify chunk with no request in flight")
		return
	}

	raw, done := d.asm.Feed(p)
	if !done {
		return
	}

	resp, err := d.cfg.Layout.Decode(raw)
	if err != nil {
		d.log.Debug().Err(err).Msg("discarding corrupt frame")
		d.asm.Reset()
		return
	}

	d.inflight <- resp
	d.inflight = nil
}
