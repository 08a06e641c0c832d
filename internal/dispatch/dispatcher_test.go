// internal/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenlabs/nanolink/protocol"
)

// fakeTransport records writes and lets a test script the device side.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	failWrites int // fail this many writes before succeeding
	writes     [][]byte
	onWrite    func(chunk []byte) // runs after a successful write
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	if f.failWrites > 0 {
		f.failWrites--
		f.mu.Unlock()
		return errors.New("fake: write failed")
	}
	chunk := append([]byte(nil), p...)
	f.writes = append(f.writes, chunk)
	onWrite := f.onWrite
	f.mu.Unlock()

	if onWrite != nil {
		onWrite(chunk)
	}
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func newDispatcher(tr *fakeTransport, cfg Config) *Dispatcher {
	if cfg.Layout == (protocol.Layout{}) {
		cfg.Layout = protocol.DefaultLayout
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return New(cfg, tr, zerolog.Nop())
}

func encodeResponse(t *testing.T, kind protocol.MessageKind, payload []byte) []byte {
	t.Helper()
	b, err := protocol.DefaultLayout.Encode(protocol.Frame{
		Domain:  protocol.DomainConfig,
		Kind:    kind,
		Payload: payload,
	})
	require.NoError(t, err)
	return b
}

// respondWith wires the fake device to answer the first chunk of every
// request with the given frame, delivered in notify chunks of chunkSize.
func respondWith(d *Dispatcher, tr *fakeTransport, frame []byte, chunkSize int) {
	tr.onWrite = func([]byte) {
		for _, c := range protocol.Split(frame, chunkSize) {
			d.HandleNotify(c)
		}
	}
}

func TestSendSuccess(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := newDispatcher(tr, Config{})

	payload := protocol.EncodeIntegerValue(565)
	respondWith(d, tr, encodeResponse(t, protocol.KindGetTempSetpoint, payload), 8)

	resp, err := d.Send(context.Background(), protocol.KindGetTempSetpoint, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindGetTempSetpoint, resp.Kind)

	v, err := protocol.DecodeIntegerValue(resp.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(565), v)
}

func TestSendChunkedRequest(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := newDispatcher(tr, Config{MaxChunkSize: 10})

	// Big request payload forces multiple outbound chunks. Respond only
	// once the full request arrived.
	reqPayload := make([]byte, 35)
	total := protocol.DefaultLayout.Overhead() + len(reqPayload)
	reply := encodeResponse(t, protocol.KindEcho, []byte{1})

	var got int
	tr.onWrite = func(chunk []byte) {
		got += len(chunk)
		if got >= total {
			d.HandleNotify(reply)
		}
	}

	_, err := d.Send(context.Background(), protocol.KindEcho, reqPayload, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, tr.writeCount(), "41 bytes in chunks of 10")
}

func TestSendNotConnected(t *testing.T) {
	tr := &fakeTransport{connected: false}
	d := newDispatcher(tr, Config{})

	_, err := d.Send(context.Background(), protocol.KindGetSensors, nil, time.Second)
	assert.ErrorIs(t, err, protocol.ErrNotConnected)
	assert.Zero(t, tr.writeCount(), "no chunk may be written")
}

func TestSendTimeoutThenReusable(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := newDispatcher(tr, Config{})

	// Device never answers.
	_, err := d.Send(context.Background(), protocol.KindGetSensors, nil, 20*time.Millisecond)
	require.ErrorIs(t, err, protocol.ErrTimeout)

	// A late chunk from the dead exchange arrives. It must be dropped.
	d.HandleNotify(encodeResponse(t, protocol.KindGetSensors, protocol.EncodeIntegerValue(1)))

	// The dispatcher is idle again; the next call works without any reset.
	want := protocol.EncodeIntegerValue(90)
	respondWith(d, tr, encodeResponse(t, protocol.KindGetCookingTimer, want), 20)

	resp, err := d.Send(context.Background(), protocol.KindGetCookingTimer, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.KindGetCookingTimer, resp.Kind)
	assert.Equal(t, want, resp.Payload)
}

func TestCorruptFrameDiscardedWithinDeadline(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := newDispatcher(tr, Config{})

	valid := encodeResponse(t, protocol.KindGetSensors, protocol.EncodeIntegerValue(7))
	corrupt := append([]byte(nil), valid...)
	corrupt[len(corrupt)-1] ^= 0xff

	tr.onWrite = func([]byte) {
		d.HandleNotify(corrupt) // discarded, assembly restarts
		d.HandleNotify(valid)   // still within the same deadline
	}

	resp, err := d.Send(context.Background(), protocol.KindGetSensors, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, protocol.EncodeIntegerValue(7), resp.Payload)
}

func TestRetryExhaustedLeavesDispatcherIdle(t *testing.T) {
	tr := &fakeTransport{connected: true, failWrites: 100}
	d := newDispatcher(tr, Config{RetryLimit: 2})

	_, err := d.Send(context.Background(), protocol.KindGetSensors, nil, time.Second)
	require.ErrorIs(t, err, protocol.ErrRetryExhausted)

	// Transport recovers; dispatcher must already be back to idle.
	tr.mu.Lock()
	tr.failWrites = 0
	tr.mu.Unlock()
	respondWith(d, tr, encodeResponse(t, protocol.KindGetSensors, nil), 20)

	_, err = d.Send(context.Background(), protocol.KindGetSensors, nil, time.Second)
	assert.NoError(t, err)
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	tr := &fakeTransport{connected: true, failWrites: 2}
	d := newDispatcher(tr, Config{RetryLimit: 2})
	respondWith(d, tr, encodeResponse(t, protocol.KindGetSensors, nil), 20)

	_, err := d.Send(context.Background(), protocol.KindGetSensors, nil, time.Second)
	assert.NoError(t, err)
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := newDispatcher(tr, Config{})

	// The fake device echoes the request kind back in the response
	// payload, so any cross-talk between the two exchanges is visible.
	tr.onWrite = func(chunk []byte) {
		req, err := protocol.DefaultLayout.Decode(chunk)
		require.NoError(t, err)
		d.HandleNotify(encodeResponse(t, req.Kind, protocol.EncodeIntegerValue(int64(req.Kind))))
	}

	kinds := []protocol.MessageKind{
		protocol.KindGetTempSetpoint,
		protocol.KindGetCookingTimer,
		protocol.KindGetTempUnits,
		protocol.KindGetSensors,
	}

	var wg sync.WaitGroup
	for _, kind := range kinds {
		wg.Add(1)
		go func(kind protocol.MessageKind) {
			defer wg.Done()

			resp, err := d.Send(context.Background(), kind, nil, time.Second)
			require.NoError(t, err)
			assert.Equal(t, kind, resp.Kind)

			v, err := protocol.DecodeIntegerValue(resp.Payload)
			require.NoError(t, err)
			assert.Equal(t, int64(kind), v, "response bytes from another exchange leaked in")
		}(kind)
	}
	wg.Wait()
}

func TestTrySendBusy(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := newDispatcher(tr, Config{})

	// Park one exchange: the device stays silent until released.
	started := make(chan struct{}, 1)
	tr.onWrite = func([]byte) {
		select {
		case started <- struct{}{}:
		default:
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.Send(context.Background(), protocol.KindGetSensors, nil, 300*time.Millisecond)
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first send never wrote")
	}

	_, err := d.TrySend(context.Background(), protocol.KindGetTempUnits, nil, time.Second)
	assert.ErrorIs(t, err, protocol.ErrDeviceBusy)

	assert.ErrorIs(t, <-done, protocol.ErrTimeout)
}

func TestPostWritesWithoutAwaitingReply(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := newDispatcher(tr, Config{})

	err := d.Post(context.Background(), protocol.KindSetTempSetpoint, protocol.EncodeIntegerValue(565))
	require.NoError(t, err)
	assert.Equal(t, 1, tr.writeCount())

	// A stray notification after a post is dropped, not misdelivered.
	d.HandleNotify(encodeResponse(t, protocol.KindGetSensors, nil))
}

func TestPostNotConnected(t *testing.T) {
	tr := &fakeTransport{connected: false}
	d := newDispatcher(tr, Config{})

	err := d.Post(context.Background(), protocol.KindSetTempSetpoint, nil)
	assert.ErrorIs(t, err, protocol.ErrNotConnected)
	assert.Zero(t, tr.writeCount())
}

func TestSendContextCancelled(t *testing.T) {
	tr := &fakeTransport{connected: true}
	d := newDispatcher(tr, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Send(ctx, protocol.KindGetSensors, nil, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
