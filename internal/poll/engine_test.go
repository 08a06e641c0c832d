// internal/poll/engine_test.go
package poll

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

// fakeFetcher scripts the device side of the poll loop.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	errAt map[int]error // 1-based call number -> error
}

func (f *fakeFetcher) fetch(ctx context.Context) (protocol.SensorValueList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errAt[f.calls]; err != nil {
		return nil, err
	}
	return protocol.SensorValueList{
		{Value: int64(f.calls), Units: protocol.UnitDegreesC, Sensor: protocol.SensorWaterTemp},
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// manualEngine returns an engine driven by an unbuffered tick channel.
// Sending on the channel blocks until the loop takes the tick, so a
// returned send means the previous tick fully finished.
func manualEngine(f *fakeFetcher) (*Engine, chan time.Time) {
	e := NewEngine(f.fetch, zerolog.Nop())
	tick := make(chan time.Time)
	e.tick = func(time.Duration) (<-chan time.Time, func()) {
		return tick, func() {}
	}
	return e, tick
}

func TestTickCountIsExact(t *testing.T) {
	f := &fakeFetcher{}
	e, tick := manualEngine(f)

	// 10 virtual seconds at a 4 second interval: the tick source fires
	// exactly twice.
	e.Start(4 * time.Second)
	tick <- time.Time{}
	tick <- time.Time{}
	e.Stop()

	assert.Equal(t, 2, f.callCount())
}

func TestStopBlocksFurtherTicks(t *testing.T) {
	f := &fakeFetcher{}
	e, tick := manualEngine(f)

	e.Start(time.Second)
	tick <- time.Time{}
	e.Stop()

	// The loop is gone: nobody is listening on the tick channel anymore.
	select {
	case tick <- time.Time{}:
		t.Fatal("tick accepted after Stop")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, 1, f.callCount())
	assert.False(t, e.Running())
}

func TestSubscribersObserveSameSnapshot(t *testing.T) {
	f := &fakeFetcher{}
	e, tick := manualEngine(f)

	var mu sync.Mutex
	var seen []protocol.SensorValueList
	for i := 0; i < 3; i++ {
		e.Subscribe(func() {
			last, ok := e.LastStatus()
			require.True(t, ok)
			mu.Lock()
			seen = append(seen, last)
			mu.Unlock()
		})
	}

	e.Start(time.Second)
	tick <- time.Time{}
	e.Stop()

	require.Len(t, seen, 3, "each subscriber fires exactly once per tick")
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, seen[1], seen[2])
}

func TestFailedTickKeepsLastStatus(t *testing.T) {
	f := &fakeFetcher{errAt: map[int]error{2: errors.New("fake: timeout")}}
	e, tick := manualEngine(f)

	var fired int
	e.Subscribe(func() { fired++ })

	e.Start(time.Second)
	tick <- time.Time{} // ok
	tick <- time.Time{} // fails: no callback, lastStatus unchanged
	tick <- time.Time{} // loop survived, polls again
	e.Stop()

	assert.Equal(t, 3, f.callCount())
	assert.Equal(t, 2, fired, "no callback for the failed tick")

	last, ok := e.LastStatus()
	require.True(t, ok)
	assert.Equal(t, int64(3), last[0].Value, "snapshot from the third tick")
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	f := &fakeFetcher{}
	e, tick := manualEngine(f)

	var a, b int
	e.Subscribe(func() { a++ })
	id := e.Subscribe(func() { b++ })

	e.Start(time.Second)
	tick <- time.Time{}

	e.Unsubscribe(id)
	tick <- time.Time{}
	e.Stop()

	assert.Equal(t, 2, a)
	assert.Equal(t, 1, b)
}

func TestSubscriberPanicDoesNotKillLoop(t *testing.T) {
	f := &fakeFetcher{}
	e, tick := manualEngine(f)

	var after int
	e.Subscribe(func() { panic("subscriber bug") })
	e.Subscribe(func() { after++ })

	e.Start(time.Second)
	tick <- time.Time{}
	tick <- time.Time{}
	e.Stop()

	assert.Equal(t, 2, f.callCount())
	assert.Equal(t, 2, after, "remaining subscribers still fire")
}

func TestStartIsIdempotentAndStopIsSafe(t *testing.T) {
	f := &fakeFetcher{}
	e, tick := manualEngine(f)

	e.Stop() // stopped engine: no-op

	e.Start(time.Second)
	e.Start(time.Second) // already running: no second loop
	assert.True(t, e.Running())

	tick <- time.Time{}
	e.Stop()
	e.Stop()

	assert.Equal(t, 1, f.callCount())
}

func TestLastStatusEmptyBeforeFirstTick(t *testing.T) {
	f := &fakeFetcher{}
	e, _ := manualEngine(f)

	_, ok := e.LastStatus()
	assert.False(t, ok)
}
