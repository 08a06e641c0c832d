// internal/ble/transport.go
package ble

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"github.com/ovenlabs/nanolink/protocol"
)

// GATT identity of the appliance. One service, a write characteristic for
// commands and a notify characteristic for responses.
const (
	serviceUUID = "0e140000-0af1-4582-a242-773e63054c68"
	writeUUID   = "0e140001-0af1-4582-a242-773e63054c68"
	notifyUUID  = "0e140002-0af1-4582-a242-773e63054c68"

	deviceName = "Nano"
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

var (
	svcUUID   = mustUUID(serviceUUID)
	wrUUID    = mustUUID(writeUUID)
	ntfUUID   = mustUUID(notifyUUID)
	uuidSet   = []bluetooth.UUID{svcUUID}
	charUUIDs = []bluetooth.UUID{wrUUID, ntfUUID}
)

// Transport adapts the OS BLE central to the dispatcher's write/notify
// surface. Exactly one physical link to one device at a time.
type Transport struct {
	adapter *bluetooth.Adapter
	log     zerolog.Logger

	mu           sync.Mutex
	dev          bluetooth.Device
	write        bluetooth.DeviceCharacteristic
	notify       bluetooth.DeviceCharacteristic
	connected    bool
	onDisconnect []func()
}

// New enables the default adapter and installs the link-state handler.
func New(log zerolog.Logger) (*Transport, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	t := &Transport{adapter: adapter, log: log}

	adapter.SetConnectHandler(func(_ bluetooth.Device, connected bool) {
		if !connected {
			t.handleDisconnect()
		}
	})

	return t, nil
}

// Connect finds and connects the appliance, then resolves the command and
// response characteristics. An empty address means discover by service
// UUID (or advertised name).
func (t *Transport) Connect(address string, discoverTimeout, connectTimeout time.Duration) error {
	if t.IsConnected() {
		return nil
	}

	target, err := t.scanFor(address, discoverTimeout)
	if err != nil {
		return err
	}

	t.log.Info().Str("address", target.Address.String()).Msg("connecting")

	dev, err := t.adapter.Connect(target.Address, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(connectTimeout),
	})
	if err != nil {
		return fmt.Errorf("ble: connect %s: %w", target.Address.String(), err)
	}

	svcs, err := dev.DiscoverServices(uuidSet)
	if err != nil || len(svcs) == 0 {
		dev.Disconnect()
		return fmt.Errorf("ble: discover service: %w", errOr(err, "service not found"))
	}

	chars, err := svcs[0].DiscoverCharacteristics(charUUIDs)
	if err != nil || len(chars) < 2 {
		dev.Disconnect()
		return fmt.Errorf("ble: discover characteristics: %w", errOr(err, "characteristics not found"))
	}

	t.mu.Lock()
	t.dev = dev
	t.write = chars[0]
	t.notify = chars[1]
	t.connected = true
	t.mu.Unlock()

	return nil
}

// scanFor blocks until a matching advertisement or the timeout.
func (t *Transport) scanFor(address string, timeout time.Duration) (bluetooth.ScanResult, error) {
	var (
		found  bluetooth.ScanResult
		gotOne bool
	)

	timer := time.AfterFunc(timeout, func() { t.adapter.StopScan() })
	defer timer.Stop()

	err := t.adapter.Scan(func(a *bluetooth.Adapter, res bluetooth.ScanResult) {
		if address != "" {
			if !strings.EqualFold(res.Address.String(), address) {
				return
			}
		} else if !res.HasServiceUUID(svcUUID) && res.LocalName() != deviceName {
			return
		}

		found = res
		gotOne = true
		a.StopScan()
	})
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("ble: scan: %w", err)
	}
	if !gotOne {
		return bluetooth.ScanResult{}, errors.New("ble: device not found before scan timeout")
	}

	t.log.Info().Str("address", found.Address.String()).Str("name", found.LocalName()).Msg("found device")
	return found, nil
}

// OnNotify subscribes fn to response notifications. Call once per
// connection, before the first write.
func (t *Transport) OnNotify(fn func(p []byte)) error {
	t.mu.Lock()
	notify := t.notify
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return protocol.ErrNotConnected
	}

	if err := notify.EnableNotifications(func(buf []byte) {
		// The stack reuses the buffer between callbacks.
		fn(append([]byte(nil), buf...))
	}); err != nil {
		return fmt.Errorf("ble: enable notifications: %w", err)
	}
	return nil
}

// Write sends one chunk to the command characteristic.
func (t *Transport) Write(p []byte) error {
	t.mu.Lock()
	write := t.write
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return protocol.ErrNotConnected
	}

	if _, err := write.WriteWithoutResponse(p); err != nil {
		return fmt.Errorf("ble: write: %w", err)
	}
	return nil
}

// IsConnected reports link state.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Disconnect drops the link. Registered disconnect callbacks fire via the
// adapter's connect handler.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	dev, connected := t.dev, t.connected
	t.mu.Unlock()

	if !connected {
		return nil
	}
	return dev.Disconnect()
}

// AddOnDisconnect registers a callback for link loss and returns its
// unsubscribe func.
func (t *Transport) AddOnDisconnect(fn func()) func() {
	t.mu.Lock()
	t.onDisconnect = append(t.onDisconnect, fn)
	idx := len(t.onDisconnect) - 1
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if idx < len(t.onDisconnect) {
			t.onDisconnect[idx] = nil
		}
	}
}

func (t *Transport) handleDisconnect() {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return
	}
	t.connected = false
	cbs := append([]func(){}, t.onDisconnect...)
	t.mu.Unlock()

	t.log.Warn().Msg("device disconnected")
	for _, fn := range cbs {
		if fn != nil {
			fn()
		}
	}
}

func errOr(err error, msg string) error {
	if err != nil {
		return err
	}
	return errors.New(msg)
}
