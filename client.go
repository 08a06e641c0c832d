// client.go

// Package nanolink is a client for a BLE sous vide circulator. It speaks
// the appliance's proprietary framed protocol over a write/notify
// characteristic pair: one command in flight at a time, responses
// reassembled from MTU-sized notification chunks.
package nanolink

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovenlabs/nanolink/internal/ble"
	"github.com/ovenlabs/nanolink/internal/dispatch"
	"github.com/ovenlabs/nanolink/internal/poll"
	"github.com/ovenlabs/nanolink/protocol"
)

// commander is the request surface the client consumes.
type commander interface {
	Send(ctx context.Context, kind protocol.MessageKind, payload []byte, timeout time.Duration) (protocol.Frame, error)
	Post(ctx context.Context, kind protocol.MessageKind, payload []byte) error
}

// Options configures a Client. Zero fields take defaults.
type Options struct {
	// Address of the appliance; empty means discover by service UUID.
	Address string

	Layout       protocol.Layout
	MaxChunkSize int

	DiscoverTimeout time.Duration
	ConnectTimeout  time.Duration
	RequestTimeout  time.Duration

	RetryLimit   int
	RetryBackoff time.Duration

	PollInterval time.Duration

	Logger *zerolog.Logger
}

const (
	defaultDiscoverTimeout = 10 * time.Second
	defaultConnectTimeout  = 10 * time.Second
	defaultRequestTimeout  = 3 * time.Second
	defaultPollInterval    = 30 * time.Second
)

func (o *Options) fill() {
	if o.Layout == (protocol.Layout{}) {
		o.Layout = protocol.DefaultLayout
	}
	if o.DiscoverTimeout <= 0 {
		o.DiscoverTimeout = defaultDiscoverTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
}

// Client is the high-level device facade.
type Client struct {
	opts   Options
	log    zerolog.Logger
	tr     *ble.Transport
	disp   commander
	notify func(p []byte)
	engine *poll.Engine
}

// New builds a client and its BLE transport. The OS adapter is enabled
// here; the device link is made by Connect.
func New(opts Options) (*Client, error) {
	opts.fill()
	log := *opts.Logger

	tr, err := ble.New(log)
	if err != nil {
		return nil, err
	}

	c := &Client{opts: opts, log: log, tr: tr}
	disp := dispatch.New(dispatch.Config{
		Layout:       opts.Layout,
		MaxChunkSize: opts.MaxChunkSize,
		RetryLimit:   opts.RetryLimit,
		RetryBackoff: opts.RetryBackoff,
	}, tr, log)
	c.disp = disp
	c.notify = disp.HandleNotify
	c.engine = poll.NewEngine(c.fetchStatus, log)

	return c, nil
}

// Connect discovers (if needed) and connects the appliance, then routes
// response notifications into the dispatcher.
func (c *Client) Connect() error {
	if err := c.tr.Connect(c.opts.Address, c.opts.DiscoverTimeout, c.opts.ConnectTimeout); err != nil {
		return err
	}
	return c.tr.OnNotify(c.notify)
}

// Disconnect stops polling and drops the link.
func (c *Client) Disconnect() error {
	c.engine.Stop()
	return c.tr.Disconnect()
}

// IsConnected reports link state.
func (c *Client) IsConnected() bool {
	return c.tr != nil && c.tr.IsConnected()
}

// OnDisconnect registers a link-loss callback and returns its unsubscribe
// func.
func (c *Client) OnDisconnect(fn func()) func() {
	return c.tr.AddOnDisconnect(fn)
}

// Send is the raw passthrough for callers that build their own payloads.
func (c *Client) Send(ctx context.Context, kind protocol.MessageKind, payload []byte) (protocol.Frame, error) {
	return c.disp.Send(ctx, kind, payload, c.opts.RequestTimeout)
}

// ---- typed operations ----

// GetSensorValues requests a status report and scales it.
func (c *Client) GetSensorValues(ctx context.Context) (SensorValues, error) {
	list, err := c.fetchStatus(ctx)
	if err != nil {
		return SensorValues{}, err
	}
	return SensorValuesFromList(list)
}

// GetStatus reports "running" or "stopped", derived from motor speed.
func (c *Client) GetStatus(ctx context.Context) (string, error) {
	sv, err := c.GetSensorValues(ctx)
	if err != nil {
		return "", err
	}
	if sv.Running() {
		return "running", nil
	}
	return "stopped", nil
}

// GetCurrentTemperature returns the water temperature in the device units.
func (c *Client) GetCurrentTemperature(ctx context.Context) (float64, error) {
	sv, err := c.GetSensorValues(ctx)
	if err != nil {
		return 0, err
	}
	return sv.WaterTemp, nil
}

// GetTargetTemperature returns the setpoint in the device units.
func (c *Client) GetTargetTemperature(ctx context.Context) (float64, error) {
	v, err := c.sendInteger(ctx, protocol.KindGetTempSetpoint)
	if err != nil {
		return 0, err
	}
	// The setpoint is exchanged in tenths of a degree.
	return float64(v) / 10, nil
}

// SetTargetTemperature sets the setpoint in the device units.
func (c *Client) SetTargetTemperature(ctx context.Context, temp float64) error {
	v := int64(math.Round(temp * 10))
	return c.disp.Post(ctx, protocol.KindSetTempSetpoint, protocol.EncodeIntegerValue(v))
}

// GetTimer returns the remaining cook timer in minutes.
func (c *Client) GetTimer(ctx context.Context) (int64, error) {
	return c.sendInteger(ctx, protocol.KindGetCookingTimer)
}

// SetTimer sets the cook timer in minutes.
func (c *Client) SetTimer(ctx context.Context, minutes int64) error {
	return c.disp.Post(ctx, protocol.KindSetCookingTimer, protocol.EncodeIntegerValue(minutes))
}

// GetUnit returns the display unit, "C" or "F".
func (c *Client) GetUnit(ctx context.Context) (string, error) {
	v, err := c.sendInteger(ctx, protocol.KindGetTempUnits)
	if err != nil {
		return "", err
	}
	label, _, err := unitScale(protocol.UnitKind(v))
	if err != nil {
		return "", err
	}
	return label, nil
}

// SetUnit sets the display unit, "C" or "F".
func (c *Client) SetUnit(ctx context.Context, unit string) error {
	var u protocol.UnitKind
	switch strings.ToUpper(unit) {
	case "C":
		u = protocol.UnitDegreesC
	case "F":
		u = protocol.UnitDegreesF
	default:
		return fmt.Errorf("nanolink: unit must be C or F, got %q", unit)
	}
	return c.disp.Post(ctx, protocol.KindSetTempUnits, protocol.EncodeIntegerValue(int64(u)))
}

// Start begins cooking. The device answers with a fresh sensor report.
func (c *Client) Start(ctx context.Context) (SensorValues, error) {
	return c.sendSensors(ctx, protocol.KindStartCooking)
}

// Stop ends cooking. The device answers with a fresh sensor report.
func (c *Client) Stop(ctx context.Context) (SensorValues, error) {
	return c.sendSensors(ctx, protocol.KindStopCooking)
}

// GetFirmwareInfo returns the firmware build identity.
func (c *Client) GetFirmwareInfo(ctx context.Context) (protocol.FirmwareInfo, error) {
	resp, err := c.disp.Send(ctx, protocol.KindGetFirmwareInfo, nil, c.opts.RequestTimeout)
	if err != nil {
		return protocol.FirmwareInfo{}, err
	}
	return protocol.DecodeFirmwareInfo(resp.Payload)
}

// ---- polling ----

// StartPoll begins periodic status polling. Zero interval uses the
// configured default.
func (c *Client) StartPoll(interval time.Duration) {
	if interval <= 0 {
		interval = c.opts.PollInterval
	}
	c.engine.Start(interval)
}

// StopPoll halts polling; no subscriber fires after it returns.
func (c *Client) StopPoll() { c.engine.Stop() }

// Subscribe registers a callback fired after each successful poll tick.
// Callbacks take no payload; read LastStatus.
func (c *Client) Subscribe(fn func()) int { return c.engine.Subscribe(fn) }

// Unsubscribe removes a poll subscription.
func (c *Client) Unsubscribe(id int) { c.engine.Unsubscribe(id) }

// LastStatus returns the most recent polled snapshot, if any.
func (c *Client) LastStatus() (SensorValues, bool) {
	list, ok := c.engine.LastStatus()
	if !ok {
		return SensorValues{}, false
	}
	sv, err := SensorValuesFromList(list)
	if err != nil {
		return SensorValues{}, false
	}
	return sv, true
}

// ---- helpers ----

func (c *Client) fetchStatus(ctx context.Context) (protocol.SensorValueList, error) {
	resp, err := c.disp.Send(ctx, protocol.KindGetSensors, nil, c.opts.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeSensorValueList(resp.Payload)
}

func (c *Client) sendInteger(ctx context.Context, kind protocol.MessageKind) (int64, error) {
	resp, err := c.disp.Send(ctx, kind, nil, c.opts.RequestTimeout)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeIntegerValue(resp.Payload)
}

func (c *Client) sendSensors(ctx context.Context, kind protocol.MessageKind) (SensorValues, error) {
	resp, err := c.disp.Send(ctx, kind, nil, c.opts.RequestTimeout)
	if err != nil {
		return SensorValues{}, err
	}
	list, err := protocol.DecodeSensorValueList(resp.Payload)
	if err != nil {
		return SensorValues{}, err
	}
	return SensorValuesFromList(list)
}
