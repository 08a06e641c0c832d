// protocol/errors.go
package protocol

import "errors"

// Error taxonomy for one request/response exchange.
// Format and checksum errors are absorbed inside the current deadline
// window; the rest terminate the caller's exchange.
var (
	ErrFrameFormat      = errors.New("protocol: malformed frame")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	ErrTimeout          = errors.New("protocol: response timeout")
	ErrNotConnected     = errors.New("protocol: transport not connected")
	ErrDeviceBusy       = errors.New("protocol: device busy")
	ErrRetryExhausted   = errors.New("protocol: write retries exhausted")
)
