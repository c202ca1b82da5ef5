package audioclient

import (
	"errors"

	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// The client-facing error taxonomy. Hardware-layer failures are translated
// into these once, at the engine boundary; nothing below this package leaks
// through the API.
var (
	// ErrUnsupportedFormat: the format family is unknown, the fields are
	// inconsistent, or the hardware rejected the stream format.
	ErrUnsupportedFormat = errors.New("audioclient: unsupported format")

	// ErrDeviceInvalidated: the device is gone, busy, or otherwise unusable.
	ErrDeviceInvalidated = errors.New("audioclient: device invalidated")

	// ErrOutOfMemory is reserved for allocation failures surfaced by the
	// platform layer. Defined for taxonomy completeness.
	ErrOutOfMemory = errors.New("audioclient: out of memory")

	// ErrOutOfOrder: a get-buffer call with a transaction already pending,
	// or a release with none.
	ErrOutOfOrder = errors.New("audioclient: buffer operation out of order")

	// ErrInvalidSize: a release naming more frames than were handed out.
	ErrInvalidSize = errors.New("audioclient: invalid release size")

	// ErrBufferTooLarge: the request would overflow the ring capacity.
	ErrBufferTooLarge = errors.New("audioclient: buffer too large")

	// ErrNotStopped: the operation requires a stopped stream.
	ErrNotStopped = errors.New("audioclient: stream not stopped")

	// ErrPendingBuffer: reset attempted with a get/release transaction open.
	ErrPendingBuffer = errors.New("audioclient: buffer operation pending")

	// ErrInvalidArgument: a structurally invalid parameter.
	ErrInvalidArgument = errors.New("audioclient: invalid argument")
)

// translateHardware maps a hardware-layer error into the taxonomy. Transient
// device errors are surfaced, never retried; the caller owns retry policy.
func translateHardware(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hardware.ErrFormatNotAccepted):
		return ErrUnsupportedFormat
	case errors.Is(err, hardware.ErrBadDevice):
		return ErrDeviceInvalidated
	}
	return ErrDeviceInvalidated
}
