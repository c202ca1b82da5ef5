// Package hardware defines the interfaces the stream engine consumes from
// the platform audio layer: opening and configuring a hardware unit,
// registering its real-time callbacks, and enumerating endpoints.
//
// Implementations live in internal/device. Callbacks registered on a Unit
// are invoked from the implementation's real-time thread; they must not
// allocate, block, or perform I/O beyond the fetch call handed to them.
package hardware

import "errors"

// Flow is the direction of a stream or unit.
type Flow int

const (
	FlowRender Flow = iota
	FlowCapture
)

func (f Flow) String() string {
	if f == FlowCapture {
		return "capture"
	}
	return "render"
}

// FormatID identifies the hardware-level sample encoding.
type FormatID int

const (
	FormatLinearPCM FormatID = iota
	FormatULaw
	FormatALaw
)

// Flags qualify a linear PCM description.
type Flags uint32

const (
	FlagSignedInteger Flags = 1 << iota
	FlagFloat
)

// StreamDescription is the hardware-facing description of a stream layout,
// the shape a unit's format property takes.
type StreamDescription struct {
	SampleRate       float64
	FormatID         FormatID
	Flags            Flags
	BytesPerPacket   uint32
	FramesPerPacket  uint32
	BytesPerFrame    uint32
	ChannelsPerFrame uint32
	BitsPerChannel   uint32
}

// RenderFunc is invoked by a render unit to pull audio. dst holds exactly
// frames frames in the unit's configured format and must be filled
// completely; the callback pads with silence when short of data.
type RenderFunc func(dst []byte, frames uint32)

// Fetch writes the frames the hardware is currently delivering into dst,
// which must hold the frame count announced to the CaptureFunc. Letting the
// callback pick dst lets the hardware write in place when the destination
// region is contiguous.
type Fetch func(dst []byte) error

// CaptureFunc is invoked by a capture unit when frames raw frames are
// available. The callback chooses a destination and calls fetch exactly once
// to receive them.
type CaptureFunc func(frames uint32, fetch Fetch)

// Unit is one open hardware I/O unit bound to a single device and flow.
// Configure, the callback setters, and Start are called once during stream
// construction; the unit then runs until Close.
type Unit interface {
	// NativeDescription reports the device-side stream format, the rate
	// capture data arrives at before any conversion.
	NativeDescription() (StreamDescription, error)

	// Configure sets the unit's client-side stream format.
	Configure(desc StreamDescription) error

	SetRenderCallback(fn RenderFunc) error
	SetCaptureCallback(fn CaptureFunc) error

	Start() error
	Stop() error

	// Latency reports the combined device and stream latency in frames at
	// the unit's configured rate.
	Latency() (uint32, error)

	Close() error
}

// DeviceInfo carries the device properties the engine needs to build a mix
// format.
type DeviceInfo struct {
	Channels          int
	NominalSampleRate float64
}

// Provider opens units and answers device property queries. The empty
// device ID selects the default endpoint for the flow.
type Provider interface {
	OpenUnit(deviceID string, flow Flow) (Unit, error)
	DeviceInfo(deviceID string, flow Flow) (DeviceInfo, error)
}

// Endpoint is one enumerated audio endpoint.
type Endpoint struct {
	ID   string
	Name string
}

// Enumerator lists the endpoints available for a flow along with the index
// of the system default.
type Enumerator interface {
	Endpoints(flow Flow) (endpoints []Endpoint, defaultIdx int, err error)
}

// Error kinds implementations report; the engine translates them into its
// client-facing taxonomy at the boundary.
var (
	// ErrFormatNotAccepted: the unit rejected the requested stream format.
	ErrFormatNotAccepted = errors.New("hardware: format not accepted")
	// ErrBadDevice: the device is gone, busy, or otherwise invalidated.
	ErrBadDevice = errors.New("hardware: bad device")
)
