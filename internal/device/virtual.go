// Package device provides the hardware implementations behind the
// pkg/hardware interfaces: a virtual unit driven by explicit pumps for
// tests and examples, and a PortAudio-backed provider for real devices.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// VirtualUnit is a hardware unit whose "real-time thread" is the caller of
// Pump. Render pumps pull frames through the registered render callback
// into an inspectable sink; capture pumps push queued source bytes through
// the capture callback's fetch.
type VirtualUnit struct {
	logger *slog.Logger
	id     uuid.UUID
	flow   hardware.Flow

	// ConfigureError, when set, makes Configure fail. Lets format probing
	// be exercised against a rejecting device.
	ConfigureError error
	// LatencyFrames is what Latency reports.
	LatencyFrames uint32
	// StartPumpFrames, when nonzero, makes Start deliver one pump of that
	// many frames before returning, the way real hardware can invoke the
	// callback while the start call is still in flight.
	StartPumpFrames uint32

	mu         sync.Mutex
	native     hardware.StreamDescription
	desc       hardware.StreamDescription
	configured bool
	running    bool
	closed     bool
	renderFn   hardware.RenderFunc
	captureFn  hardware.CaptureFunc

	source []byte // raw bytes queued for capture fetches
	sink   []byte // bytes pulled out of the render callback
}

// NewVirtualUnit creates a unit presenting the given native description.
func NewVirtualUnit(flow hardware.Flow, native hardware.StreamDescription) *VirtualUnit {
	id := uuid.New()
	return &VirtualUnit{
		logger: slog.Default().With(
			"virtual unit uuid", id,
			"flow", flow,
		),
		id:     id,
		flow:   flow,
		native: native,
	}
}

func (u *VirtualUnit) NativeDescription() (hardware.StreamDescription, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return hardware.StreamDescription{}, hardware.ErrBadDevice
	}
	return u.native, nil
}

func (u *VirtualUnit) Configure(desc hardware.StreamDescription) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return hardware.ErrBadDevice
	}
	if u.ConfigureError != nil {
		return u.ConfigureError
	}
	u.desc = desc
	u.configured = true
	return nil
}

func (u *VirtualUnit) SetRenderCallback(fn hardware.RenderFunc) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.flow != hardware.FlowRender {
		return errors.New("device: render callback on a capture unit")
	}
	u.renderFn = fn
	return nil
}

func (u *VirtualUnit) SetCaptureCallback(fn hardware.CaptureFunc) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.flow != hardware.FlowCapture {
		return errors.New("device: capture callback on a render unit")
	}
	u.captureFn = fn
	return nil
}

func (u *VirtualUnit) Start() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return hardware.ErrBadDevice
	}
	u.running = true
	u.mu.Unlock()

	if u.StartPumpFrames > 0 {
		return u.Pump(u.StartPumpFrames)
	}
	return nil
}

func (u *VirtualUnit) Stop() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.running = false
	return nil
}

func (u *VirtualUnit) Latency() (uint32, error) {
	return u.LatencyFrames, nil
}

func (u *VirtualUnit) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.running = false
	return nil
}

// SupplyCapture queues raw native-format bytes for later capture pumps.
func (u *VirtualUnit) SupplyCapture(data []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.source = append(u.source, data...)
}

// Pump simulates one hardware period of frames frames, invoking the
// registered callback the way the real-time thread would. Render output
// accumulates in the sink; capture fetches consume queued source bytes,
// zero-padded when the queue runs short.
func (u *VirtualUnit) Pump(frames uint32) error {
	u.mu.Lock()
	if !u.running || !u.configured {
		u.mu.Unlock()
		return errors.New("device: pump on a stopped or unconfigured unit")
	}
	desc := u.desc
	renderFn := u.renderFn
	captureFn := u.captureFn
	u.mu.Unlock()

	nbytes := int(frames) * int(desc.BytesPerFrame)

	if u.flow == hardware.FlowRender {
		if renderFn == nil {
			return errors.New("device: no render callback registered")
		}
		buf := make([]byte, nbytes)
		renderFn(buf, frames)

		u.mu.Lock()
		u.sink = append(u.sink, buf...)
		u.mu.Unlock()
		return nil
	}

	if captureFn == nil {
		return errors.New("device: no capture callback registered")
	}
	captureFn(frames, func(dst []byte) error {
		if len(dst) != nbytes {
			return fmt.Errorf("device: fetch destination holds %d bytes, want %d", len(dst), nbytes)
		}
		u.mu.Lock()
		defer u.mu.Unlock()
		n := copy(dst, u.source)
		u.source = u.source[n:]
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		return nil
	})
	return nil
}

// Rendered drains and returns everything render pumps have pulled so far.
func (u *VirtualUnit) Rendered() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := u.sink
	u.sink = nil
	return out
}

// VirtualDevice describes one endpoint a VirtualProvider serves.
type VirtualDevice struct {
	ID       string
	Name     string
	Native   hardware.StreamDescription
	Channels int
	Default  bool
	// ConfigureError and StartPumpFrames are copied onto every unit opened
	// for this device.
	ConfigureError  error
	StartPumpFrames uint32
}

// VirtualProvider is an in-process Provider and Enumerator over a fixed set
// of virtual devices. Units it opens are recorded so a test can pump them.
type VirtualProvider struct {
	mu      sync.Mutex
	devices []VirtualDevice
	opened  []*VirtualUnit
}

func NewVirtualProvider(devices ...VirtualDevice) *VirtualProvider {
	return &VirtualProvider{devices: devices}
}

func (p *VirtualProvider) find(deviceID string) (*VirtualDevice, error) {
	for i := range p.devices {
		if p.devices[i].ID == deviceID || (deviceID == "" && p.devices[i].Default) {
			return &p.devices[i], nil
		}
	}
	if deviceID == "" && len(p.devices) > 0 {
		return &p.devices[0], nil
	}
	return nil, hardware.ErrBadDevice
}

func (p *VirtualProvider) OpenUnit(deviceID string, flow hardware.Flow) (hardware.Unit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.find(deviceID)
	if err != nil {
		return nil, err
	}
	unit := NewVirtualUnit(flow, dev.Native)
	unit.ConfigureError = dev.ConfigureError
	unit.StartPumpFrames = dev.StartPumpFrames
	p.opened = append(p.opened, unit)
	return unit, nil
}

func (p *VirtualProvider) DeviceInfo(deviceID string, flow hardware.Flow) (hardware.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := p.find(deviceID)
	if err != nil {
		return hardware.DeviceInfo{}, err
	}
	return hardware.DeviceInfo{
		Channels:          dev.Channels,
		NominalSampleRate: dev.Native.SampleRate,
	}, nil
}

func (p *VirtualProvider) Endpoints(flow hardware.Flow) ([]hardware.Endpoint, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	endpoints := make([]hardware.Endpoint, 0, len(p.devices))
	defaultIdx := 0
	for i, dev := range p.devices {
		endpoints = append(endpoints, hardware.Endpoint{ID: dev.ID, Name: dev.Name})
		if dev.Default {
			defaultIdx = i
		}
	}
	return endpoints, defaultIdx, nil
}

// LastUnit returns the most recently opened unit, nil when none.
func (p *VirtualProvider) LastUnit() *VirtualUnit {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.opened) == 0 {
		return nil
	}
	return p.opened[len(p.opened)-1]
}
