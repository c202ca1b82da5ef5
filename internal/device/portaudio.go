//go:build cgo

package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/soundbridge-audio/soundbridge/internal/convert"
	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// PortAudioProvider serves real devices through PortAudio. It owns the
// library initialization; Close terminates PortAudio, so create one
// provider per process and keep it alive while any unit is open.
type PortAudioProvider struct {
	logger *slog.Logger

	mu sync.Mutex
}

func NewPortAudioProvider() (*PortAudioProvider, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudioProvider{
		logger: slog.Default().With("provider", "portaudio"),
	}, nil
}

func (p *PortAudioProvider) Close() error {
	return portaudio.Terminate()
}

func (p *PortAudioProvider) deviceFor(deviceID string, flow hardware.Flow) (*portaudio.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if deviceID == "" {
		var (
			dev *portaudio.DeviceInfo
			err error
		)
		if flow == hardware.FlowCapture {
			dev, err = portaudio.DefaultInputDevice()
		} else {
			dev, err = portaudio.DefaultOutputDevice()
		}
		if err != nil {
			return nil, fmt.Errorf("no default device: %w", hardware.ErrBadDevice)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", hardware.ErrBadDevice)
	}
	for _, dev := range devices {
		if dev.Name == deviceID && channelsFor(dev, flow) > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no device %q: %w", deviceID, hardware.ErrBadDevice)
}

func channelsFor(dev *portaudio.DeviceInfo, flow hardware.Flow) int {
	if flow == hardware.FlowCapture {
		return dev.MaxInputChannels
	}
	return dev.MaxOutputChannels
}

func (p *PortAudioProvider) OpenUnit(deviceID string, flow hardware.Flow) (hardware.Unit, error) {
	dev, err := p.deviceFor(deviceID, flow)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("opening unit", "device", dev.Name, "flow", flow)
	return &portAudioUnit{
		logger: p.logger.With("device", dev.Name, "flow", flow),
		flow:   flow,
		dev:    dev,
	}, nil
}

func (p *PortAudioProvider) DeviceInfo(deviceID string, flow hardware.Flow) (hardware.DeviceInfo, error) {
	dev, err := p.deviceFor(deviceID, flow)
	if err != nil {
		return hardware.DeviceInfo{}, err
	}
	return hardware.DeviceInfo{
		Channels:          channelsFor(dev, flow),
		NominalSampleRate: dev.DefaultSampleRate,
	}, nil
}

func (p *PortAudioProvider) Endpoints(flow hardware.Flow) ([]hardware.Endpoint, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, 0, fmt.Errorf("listing devices: %w", hardware.ErrBadDevice)
	}

	var defaultDev *portaudio.DeviceInfo
	if flow == hardware.FlowCapture {
		defaultDev, _ = portaudio.DefaultInputDevice()
	} else {
		defaultDev, _ = portaudio.DefaultOutputDevice()
	}

	var endpoints []hardware.Endpoint
	defaultIdx := 0
	for _, dev := range devices {
		if channelsFor(dev, flow) == 0 {
			continue
		}
		if defaultDev != nil && dev.Name == defaultDev.Name {
			defaultIdx = len(endpoints)
		}
		endpoints = append(endpoints, hardware.Endpoint{ID: dev.Name, Name: dev.Name})
	}
	return endpoints, defaultIdx, nil
}

// portAudioUnit adapts one PortAudio stream to the hardware.Unit contract.
// PortAudio trades float32 with us; the unit transcodes between that and
// the configured byte format inside the callback, with scratch allocated
// once at Start.
type portAudioUnit struct {
	logger *slog.Logger
	flow   hardware.Flow
	dev    *portaudio.DeviceInfo

	mu         sync.Mutex
	desc       hardware.StreamDescription
	configured bool
	renderFn   hardware.RenderFunc
	captureFn  hardware.CaptureFunc
	stream     *portaudio.Stream
	scratch    []byte
}

// framesPerBuffer is the PortAudio callback granularity.
const framesPerBuffer = 512

func (u *portAudioUnit) NativeDescription() (hardware.StreamDescription, error) {
	channels := uint32(channelsFor(u.dev, u.flow))
	return hardware.StreamDescription{
		SampleRate:       u.dev.DefaultSampleRate,
		FormatID:         hardware.FormatLinearPCM,
		Flags:            hardware.FlagFloat,
		BytesPerPacket:   4 * channels,
		FramesPerPacket:  1,
		BytesPerFrame:    4 * channels,
		ChannelsPerFrame: channels,
		BitsPerChannel:   32,
	}, nil
}

func (u *portAudioUnit) Configure(desc hardware.StreamDescription) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !convert.Supported(desc) {
		return fmt.Errorf("portaudio cannot carry format %d (%d bits): %w",
			desc.FormatID, desc.BitsPerChannel, hardware.ErrFormatNotAccepted)
	}
	if int(desc.ChannelsPerFrame) > channelsFor(u.dev, u.flow) {
		return fmt.Errorf("%d channels on a %d-channel device: %w",
			desc.ChannelsPerFrame, channelsFor(u.dev, u.flow), hardware.ErrFormatNotAccepted)
	}
	u.desc = desc
	u.configured = true
	return nil
}

func (u *portAudioUnit) SetRenderCallback(fn hardware.RenderFunc) error {
	if u.flow != hardware.FlowRender {
		return errors.New("device: render callback on a capture unit")
	}
	u.mu.Lock()
	u.renderFn = fn
	u.mu.Unlock()
	return nil
}

func (u *portAudioUnit) SetCaptureCallback(fn hardware.CaptureFunc) error {
	if u.flow != hardware.FlowCapture {
		return errors.New("device: capture callback on a render unit")
	}
	u.mu.Lock()
	u.captureFn = fn
	u.mu.Unlock()
	return nil
}

func (u *portAudioUnit) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.configured {
		return errors.New("device: start before configure")
	}
	if u.stream != nil {
		return nil
	}

	u.scratch = make([]byte, framesPerBuffer*int(u.desc.BytesPerFrame))

	params := portaudio.StreamParameters{
		SampleRate:      u.desc.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	var (
		stream *portaudio.Stream
		err    error
	)
	if u.flow == hardware.FlowCapture {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   u.dev,
			Channels: int(u.desc.ChannelsPerFrame),
			Latency:  u.dev.DefaultLowInputLatency,
		}
		stream, err = portaudio.OpenStream(params, u.captureBridge)
	} else {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   u.dev,
			Channels: int(u.desc.ChannelsPerFrame),
			Latency:  u.dev.DefaultLowOutputLatency,
		}
		stream, err = portaudio.OpenStream(params, u.renderBridge)
	}
	if err != nil {
		return fmt.Errorf("opening stream: %w", hardware.ErrFormatNotAccepted)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting stream: %w", hardware.ErrBadDevice)
	}
	u.stream = stream
	return nil
}

// renderBridge runs on the PortAudio thread: pull bytes from the engine,
// transcode to the float32 samples PortAudio wants.
func (u *portAudioUnit) renderBridge(out []float32) {
	fn := u.renderFn
	if fn == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}
	frames := uint32(len(out) / int(u.desc.ChannelsPerFrame))
	buf := u.scratch[:int(frames)*int(u.desc.BytesPerFrame)]
	fn(buf, frames)
	convert.ToFloat32(out, buf, u.desc)
}

// captureBridge runs on the PortAudio thread: announce the frames and let
// the engine's fetch pick the destination.
func (u *portAudioUnit) captureBridge(in []float32) {
	fn := u.captureFn
	if fn == nil {
		return
	}
	frames := uint32(len(in) / int(u.desc.ChannelsPerFrame))
	fn(frames, func(dst []byte) error {
		convert.FromFloat32(dst, in, u.desc)
		return nil
	})
}

func (u *portAudioUnit) Stop() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stream == nil {
		return nil
	}
	return u.stream.Stop()
}

func (u *portAudioUnit) Latency() (uint32, error) {
	var lat time.Duration
	if u.flow == hardware.FlowCapture {
		lat = u.dev.DefaultLowInputLatency
	} else {
		lat = u.dev.DefaultLowOutputLatency
	}
	frames := float64(lat) / float64(time.Second) * u.desc.SampleRate
	return uint32(frames), nil
}

func (u *portAudioUnit) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stream == nil {
		return nil
	}
	err := u.stream.Close()
	u.stream = nil
	return err
}
