package audioclient

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/soundbridge-audio/soundbridge/internal/device"
	"github.com/soundbridge-audio/soundbridge/pkg/format"
	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// testDesc builds the native description a virtual device advertises for a
// client format at the given hardware rate.
func testDesc(f format.Format, rate float64) hardware.StreamDescription {
	desc, err := descriptionFor(&f)
	if err != nil {
		panic(err)
	}
	desc.SampleRate = rate
	return desc
}

// newTestStream opens a stream against a single-device virtual provider
// whose native rate is nativeRate, returning the stream and the unit so the
// test can pump hardware periods.
func newTestStream(t *testing.T, flow hardware.Flow, f format.Format, nativeRate float64,
	period, duration time.Duration) (*Stream, *device.VirtualUnit) {
	t.Helper()

	prov := device.NewVirtualProvider(device.VirtualDevice{
		ID:       "virt0",
		Name:     "Virtual Endpoint",
		Native:   testDesc(f, nativeRate),
		Channels: int(f.Channels),
		Default:  true,
	})

	s, err := CreateStream(prov, StreamConfig{
		Flow:     flow,
		Share:    ShareModeShared,
		Format:   f,
		Period:   period,
		Duration: duration,
	})
	if err != nil {
		t.Fatalf("CreateStream() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, prov.LastUnit()
}

func stereo16(rate uint32) format.Format {
	return format.New(format.FamilyPCM, rate, 2, 16)
}

// pattern fills n bytes with a deterministic non-silent byte sequence.
func pattern(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*7 + 1)
	}
	return buf
}

func TestCreateStream_SizesBuffers(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t, hardware.FlowRender, stereo16(48000), 48000,
		10*time.Millisecond, 100*time.Millisecond)

	if s.periodFrames != 480 {
		t.Errorf("periodFrames = %d, want 480", s.periodFrames)
	}
	if got := s.GetBufferSize(); got != 4800 {
		t.Errorf("GetBufferSize() = %d, want 4800", got)
	}
	if len(s.localBuffer) != 4800*4 {
		t.Errorf("local buffer = %d bytes, want %d", len(s.localBuffer), 4800*4)
	}
}

func TestCreateStream_ExclusiveTruncatesToPeriods(t *testing.T) {
	t.Parallel()

	f := stereo16(48000)
	prov := device.NewVirtualProvider(device.VirtualDevice{
		ID: "virt0", Native: testDesc(f, 48000), Channels: 2, Default: true,
	})

	s, err := CreateStream(prov, StreamConfig{
		Flow:     hardware.FlowRender,
		Share:    ShareModeExclusive,
		Format:   f,
		Period:   10 * time.Millisecond,
		Duration: 25 * time.Millisecond, // 1200 frames, 2.5 periods
	})
	if err != nil {
		t.Fatalf("CreateStream() error = %v", err)
	}
	defer s.Close()

	if got := s.GetBufferSize(); got != 960 {
		t.Errorf("GetBufferSize() = %d, want 960 (whole periods)", got)
	}
}

func TestCreateStream_Validation(t *testing.T) {
	t.Parallel()

	good := stereo16(48000)
	prov := device.NewVirtualProvider(device.VirtualDevice{
		ID: "virt0", Native: testDesc(good, 48000), Channels: 2, Default: true,
	})

	bad := good
	bad.BlockAlign = 3
	tests := []struct {
		name string
		cfg  StreamConfig
		want error
	}{
		{
			"inconsistent format",
			StreamConfig{Format: bad, Period: time.Millisecond, Duration: time.Second},
			ErrUnsupportedFormat,
		},
		{
			"zero period",
			StreamConfig{Format: good, Period: 0, Duration: time.Second},
			ErrInvalidArgument,
		},
		{
			"zero duration",
			StreamConfig{Format: good, Period: time.Millisecond, Duration: 0},
			ErrInvalidArgument,
		},
		{
			"bad share mode",
			StreamConfig{Format: good, Period: time.Millisecond, Duration: time.Second, Share: ShareMode(7)},
			ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := CreateStream(prov, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateStream() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateStream_DeviceGone(t *testing.T) {
	t.Parallel()

	prov := device.NewVirtualProvider() // no devices at all
	_, err := CreateStream(prov, StreamConfig{
		Format:   stereo16(48000),
		Period:   10 * time.Millisecond,
		Duration: 100 * time.Millisecond,
	})
	if !errors.Is(err, ErrDeviceInvalidated) {
		t.Errorf("CreateStream() error = %v, want ErrDeviceInvalidated", err)
	}
}

func TestCreateStream_RejectingUnit(t *testing.T) {
	t.Parallel()

	f := stereo16(48000)
	prov := device.NewVirtualProvider(device.VirtualDevice{
		ID:             "virt0",
		Native:         testDesc(f, 48000),
		Channels:       2,
		Default:        true,
		ConfigureError: hardware.ErrFormatNotAccepted,
	})

	_, err := CreateStream(prov, StreamConfig{
		Format:   f,
		Period:   10 * time.Millisecond,
		Duration: 100 * time.Millisecond,
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("CreateStream() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestCreateStream_CallbackDuringUnitStart(t *testing.T) {
	t.Parallel()

	// Real hardware can invoke the period callback while the unit start
	// call is still in flight, so the rings must exist by then.
	f := mono16(8000)
	for _, flow := range []hardware.Flow{hardware.FlowCapture, hardware.FlowRender} {
		prov := device.NewVirtualProvider(device.VirtualDevice{
			ID:              "virt0",
			Native:          testDesc(f, 8000),
			Channels:        1,
			Default:         true,
			StartPumpFrames: 80,
		})

		s, err := CreateStream(prov, StreamConfig{
			Flow:     flow,
			Format:   f,
			Period:   10 * time.Millisecond,
			Duration: 100 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("%v CreateStream() error = %v", flow, err)
		}
		if pad := s.GetCurrentPadding(); pad != 0 {
			t.Errorf("%v GetCurrentPadding() = %d, want 0 before Start", flow, pad)
		}
		s.Close()
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t, hardware.FlowRender, stereo16(48000), 48000,
		10*time.Millisecond, 100*time.Millisecond)

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestScenario_RenderWriteThenPull(t *testing.T) {
	t.Parallel()

	// 48000 Hz stereo 16-bit, 10 ms buffer.
	s, unit := newTestStream(t, hardware.FlowRender, stereo16(48000), 48000,
		time.Millisecond, 10*time.Millisecond)

	buf, err := s.GetRenderBuffer(100)
	if err != nil {
		t.Fatalf("GetRenderBuffer(100) error = %v", err)
	}
	want := pattern(100 * 4)
	copy(buf, want)
	if err := s.ReleaseRenderBuffer(100, false); err != nil {
		t.Fatalf("ReleaseRenderBuffer(100) error = %v", err)
	}

	if pad := s.GetCurrentPadding(); pad != 100 {
		t.Fatalf("GetCurrentPadding() = %d, want 100", pad)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := unit.Pump(50); err != nil {
		t.Fatalf("Pump(50) error = %v", err)
	}

	if pad := s.GetCurrentPadding(); pad != 50 {
		t.Errorf("GetCurrentPadding() after pull = %d, want 50", pad)
	}

	got := unit.Rendered()
	if len(got) != 50*4 {
		t.Fatalf("hardware pulled %d bytes, want %d", len(got), 50*4)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("pulled byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestGetPosition_SharedReportsBytes(t *testing.T) {
	t.Parallel()

	s, unit := newTestStream(t, hardware.FlowRender, stereo16(48000), 48000,
		time.Millisecond, 10*time.Millisecond)

	buf, err := s.GetRenderBuffer(96)
	if err != nil {
		t.Fatalf("GetRenderBuffer() error = %v", err)
	}
	copy(buf, pattern(96*4))
	if err := s.ReleaseRenderBuffer(96, false); err != nil {
		t.Fatalf("ReleaseRenderBuffer() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := unit.Pump(48); err != nil {
		t.Fatalf("Pump() error = %v", err)
	}

	pos, _ := s.GetPosition(false)
	if pos != 48*4 {
		t.Errorf("GetPosition() = %d, want %d bytes in shared mode", pos, 48*4)
	}

	pos2, qpc := s.GetPosition(true)
	if pos2 != pos {
		t.Errorf("GetPosition() repeat = %d, want %d", pos2, pos)
	}
	if qpc == 0 {
		t.Error("GetPosition(true) returned a zero timestamp")
	}
}

func TestGetFrequency(t *testing.T) {
	t.Parallel()

	f := stereo16(48000)
	shared, _ := newTestStream(t, hardware.FlowRender, f, 48000,
		time.Millisecond, 10*time.Millisecond)
	if got := shared.GetFrequency(); got != 48000*4 {
		t.Errorf("shared GetFrequency() = %d, want %d", got, 48000*4)
	}

	prov := device.NewVirtualProvider(device.VirtualDevice{
		ID: "virt0", Native: testDesc(f, 48000), Channels: 2, Default: true,
	})
	excl, err := CreateStream(prov, StreamConfig{
		Flow:     hardware.FlowRender,
		Share:    ShareModeExclusive,
		Format:   f,
		Period:   10 * time.Millisecond,
		Duration: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("CreateStream() error = %v", err)
	}
	defer excl.Close()
	if got := excl.GetFrequency(); got != 48000 {
		t.Errorf("exclusive GetFrequency() = %d, want 48000", got)
	}
}

func TestGetLatency(t *testing.T) {
	t.Parallel()

	s, unit := newTestStream(t, hardware.FlowRender, stereo16(48000), 48000,
		10*time.Millisecond, 100*time.Millisecond)
	unit.LatencyFrames = 480 // 10 ms at 48 kHz

	lat, err := s.GetLatency()
	if err != nil {
		t.Fatalf("GetLatency() error = %v", err)
	}
	if lat != 20*time.Millisecond {
		t.Errorf("GetLatency() = %v, want 20ms (device + one period)", lat)
	}
}

// packet16 decodes the first sample of each frame for quick checks.
func packet16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}
