// Package audioclient implements the stream engine: render and capture
// sessions over a hardware unit, with a client-rate ring buffer, a
// native-rate capture ring, and a pull-based resampling pipeline between
// them.
//
// Two threads touch a stream: the client thread issuing the calls on
// Stream, and the hardware thread invoking the render/capture callbacks at
// period cadence. Both take the stream's spin lock around every access to
// offset and count fields; no call blocks, allocates on the hot path beyond
// the retained scratch buffers, or performs I/O while holding the lock.
package audioclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soundbridge-audio/soundbridge/internal/convert"
	"github.com/soundbridge-audio/soundbridge/pkg/format"
	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// ShareMode selects between the shared mixing path and exclusive
// hardware-format access.
type ShareMode int

const (
	ShareModeShared ShareMode = iota
	ShareModeExclusive
)

// pendingKind tags where the buffer handed out by the last get call lives.
type pendingKind uint8

const (
	pendingNone pendingKind = iota
	// pendingDirect: the client writes or reads the ring in place.
	pendingDirect
	// pendingLinearized: the region spanned the ring wrap, so the client got
	// the temporary linear buffer; release resolves the copy.
	pendingLinearized
)

// pendingBuffer is the one outstanding get/release transaction allowed per
// stream.
type pendingBuffer struct {
	kind   pendingKind
	frames uint32
}

// StreamConfig carries the creation parameters for one stream.
type StreamConfig struct {
	// Device is the endpoint ID; empty selects the default for the flow.
	Device string
	Flow   hardware.Flow
	Share  ShareMode
	Format format.Format
	// Period is the hardware callback cadence.
	Period time.Duration
	// Duration sizes the client-rate ring buffer.
	Duration time.Duration
}

// Stream is one open audio session. All exported methods are safe to call
// from a single client goroutine concurrently with the hardware callbacks.
type Stream struct {
	lock   spinLock
	logger *slog.Logger
	id     uuid.UUID

	unit    hardware.Unit
	conv    *convert.Converter // capture only, and only on a rate mismatch
	devDesc hardware.StreamDescription
	flow    hardware.Flow
	share   ShareMode
	fmt     format.Format

	playing      bool
	period       time.Duration
	periodFrames uint32

	// Client-rate ring ("local buffer"). Render: client writes, hardware
	// callback drains. Capture: resampler writes, client drains.
	bufsizeFrames uint32
	lclOffsFrames uint32
	wriOffsFrames uint32
	heldFrames    uint32
	localBuffer   []byte

	// Native-rate capture ring, written by the hardware callback and
	// drained by the resampler. Capture streams only.
	capBufsizeFrames uint32
	capOffsFrames    uint32
	capHeldFrames    uint32
	capBuffer        []byte

	// Retained scratch: wrap linearization, converted output, and the
	// temporary get-buffer region. Grown on demand, never shrunk.
	wrapBufsizeFrames   uint32
	wrapBuffer          []byte
	resampBufsizeFrames uint32
	resampBuffer        []byte
	tmpBufferFrames     uint32
	tmpBuffer           []byte

	writtenFrames uint64
	pending       pendingBuffer
}

const hnsPerSecond = 10_000_000

// CreateStream opens a hardware unit on the requested device, sizes the
// ring buffers, registers the callback for the flow, and starts continuous
// hardware I/O. The unit keeps running across Start/Stop cycles; only the
// playing flag gates whether the rings are filled and drained.
func CreateStream(provider hardware.Provider, cfg StreamConfig) (*Stream, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if !cfg.Format.Consistent() {
		return nil, ErrUnsupportedFormat
	}
	if cfg.Period <= 0 || cfg.Duration <= 0 {
		return nil, ErrInvalidArgument
	}
	if cfg.Share != ShareModeShared && cfg.Share != ShareModeExclusive {
		return nil, ErrInvalidArgument
	}

	rate := int64(cfg.Format.SampleRate)
	periodFrames := muldiv(cfg.Period.Nanoseconds(), rate, int64(time.Second))
	bufsize := muldiv(cfg.Duration.Nanoseconds(), rate, int64(time.Second))
	if periodFrames <= 0 || bufsize <= 0 {
		return nil, ErrInvalidArgument
	}
	if cfg.Share == ShareModeExclusive {
		bufsize -= bufsize % periodFrames
		if bufsize == 0 {
			return nil, ErrInvalidArgument
		}
	}

	id := uuid.New()
	s := &Stream{
		logger: slog.Default().With(
			"stream uuid", id,
			"flow", cfg.Flow,
		),
		id:            id,
		flow:          cfg.Flow,
		share:         cfg.Share,
		fmt:           cfg.Format,
		period:        cfg.Period,
		periodFrames:  uint32(periodFrames),
		bufsizeFrames: uint32(bufsize),
	}

	unit, err := provider.OpenUnit(cfg.Device, cfg.Flow)
	if err != nil {
		s.logger.Error("failed to open hardware unit", "device", cfg.Device, "err", err)
		return nil, fmt.Errorf("open unit: %w", translateHardware(err))
	}
	s.unit = unit

	if err := s.setupUnit(); err != nil {
		unit.Close()
		return nil, err
	}

	// Both rings must exist before the unit runs: the capture callback can
	// fire the moment Start returns, or during it.
	s.localBuffer = make([]byte, s.fmt.BytesFor(s.bufsizeFrames))
	s.fmt.Silence(s.localBuffer)

	if cfg.Flow == hardware.FlowCapture {
		capFrames := muldiv(cfg.Duration.Nanoseconds(), int64(s.devDesc.SampleRate), int64(time.Second))
		if capFrames <= 0 {
			unit.Close()
			return nil, ErrInvalidArgument
		}
		s.capBufsizeFrames = uint32(capFrames)
		s.capBuffer = make([]byte, s.fmt.BytesFor(s.capBufsizeFrames))
		err = unit.SetCaptureCallback(s.captureCallback)
	} else {
		err = unit.SetRenderCallback(s.renderCallback)
	}
	if err != nil {
		unit.Close()
		return nil, fmt.Errorf("set callback: %w", translateHardware(err))
	}

	// Run the unit for the stream's whole lifetime; starting hardware I/O
	// can be slow, so it is not tied to Start/Stop.
	if err := unit.Start(); err != nil {
		unit.Close()
		return nil, fmt.Errorf("start unit: %w", translateHardware(err))
	}

	s.logger.Debug("stream created",
		"periodFrames", s.periodFrames,
		"bufsizeFrames", s.bufsizeFrames,
		"capBufsizeFrames", s.capBufsizeFrames,
		"nativeRate", s.devDesc.SampleRate,
		"clientRate", s.fmt.SampleRate,
		"resampling", s.conv != nil,
	)
	return s, nil
}

// Close stops hardware I/O and releases the unit. The stream must not be
// used afterwards.
func (s *Stream) Close() error {
	if s.unit == nil {
		return nil
	}
	s.unit.Stop()
	err := s.unit.Close()
	s.unit = nil
	s.logger.Debug("stream released")
	if err != nil {
		return translateHardware(err)
	}
	return nil
}
