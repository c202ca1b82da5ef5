package audioclient

import (
	"errors"
	"testing"
	"time"

	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// newRender48 opens the stream most render tests use: 48 kHz stereo 16-bit,
// 1 ms period, 10 ms buffer (48 and 480 frames).
func newRender48(t *testing.T) (*Stream, *renderHarness) {
	t.Helper()
	s, unit := newTestStream(t, hardware.FlowRender, stereo16(48000), 48000,
		time.Millisecond, 10*time.Millisecond)
	return s, &renderHarness{t: t, s: s, unit: unit}
}

type renderHarness struct {
	t    *testing.T
	s    *Stream
	unit interface {
		Pump(frames uint32) error
		Rendered() []byte
	}
}

// write reserves, fills, and commits frames frames of pattern data.
func (h *renderHarness) write(frames uint32) []byte {
	h.t.Helper()
	buf, err := h.s.GetRenderBuffer(frames)
	if err != nil {
		h.t.Fatalf("GetRenderBuffer(%d) error = %v", frames, err)
	}
	data := pattern(int(frames) * 4)
	copy(buf, data)
	if err := h.s.ReleaseRenderBuffer(frames, false); err != nil {
		h.t.Fatalf("ReleaseRenderBuffer(%d) error = %v", frames, err)
	}
	return data
}

func (h *renderHarness) pump(frames uint32) {
	h.t.Helper()
	if err := h.unit.Pump(frames); err != nil {
		h.t.Fatalf("Pump(%d) error = %v", frames, err)
	}
}

func TestGetRenderBuffer_ZeroFrames(t *testing.T) {
	t.Parallel()
	s, _ := newRender48(t)

	buf, err := s.GetRenderBuffer(0)
	if err != nil {
		t.Fatalf("GetRenderBuffer(0) error = %v", err)
	}
	if buf != nil {
		t.Errorf("GetRenderBuffer(0) = %d bytes, want nil", len(buf))
	}

	// No reservation was made, so a real one must still succeed.
	if _, err := s.GetRenderBuffer(48); err != nil {
		t.Errorf("GetRenderBuffer(48) after zero get error = %v", err)
	}
}

func TestGetRenderBuffer_OutOfOrder(t *testing.T) {
	t.Parallel()
	s, _ := newRender48(t)

	if _, err := s.GetRenderBuffer(48); err != nil {
		t.Fatalf("GetRenderBuffer() error = %v", err)
	}
	if _, err := s.GetRenderBuffer(48); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("second GetRenderBuffer() error = %v, want ErrOutOfOrder", err)
	}
}

func TestGetRenderBuffer_TooLarge(t *testing.T) {
	t.Parallel()
	s, h := newRender48(t)

	if _, err := s.GetRenderBuffer(481); !errors.Is(err, ErrBufferTooLarge) {
		t.Errorf("GetRenderBuffer(481) error = %v, want ErrBufferTooLarge", err)
	}

	// The padding counts against the limit too.
	h.write(400)
	if _, err := s.GetRenderBuffer(100); !errors.Is(err, ErrBufferTooLarge) {
		t.Errorf("GetRenderBuffer(100) with 400 held error = %v, want ErrBufferTooLarge", err)
	}
	if _, err := s.GetRenderBuffer(80); err != nil {
		t.Errorf("GetRenderBuffer(80) with 400 held error = %v", err)
	}
}

func TestGetRenderBuffer_PreSilenced(t *testing.T) {
	t.Parallel()
	s, _ := newRender48(t)

	buf, err := s.GetRenderBuffer(48)
	if err != nil {
		t.Fatalf("GetRenderBuffer() error = %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("buffer byte %d = %d, want silence", i, b)
		}
	}
}

func TestReleaseRenderBuffer_WithoutGet(t *testing.T) {
	t.Parallel()
	s, _ := newRender48(t)

	if err := s.ReleaseRenderBuffer(48, false); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("ReleaseRenderBuffer() error = %v, want ErrOutOfOrder", err)
	}
}

func TestReleaseRenderBuffer_TooMany(t *testing.T) {
	t.Parallel()
	s, _ := newRender48(t)

	if _, err := s.GetRenderBuffer(48); err != nil {
		t.Fatalf("GetRenderBuffer() error = %v", err)
	}
	if err := s.ReleaseRenderBuffer(49, false); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("ReleaseRenderBuffer(49) error = %v, want ErrInvalidSize", err)
	}
	// The reservation survives a failed release.
	if err := s.ReleaseRenderBuffer(48, false); err != nil {
		t.Errorf("ReleaseRenderBuffer(48) error = %v", err)
	}
}

func TestReleaseRenderBuffer_Partial(t *testing.T) {
	t.Parallel()
	s, _ := newRender48(t)

	if _, err := s.GetRenderBuffer(100); err != nil {
		t.Fatalf("GetRenderBuffer() error = %v", err)
	}
	if err := s.ReleaseRenderBuffer(60, false); err != nil {
		t.Fatalf("ReleaseRenderBuffer(60) error = %v", err)
	}
	if pad := s.GetCurrentPadding(); pad != 60 {
		t.Errorf("GetCurrentPadding() = %d, want 60", pad)
	}
}

func TestReleaseRenderBuffer_ZeroDiscards(t *testing.T) {
	t.Parallel()
	s, _ := newRender48(t)

	if _, err := s.GetRenderBuffer(100); err != nil {
		t.Fatalf("GetRenderBuffer() error = %v", err)
	}
	if err := s.ReleaseRenderBuffer(0, false); err != nil {
		t.Fatalf("ReleaseRenderBuffer(0) error = %v", err)
	}
	if pad := s.GetCurrentPadding(); pad != 0 {
		t.Errorf("GetCurrentPadding() = %d, want 0 after discard", pad)
	}
	if _, err := s.GetRenderBuffer(48); err != nil {
		t.Errorf("GetRenderBuffer() after discard error = %v", err)
	}
}

func TestReleaseRenderBuffer_Silent(t *testing.T) {
	t.Parallel()
	s, h := newRender48(t)

	buf, err := s.GetRenderBuffer(48)
	if err != nil {
		t.Fatalf("GetRenderBuffer() error = %v", err)
	}
	copy(buf, pattern(48*4))
	if err := s.ReleaseRenderBuffer(48, true); err != nil {
		t.Fatalf("ReleaseRenderBuffer() error = %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.pump(48)
	for i, b := range h.unit.Rendered() {
		if b != 0 {
			t.Fatalf("rendered byte %d = %d, want silence", i, b)
		}
	}
}

func TestRenderBuffer_WrapRoundTrip(t *testing.T) {
	t.Parallel()
	s, h := newRender48(t)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Move the write offset to 400 of 480 so the next reservation wraps.
	h.write(400)
	h.pump(400)
	h.unit.Rendered()

	want := h.write(160) // 400+160 > 480, linearized path
	h.pump(160)

	got := h.unit.Rendered()
	if len(got) != len(want) {
		t.Fatalf("rendered %d bytes, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("rendered byte %d = %d, want %d", i, got[i], want[i])
		}
	}
	if pad := s.GetCurrentPadding(); pad != 0 {
		t.Errorf("GetCurrentPadding() = %d, want 0", pad)
	}
}
