package audioclient

import (
	"github.com/soundbridge-audio/soundbridge/internal/ring"
	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// renderCallback runs on the hardware thread: the unit is pulling frames
// from the client-rate ring into dst. Shortfall, including the whole request
// while not playing, is padded with silence after the real data. The lock is
// held only for the copy.
func (s *Stream) renderCallback(dst []byte, frames uint32) {
	align := uint32(s.fmt.BlockAlign)

	s.lock.lock()

	var toCopy uint32
	if s.playing {
		toCopy = min(frames, s.heldFrames)
		ring.Read(dst, s.localBuffer, int(s.lclOffsFrames*align), int(toCopy*align))

		s.lclOffsFrames = (s.lclOffsFrames + toCopy) % s.bufsizeFrames
		s.heldFrames -= toCopy
	}

	if frames > toCopy {
		s.fmt.Silence(dst[toCopy*align : frames*align])
	}

	s.lock.unlock()
}

// captureCallback runs on the hardware thread: the unit has frames raw
// native-rate frames ready. The destination is chosen before invoking fetch
// so the hardware writes the capture ring in place when the region is
// contiguous; otherwise (not playing, or the write would wrap) it lands in
// the wrap scratch and is ring-copied afterwards.
func (s *Stream) captureCallback(frames uint32, fetch hardware.Fetch) {
	align := uint32(s.fmt.BlockAlign)
	nbytes := frames * align

	s.lock.lock()
	defer s.lock.unlock()

	capWriOffs := (s.capOffsFrames + s.capHeldFrames) % s.capBufsizeFrames

	var dst []byte
	wrapped := false
	if !s.playing || capWriOffs+frames > s.capBufsizeFrames {
		if s.wrapBufsizeFrames < frames {
			s.wrapBuffer = make([]byte, nbytes)
			s.wrapBufsizeFrames = frames
		}
		dst = s.wrapBuffer[:nbytes]
		wrapped = true
	} else {
		dst = s.capBuffer[capWriOffs*align : capWriOffs*align+nbytes]
	}

	if err := fetch(dst); err != nil {
		s.logger.Debug("capture fetch failed", "err", err)
		return
	}

	if !s.playing {
		return
	}

	if wrapped {
		ring.Copy(s.capBuffer, int(capWriOffs*align), dst)
	}

	s.capHeldFrames += frames
	if s.capHeldFrames > s.capBufsizeFrames {
		// Producer lapped the reader. Drain into the client ring first;
		// only what still does not fit gets dropped as oldest raw frames.
		s.captureResample()
		if s.capHeldFrames > s.capBufsizeFrames {
			s.capOffsFrames = (s.capOffsFrames + s.capHeldFrames%s.capBufsizeFrames) % s.capBufsizeFrames
			s.capHeldFrames = s.capBufsizeFrames
		}
	}
}
