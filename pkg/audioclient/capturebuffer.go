package audioclient

import (
	"time"

	"github.com/soundbridge-audio/soundbridge/internal/ring"
)

// CapturePacket is one period's worth of captured frames handed to the
// client. Data stays valid until the matching ReleaseCaptureBuffer.
type CapturePacket struct {
	Data   []byte
	Frames uint32
	// DevicePosition is the running device frame counter at the packet
	// start.
	DevicePosition uint64
	// QPCPosition is a wall-clock timestamp in 100-nanosecond units,
	// stamped only when requested.
	QPCPosition uint64
}

// GetCaptureBuffer drains any converted data pending in the capture
// pipeline and, if at least one period is held, exposes the next period of
// frames. A packet with Frames == 0 and a nil error means no full period is
// ready yet. The data slice points into the ring when the period is
// contiguous; a period spanning the wrap is linearized into the temporary
// buffer first.
func (s *Stream) GetCaptureBuffer(wantTimestamp bool) (CapturePacket, error) {
	align := uint32(s.fmt.BlockAlign)

	s.lock.lock()
	defer s.lock.unlock()

	if s.pending.kind != pendingNone {
		return CapturePacket{}, ErrOutOfOrder
	}

	s.captureResample()

	if s.heldFrames < s.periodFrames {
		return CapturePacket{}, nil
	}

	var pkt CapturePacket
	chunk := s.bufsizeFrames - s.lclOffsFrames
	if chunk < s.periodFrames {
		if s.tmpBufferFrames < s.periodFrames {
			s.tmpBuffer = make([]byte, s.periodFrames*align)
			s.tmpBufferFrames = s.periodFrames
		}
		pkt.Data = s.tmpBuffer[:s.periodFrames*align]
		ring.Read(pkt.Data, s.localBuffer, int(s.lclOffsFrames*align), int(s.periodFrames*align))
		s.pending = pendingBuffer{kind: pendingLinearized, frames: s.periodFrames}
	} else {
		pkt.Data = s.localBuffer[s.lclOffsFrames*align : (s.lclOffsFrames+s.periodFrames)*align]
		s.pending = pendingBuffer{kind: pendingDirect, frames: s.periodFrames}
	}

	pkt.Frames = s.periodFrames
	pkt.DevicePosition = s.writtenFrames
	if wantTimestamp {
		pkt.QPCPosition = uint64(time.Now().UnixNano() / 100)
	}
	return pkt, nil
}

// ReleaseCaptureBuffer returns the packet from the preceding
// GetCaptureBuffer. done must equal the packet's frame count exactly, or be
// zero to discard the packet without consuming it.
func (s *Stream) ReleaseCaptureBuffer(done uint32) error {
	s.lock.lock()
	defer s.lock.unlock()

	if done == 0 {
		s.pending = pendingBuffer{}
		return nil
	}
	if s.pending.kind == pendingNone {
		return ErrOutOfOrder
	}
	if done != s.pending.frames {
		return ErrInvalidSize
	}

	s.writtenFrames += uint64(done)
	s.heldFrames -= done
	s.lclOffsFrames = (s.lclOffsFrames + done) % s.bufsizeFrames
	s.pending = pendingBuffer{}
	return nil
}
