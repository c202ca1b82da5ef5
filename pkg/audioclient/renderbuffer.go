package audioclient

import (
	"github.com/soundbridge-audio/soundbridge/internal/ring"
)

// GetRenderBuffer reserves frames frames for the client to fill. The
// returned slice points straight into the ring when the region is
// contiguous; when it would span the wrap, the client gets the temporary
// linear buffer and the matching release performs the wrap copy. The buffer
// is pre-silenced so a partial write still produces valid audio.
//
// Only one reservation may be outstanding; a second get before release
// returns ErrOutOfOrder. Reserving zero frames succeeds with a nil slice.
func (s *Stream) GetRenderBuffer(frames uint32) ([]byte, error) {
	align := uint32(s.fmt.BlockAlign)

	s.lock.lock()
	defer s.lock.unlock()

	pad := s.paddingLocked()

	if s.pending.kind != pendingNone {
		return nil, ErrOutOfOrder
	}
	if frames == 0 {
		return nil, nil
	}
	if pad+frames > s.bufsizeFrames {
		return nil, ErrBufferTooLarge
	}

	var buf []byte
	if s.wriOffsFrames+frames > s.bufsizeFrames {
		if s.tmpBufferFrames < frames {
			s.tmpBuffer = make([]byte, frames*align)
			s.tmpBufferFrames = frames
		}
		buf = s.tmpBuffer[:frames*align]
		s.pending = pendingBuffer{kind: pendingLinearized, frames: frames}
	} else {
		buf = s.localBuffer[s.wriOffsFrames*align : (s.wriOffsFrames+frames)*align]
		s.pending = pendingBuffer{kind: pendingDirect, frames: frames}
	}

	s.fmt.Silence(buf)
	return buf, nil
}

// ReleaseRenderBuffer commits frames frames of the last reservation.
// Releasing fewer frames than reserved is legal; more is ErrInvalidSize.
// Releasing zero frames discards the reservation. With silent set the
// committed region is filled with silence regardless of what the client
// wrote.
func (s *Stream) ReleaseRenderBuffer(frames uint32, silent bool) error {
	align := uint32(s.fmt.BlockAlign)

	s.lock.lock()
	defer s.lock.unlock()

	if frames == 0 {
		s.pending = pendingBuffer{}
		return nil
	}
	if s.pending.kind == pendingNone {
		return ErrOutOfOrder
	}
	if frames > s.pending.frames {
		return ErrInvalidSize
	}

	var buf []byte
	if s.pending.kind == pendingDirect {
		buf = s.localBuffer[s.wriOffsFrames*align : (s.wriOffsFrames+frames)*align]
	} else {
		buf = s.tmpBuffer[:frames*align]
	}

	if silent {
		s.fmt.Silence(buf)
	}

	if s.pending.kind == pendingLinearized {
		ring.Copy(s.localBuffer, int(s.wriOffsFrames*align), buf)
	}

	s.wriOffsFrames = (s.wriOffsFrames + frames) % s.bufsizeFrames
	s.heldFrames += frames
	s.writtenFrames += uint64(frames)
	s.pending = pendingBuffer{}
	return nil
}
