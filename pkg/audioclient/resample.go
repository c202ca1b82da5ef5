package audioclient

import (
	"github.com/soundbridge-audio/soundbridge/internal/ring"
)

// feedFrames supplies the converter with raw frames from the capture ring.
// Returns at most want frames, linearizing through the wrap scratch when
// the region spans the ring end, and advances the ring's read state. An
// empty return means nothing is held. Called with the lock held.
func (s *Stream) feedFrames(want uint32) []byte {
	align := uint32(s.fmt.BlockAlign)

	n := min(want, s.capHeldFrames)
	if n == 0 {
		return nil
	}

	var data []byte
	if s.capOffsFrames+n > s.capBufsizeFrames {
		if s.wrapBufsizeFrames < n {
			s.wrapBuffer = make([]byte, n*align)
			s.wrapBufsizeFrames = n
		}
		data = s.wrapBuffer[:n*align]
		ring.Read(data, s.capBuffer, int(s.capOffsFrames*align), int(n*align))
	} else {
		data = s.capBuffer[s.capOffsFrames*align : (s.capOffsFrames+n)*align]
	}

	s.capOffsFrames = (s.capOffsFrames + n) % s.capBufsizeFrames
	s.capHeldFrames -= n
	return data
}

// captureResample drains the capture ring through the converter into the
// client-rate ring, one period at a time. Resampling filters want more
// source context than the bare rate ratio suggests, so conversion only runs
// while more than two converted periods' worth of native frames are held.
// If the client-rate ring would overflow, the read offset jumps forward and
// the oldest unread frames are dropped. Called with the lock held.
func (s *Stream) captureResample() {
	align := uint32(s.fmt.BlockAlign)
	resampPeriod := uint32(muldiv(int64(s.periodFrames), int64(s.devDesc.SampleRate), int64(s.fmt.SampleRate)))

	for s.capHeldFrames > resampPeriod*2 {
		want := s.periodFrames

		if s.resampBufsizeFrames < want {
			s.resampBuffer = make([]byte, want*align)
			s.resampBufsizeFrames = want
		}
		out := s.resampBuffer[:want*align]

		var got uint32
		if s.conv != nil {
			var err error
			got, err = s.conv.Fill(out, want, s.feedFrames)
			if err != nil {
				s.logger.Debug("converter fill failed", "err", err)
				break
			}
		} else {
			// Rates match: move one period straight across.
			raw := s.feedFrames(want)
			got = uint32(len(raw)) / align
			copy(out, raw)
		}
		if got == 0 {
			break
		}

		ring.Copy(s.localBuffer, int(s.wriOffsFrames*align), out[:got*align])

		s.wriOffsFrames = (s.wriOffsFrames + got) % s.bufsizeFrames
		if s.heldFrames+got > s.bufsizeFrames {
			drop := ring.Distance(s.lclOffsFrames, s.wriOffsFrames, s.bufsizeFrames)
			s.logger.Debug("client buffer overflow, dropping oldest frames",
				"dropped", s.heldFrames+got-s.bufsizeFrames,
			)
			s.lclOffsFrames = (s.lclOffsFrames + drop) % s.bufsizeFrames
			s.heldFrames = s.bufsizeFrames
		} else {
			s.heldFrames += got
		}
	}
}
