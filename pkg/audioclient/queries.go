package audioclient

import (
	"time"

	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// paddingLocked reports the held frame count, topping the client-rate ring
// up from the capture pipeline first. Called with the lock held.
func (s *Stream) paddingLocked() uint32 {
	if s.flow == hardware.FlowCapture {
		s.captureResample()
	}
	return s.heldFrames
}

// GetCurrentPadding reports the frames queued but not yet played (render)
// or captured but not yet retrieved (capture).
func (s *Stream) GetCurrentPadding() uint32 {
	s.lock.lock()
	defer s.lock.unlock()
	return s.paddingLocked()
}

// GetNextPacketSize reports the size of the next capture packet: one period
// once a full period is held, zero before that.
func (s *Stream) GetNextPacketSize() uint32 {
	s.lock.lock()
	defer s.lock.unlock()

	s.captureResample()

	if s.heldFrames >= s.periodFrames {
		return s.periodFrames
	}
	return 0
}

// GetBufferSize reports the client-rate ring capacity in frames.
func (s *Stream) GetBufferSize() uint32 {
	s.lock.lock()
	defer s.lock.unlock()
	return s.bufsizeFrames
}

// GetPosition reports the stream position: frames in exclusive mode, bytes
// in shared mode. The companion timestamp is in 100-nanosecond units.
func (s *Stream) GetPosition(wantTimestamp bool) (pos uint64, qpc uint64) {
	s.lock.lock()
	defer s.lock.unlock()

	pos = s.writtenFrames - uint64(s.heldFrames)
	if s.share == ShareModeShared {
		pos *= uint64(s.fmt.BlockAlign)
	}
	if wantTimestamp {
		qpc = uint64(time.Now().UnixNano() / 100)
	}
	return pos, qpc
}

// GetFrequency reports the unit for positions: the sample rate in exclusive
// mode, the byte rate in shared mode.
func (s *Stream) GetFrequency() uint64 {
	if s.share == ShareModeShared {
		return uint64(s.fmt.SampleRate) * uint64(s.fmt.BlockAlign)
	}
	return uint64(s.fmt.SampleRate)
}

// GetLatency reports the worst-case stream latency: the hardware's device
// and stream latency plus one period, since the engine moves audio in
// period chunks.
func (s *Stream) GetLatency() (time.Duration, error) {
	s.lock.lock()
	defer s.lock.unlock()

	frames, err := s.unit.Latency()
	if err != nil {
		return 0, translateHardware(err)
	}

	hns := muldiv(int64(frames), hnsPerSecond, int64(s.fmt.SampleRate))
	if hns < 0 {
		return 0, ErrInvalidArgument
	}
	return time.Duration(hns)*100 + s.period, nil
}
