package audioclient

import "github.com/soundbridge-audio/soundbridge/pkg/hardware"

// Start begins draining (render) or filling (capture) the ring buffers.
// The hardware unit is already running; only the playing flag changes.
func (s *Stream) Start() error {
	s.lock.lock()
	defer s.lock.unlock()

	if s.playing {
		return ErrNotStopped
	}
	s.playing = true
	s.logger.Debug("stream started")
	return nil
}

// Stop halts ring traffic. Returns false when the stream was already
// stopped; that is a status, not an error.
func (s *Stream) Stop() bool {
	s.lock.lock()
	defer s.lock.unlock()

	if !s.playing {
		return false
	}
	s.playing = false
	s.logger.Debug("stream stopped")
	return true
}

// IsStarted reports whether the stream is playing.
func (s *Stream) IsStarted() bool {
	s.lock.lock()
	defer s.lock.unlock()
	return s.playing
}

// Reset zeroes all ring offsets and counts. Only legal while stopped with
// no buffer transaction outstanding. For render the running frame counter
// restarts from zero; for capture, frames held but never delivered fold
// into the counter first so the device position stays monotonic.
func (s *Stream) Reset() error {
	s.lock.lock()
	defer s.lock.unlock()

	if s.playing {
		return ErrNotStopped
	}
	if s.pending.kind != pendingNone {
		return ErrPendingBuffer
	}

	if s.flow == hardware.FlowRender {
		s.writtenFrames = 0
	} else {
		s.writtenFrames += uint64(s.heldFrames)
	}
	s.heldFrames = 0
	s.lclOffsFrames = 0
	s.wriOffsFrames = 0
	s.capOffsFrames = 0
	s.capHeldFrames = 0
	s.logger.Debug("stream reset")
	return nil
}
