// Package convert implements the pull-based sample-rate converter the
// capture pipeline drains native-rate frames through. The converter asks a
// feeder callback for source frames as it needs them; the feeder hands back
// at most what it currently holds and reports emptiness by returning nothing,
// never by blocking.
package convert

import (
	"errors"
	"fmt"

	"github.com/oov/audio/resampler"

	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

const resampleQuality = 10

// Feed supplies source frames. want is an upper bound in frames; the
// returned slice holds whole frames in the source description's layout and
// is only valid until the next call. An empty return means no frames are
// held right now.
type Feed func(want uint32) []byte

var (
	errDescMismatch = errors.New("convert: descriptions differ beyond sample rate")
)

// Converter converts interleaved audio between two stream descriptions that
// share an encoding and channel count and differ in sample rate. Not safe
// for concurrent use; the engine drives it under the stream lock.
type Converter struct {
	src, dst hardware.StreamDescription
	channels int

	rs *resampler.Resampler // nil when the rates already match

	// Scratch, grown on demand and retained. carry holds source frames the
	// resampler has not consumed yet, per channel.
	interleaved []float32
	planarIn    [][]float32
	planarOut   [][]float32
	carry       [][]float32
	carryLen    int
}

// New builds a converter from src to dst. The descriptions must agree on
// everything but the sample rate.
func New(src, dst hardware.StreamDescription) (*Converter, error) {
	if src.FormatID != dst.FormatID || src.Flags != dst.Flags ||
		src.ChannelsPerFrame != dst.ChannelsPerFrame ||
		src.BitsPerChannel != dst.BitsPerChannel ||
		src.BytesPerFrame != dst.BytesPerFrame {
		return nil, errDescMismatch
	}
	if !Supported(src) {
		return nil, fmt.Errorf("convert: unsupported encoding (format %d, %d bits)",
			src.FormatID, src.BitsPerChannel)
	}
	if src.SampleRate <= 0 || dst.SampleRate <= 0 {
		return nil, errors.New("convert: non-positive sample rate")
	}

	c := &Converter{
		src:      src,
		dst:      dst,
		channels: int(src.ChannelsPerFrame),
	}
	if src.SampleRate != dst.SampleRate {
		c.rs = resampler.New(c.channels, int(src.SampleRate), int(dst.SampleRate), resampleQuality)
		c.planarIn = make([][]float32, c.channels)
		c.planarOut = make([][]float32, c.channels)
		c.carry = make([][]float32, c.channels)
	}
	return c, nil
}

// Fill produces up to want frames into dst by pulling source frames through
// feed. Returns the number of frames produced, which is less than want when
// the feeder runs dry.
func (c *Converter) Fill(dst []byte, want uint32, feed Feed) (uint32, error) {
	if len(dst) < int(want)*int(c.dst.BytesPerFrame) {
		return 0, errors.New("convert: destination too small")
	}

	if c.rs == nil {
		return c.fillIdentity(dst, want, feed), nil
	}

	var produced uint32
	for produced < want {
		remaining := int(want - produced)

		// Ask for roughly the source frames one output chunk needs. A
		// short overshoot is fine: unconsumed input is carried over.
		need := remaining*int(c.src.SampleRate)/int(c.dst.SampleRate) + 4
		raw := feed(uint32(need))
		srcFrames := len(raw) / int(c.src.BytesPerFrame)
		if srcFrames == 0 {
			break
		}

		inFrames := c.carryLen + srcFrames
		c.growScratch(inFrames, remaining)
		c.deinterleave(raw, srcFrames)

		read, written := 0, 0
		for ch := 0; ch < c.channels; ch++ {
			r, w := c.rs.ProcessFloat32(ch, c.planarIn[ch][:inFrames], c.planarOut[ch][:remaining])
			if ch == 0 {
				read, written = r, w
			}
		}

		// Keep whatever the resampler left unread for the next round.
		c.carryLen = inFrames - read
		for ch := 0; ch < c.channels; ch++ {
			copy(c.carry[ch], c.planarIn[ch][read:inFrames])
		}

		if written > 0 {
			off := int(produced) * int(c.dst.BytesPerFrame)
			c.interleave(dst[off:], written)
			produced += uint32(written)
		} else if read == 0 {
			break
		}
	}
	return produced, nil
}

// fillIdentity moves frames through untouched when the rates already match.
func (c *Converter) fillIdentity(dst []byte, want uint32, feed Feed) uint32 {
	align := int(c.dst.BytesPerFrame)
	var produced uint32
	for produced < want {
		raw := feed(want - produced)
		frames := len(raw) / align
		if frames == 0 {
			break
		}
		copy(dst[int(produced)*align:], raw[:frames*align])
		produced += uint32(frames)
	}
	return produced
}

func (c *Converter) growScratch(inFrames, outFrames int) {
	if cap(c.interleaved) < inFrames*c.channels {
		c.interleaved = make([]float32, inFrames*c.channels)
	}
	for ch := 0; ch < c.channels; ch++ {
		if cap(c.planarIn[ch]) < inFrames {
			grown := make([]float32, inFrames)
			copy(grown, c.carry[ch][:c.carryLen])
			c.planarIn[ch] = grown
		}
		if cap(c.carry[ch]) < inFrames {
			grown := make([]float32, inFrames)
			copy(grown, c.carry[ch][:c.carryLen])
			c.carry[ch] = grown
		}
		if cap(c.planarOut[ch]) < outFrames {
			c.planarOut[ch] = make([]float32, outFrames)
		}
		c.planarIn[ch] = c.planarIn[ch][:cap(c.planarIn[ch])]
		c.carry[ch] = c.carry[ch][:cap(c.carry[ch])]
		c.planarOut[ch] = c.planarOut[ch][:cap(c.planarOut[ch])]
	}
}

// deinterleave decodes raw into the planar input scratch, after the carried
// frames from the previous round.
func (c *Converter) deinterleave(raw []byte, srcFrames int) {
	samples := srcFrames * c.channels
	buf := c.interleaved[:samples]
	ToFloat32(buf, raw, c.src)
	for ch := 0; ch < c.channels; ch++ {
		copy(c.planarIn[ch], c.carry[ch][:c.carryLen])
		for i := 0; i < srcFrames; i++ {
			c.planarIn[ch][c.carryLen+i] = buf[i*c.channels+ch]
		}
	}
}

// interleave encodes frames planar output frames into dst.
func (c *Converter) interleave(dst []byte, frames int) {
	samples := frames * c.channels
	if cap(c.interleaved) < samples {
		c.interleaved = make([]float32, samples)
	}
	buf := c.interleaved[:samples]
	for ch := 0; ch < c.channels; ch++ {
		for i := 0; i < frames; i++ {
			buf[i*c.channels+ch] = c.planarOut[ch][i]
		}
	}
	FromFloat32(dst, buf, c.dst)
}
