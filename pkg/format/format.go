// Package format models the wire-level wave formats the stream engine
// negotiates: sample layout, block alignment, the extensible channel mask,
// and the per-family silence pattern.
package format

import (
	"errors"
	"fmt"
)

// Family is the closed set of sample encodings the engine understands.
type Family int

const (
	FamilyPCM Family = iota
	FamilyFloat
	FamilyMuLaw
	FamilyALaw
)

func (f Family) String() string {
	switch f {
	case FamilyPCM:
		return "pcm"
	case FamilyFloat:
		return "float"
	case FamilyMuLaw:
		return "mulaw"
	case FamilyALaw:
		return "alaw"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// Speaker position bits for the extensible channel mask.
const (
	SpeakerFrontLeft uint32 = 1 << iota
	SpeakerFrontRight
	SpeakerFrontCenter
	SpeakerLowFrequency
	SpeakerBackLeft
	SpeakerBackRight
	SpeakerFrontLeftOfCenter
	SpeakerFrontRightOfCenter
	SpeakerBackCenter
	SpeakerSideLeft
	SpeakerSideRight
	SpeakerTopCenter
	SpeakerTopFrontLeft
	SpeakerTopFrontCenter
	SpeakerTopFrontRight
	SpeakerTopBackLeft
	SpeakerTopBackCenter
	SpeakerTopBackRight
)

// MaskReserved covers the bits above the defined speaker positions. A mask
// carrying any of them is rejected in exclusive mode.
const MaskReserved uint32 = ^uint32(1<<18 - 1)

// Standard speaker configurations.
const (
	MaskMono             = SpeakerFrontCenter
	MaskStereo           = SpeakerFrontLeft | SpeakerFrontRight
	MaskQuad             = MaskStereo | SpeakerBackLeft | SpeakerBackRight
	MaskSurround         = MaskStereo | SpeakerFrontCenter | SpeakerBackCenter
	Mask5Point1          = MaskQuad | SpeakerFrontCenter | SpeakerLowFrequency
	Mask5Point1Surround  = MaskStereo | SpeakerFrontCenter | SpeakerLowFrequency | SpeakerSideLeft | SpeakerSideRight
	Mask7Point1          = Mask5Point1 | SpeakerFrontLeftOfCenter | SpeakerFrontRightOfCenter
	Mask7Point1Surround  = Mask5Point1 | SpeakerSideLeft | SpeakerSideRight
)

// Format describes one interleaved linear audio stream.
//
// ValidBits and ChannelMask are meaningful only when Extensible is set;
// a non-extensible format carries no mask and uses every bit of each sample.
type Format struct {
	Family         Family
	SampleRate     uint32
	Channels       uint16
	BitsPerSample  uint16
	BlockAlign     uint16
	AvgBytesPerSec uint32

	Extensible  bool
	ValidBits   uint16
	ChannelMask uint32
}

var errBadFamily = errors.New("unknown format family")

// New fills in the derived fields (block align, average byte rate, and the
// extensible extras) for a format with the given sample layout.
func New(family Family, rate uint32, channels, bits uint16) Format {
	f := Format{
		Family:        family,
		SampleRate:    rate,
		Channels:      channels,
		BitsPerSample: bits,
		BlockAlign:    channels * bits / 8,
	}
	f.AvgBytesPerSec = uint32(f.BlockAlign) * rate
	return f
}

// AsExtensible wraps f in the extensible form with the standard mask for its
// channel count and all bits valid.
func (f Format) AsExtensible() Format {
	f.Extensible = true
	f.ValidBits = f.BitsPerSample
	f.ChannelMask = ChannelMask(int(f.Channels))
	return f
}

// BytesFor converts a frame count to a byte length using the block alignment.
func (f *Format) BytesFor(frames uint32) int {
	return int(frames) * int(f.BlockAlign)
}

// Consistent reports whether the derived fields agree with the sample layout.
func (f *Format) Consistent() bool {
	return uint32(f.BlockAlign) == uint32(f.Channels)*uint32(f.BitsPerSample)/8 &&
		f.AvgBytesPerSec == uint32(f.BlockAlign)*f.SampleRate
}

// Validate checks the family-specific constraints on the sample layout.
func (f *Format) Validate() error {
	switch f.Family {
	case FamilyPCM:
		switch f.BitsPerSample {
		case 8, 16, 24, 32:
		default:
			return fmt.Errorf("pcm: %d bits per sample", f.BitsPerSample)
		}
	case FamilyFloat:
		if f.BitsPerSample != 32 && f.BitsPerSample != 64 {
			return fmt.Errorf("float: %d bits per sample", f.BitsPerSample)
		}
	case FamilyMuLaw, FamilyALaw:
		if f.BitsPerSample != 8 {
			return fmt.Errorf("%s: %d bits per sample", f.Family, f.BitsPerSample)
		}
	default:
		return errBadFamily
	}
	if f.Channels == 0 {
		return errors.New("zero channels")
	}
	if f.SampleRate == 0 {
		return errors.New("zero sample rate")
	}
	return nil
}

// ChannelMask returns the speaker mask a system mixer would report for the
// given channel count, 0 for counts with no standard configuration.
func ChannelMask(channels int) uint32 {
	switch channels {
	case 1:
		return MaskMono
	case 2:
		return MaskStereo
	case 3:
		return MaskStereo | SpeakerLowFrequency
	case 4:
		return MaskQuad // not the surround variant
	case 5:
		return MaskQuad | SpeakerLowFrequency
	case 6:
		return Mask5Point1 // not 5Point1Surround
	case 7:
		return Mask5Point1 | SpeakerBackCenter
	case 8:
		return Mask7Point1Surround
	}
	return 0
}

// Mix builds the shared-mode mix format for a device: extensible 32-bit
// float at the device's nominal rate with the standard mask for its
// channel count.
func Mix(channels int, rate uint32) Format {
	f := New(FamilyFloat, rate, uint16(channels), 32)
	return f.AsExtensible()
}
