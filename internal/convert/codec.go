package convert

import (
	"encoding/binary"
	"math"

	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// Supported reports whether the description's sample encoding can be moved
// through the float32 processing path.
func Supported(desc hardware.StreamDescription) bool {
	if desc.FormatID != hardware.FormatLinearPCM {
		return false
	}
	if desc.Flags&hardware.FlagFloat != 0 {
		return desc.BitsPerChannel == 32
	}
	switch desc.BitsPerChannel {
	case 8, 16, 24, 32:
		return true
	}
	return false
}

// ToFloat32 decodes interleaved samples from src into dst, normalized to
// [-1, 1]. Returns the number of samples decoded.
func ToFloat32(dst []float32, src []byte, desc hardware.StreamDescription) int {
	if desc.Flags&hardware.FlagFloat != 0 {
		n := min(len(dst), len(src)/4)
		for i := 0; i < n; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
		return n
	}
	switch desc.BitsPerChannel {
	case 8:
		// unsigned, biased at 128
		n := min(len(dst), len(src))
		for i := 0; i < n; i++ {
			dst[i] = (float32(src[i]) - 128) / 128
		}
		return n
	case 16:
		n := min(len(dst), len(src)/2)
		for i := 0; i < n; i++ {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(src[2*i:]))) / 32768
		}
		return n
	case 24:
		n := min(len(dst), len(src)/3)
		for i := 0; i < n; i++ {
			v := int32(src[3*i]) | int32(src[3*i+1])<<8 | int32(int8(src[3*i+2]))<<16
			dst[i] = float32(v) / 8388608
		}
		return n
	case 32:
		n := min(len(dst), len(src)/4)
		for i := 0; i < n; i++ {
			dst[i] = float32(int32(binary.LittleEndian.Uint32(src[4*i:]))) / 2147483648
		}
		return n
	}
	return 0
}

// FromFloat32 encodes interleaved normalized samples from src into dst in
// the description's sample encoding. Returns the number of samples encoded.
func FromFloat32(dst []byte, src []float32, desc hardware.StreamDescription) int {
	if desc.Flags&hardware.FlagFloat != 0 {
		n := min(len(src), len(dst)/4)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(src[i]))
		}
		return n
	}
	switch desc.BitsPerChannel {
	case 8:
		n := min(len(src), len(dst))
		for i := 0; i < n; i++ {
			dst[i] = byte(clamp(src[i])*127 + 128)
		}
		return n
	case 16:
		n := min(len(src), len(dst)/2)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(int16(clamp(src[i])*32767)))
		}
		return n
	case 24:
		n := min(len(src), len(dst)/3)
		for i := 0; i < n; i++ {
			v := int32(clamp(src[i]) * 8388607)
			dst[3*i] = byte(v)
			dst[3*i+1] = byte(v >> 8)
			dst[3*i+2] = byte(v >> 16)
		}
		return n
	case 32:
		n := min(len(src), len(dst)/4)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(int32(clamp(src[i])*2147483647)))
		}
		return n
	}
	return 0
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
