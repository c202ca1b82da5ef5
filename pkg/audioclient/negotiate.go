package audioclient

import (
	"fmt"

	"github.com/soundbridge-audio/soundbridge/internal/convert"
	"github.com/soundbridge-audio/soundbridge/pkg/format"
	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

// descriptionFor translates a client format into the hardware stream
// description, dispatching on the format family.
func descriptionFor(f *format.Format) (hardware.StreamDescription, error) {
	var desc hardware.StreamDescription

	switch f.Family {
	case format.FamilyPCM:
		desc.FormatID = hardware.FormatLinearPCM
		if f.BitsPerSample > 8 {
			desc.Flags = hardware.FlagSignedInteger
		}
	case format.FamilyFloat:
		desc.FormatID = hardware.FormatLinearPCM
		desc.Flags = hardware.FlagFloat
	case format.FamilyMuLaw:
		desc.FormatID = hardware.FormatULaw
	case format.FamilyALaw:
		desc.FormatID = hardware.FormatALaw
	default:
		return desc, ErrUnsupportedFormat
	}

	desc.SampleRate = float64(f.SampleRate)
	desc.BytesPerPacket = uint32(f.BlockAlign)
	desc.FramesPerPacket = 1
	desc.BytesPerFrame = uint32(f.BlockAlign)
	desc.ChannelsPerFrame = uint32(f.Channels)
	desc.BitsPerChannel = uint32(f.BitsPerSample)

	return desc, nil
}

// negotiateUnit configures a hardware unit for the client format. Render
// units take the client format directly. Capture units run at their native
// rate, keeping the client layout, and get a converter from native to
// client rate when the rates differ, because an input-only unit cannot
// convert sample rates itself.
func negotiateUnit(unit hardware.Unit, flow hardware.Flow, f *format.Format) (hardware.StreamDescription, *convert.Converter, error) {
	desc, err := descriptionFor(f)
	if err != nil {
		return desc, nil, err
	}

	if flow == hardware.FlowCapture {
		native, err := unit.NativeDescription()
		if err != nil {
			return desc, nil, translateHardware(err)
		}

		devDesc := desc
		devDesc.SampleRate = native.SampleRate

		if err := unit.Configure(devDesc); err != nil {
			return devDesc, nil, translateHardware(err)
		}

		if devDesc.SampleRate != desc.SampleRate {
			conv, err := convert.New(devDesc, desc)
			if err != nil {
				return devDesc, nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
			}
			return devDesc, conv, nil
		}
		return devDesc, nil, nil
	}

	if err := unit.Configure(desc); err != nil {
		return desc, nil, translateHardware(err)
	}
	return desc, nil, nil
}

func (s *Stream) setupUnit() error {
	devDesc, conv, err := negotiateUnit(s.unit, s.flow, &s.fmt)
	if err != nil {
		s.logger.Warn("unit format negotiation failed", "err", err)
		return err
	}
	s.devDesc = devDesc
	s.conv = conv
	return nil
}

// GetMixFormat builds the shared-mode mix format for a device: extensible
// 32-bit float at the device's nominal rate with the standard channel mask.
func GetMixFormat(provider hardware.Provider, deviceID string, flow hardware.Flow) (format.Format, error) {
	info, err := provider.DeviceInfo(deviceID, flow)
	if err != nil {
		return format.Format{}, translateHardware(err)
	}
	if info.Channels <= 0 || info.NominalSampleRate <= 0 {
		return format.Format{}, ErrDeviceInvalidated
	}
	return format.Mix(info.Channels, uint32(info.NominalSampleRate)), nil
}

// IsFormatSupported validates a format against a device for the share mode.
// A nil error with a nil substitute means the format is supported as given.
// In shared mode an unsupported format yields the device mix format as a
// substitute with a nil error; in exclusive mode it yields
// ErrUnsupportedFormat.
func IsFormatSupported(provider hardware.Provider, deviceID string, flow hardware.Flow,
	share ShareMode, f format.Format) (*format.Format, error) {

	if share != ShareModeShared && share != ShareModeExclusive {
		return nil, ErrInvalidArgument
	}

	supported := true
	if f.Extensible {
		if f.AvgBytesPerSec == 0 || f.BlockAlign == 0 || f.ValidBits > f.BitsPerSample {
			return nil, ErrInvalidArgument
		}
		if f.ValidBits < f.BitsPerSample {
			supported = false
		}
		if share == ShareModeExclusive &&
			(f.ChannelMask == 0 || f.ChannelMask&format.MaskReserved != 0) {
			supported = false
		}
	}

	if supported && !f.Consistent() {
		supported = false
	}
	if supported && f.Channels == 0 {
		return nil, ErrUnsupportedFormat
	}

	if supported {
		supported = probeFormat(provider, deviceID, flow, f)
	}
	if supported {
		return nil, nil
	}

	if share == ShareModeShared {
		mix, err := GetMixFormat(provider, deviceID, flow)
		if err != nil {
			return nil, err
		}
		return &mix, nil
	}
	return nil, ErrUnsupportedFormat
}

// probeFormat opens a throwaway unit and runs the same negotiation a stream
// construction would.
func probeFormat(provider hardware.Provider, deviceID string, flow hardware.Flow, f format.Format) bool {
	unit, err := provider.OpenUnit(deviceID, flow)
	if err != nil {
		return false
	}
	defer unit.Close()

	_, _, err = negotiateUnit(unit, flow, &f)
	return err == nil
}
