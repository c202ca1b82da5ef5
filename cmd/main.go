package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/soundbridge-audio/soundbridge/cmd/config"
	"github.com/soundbridge-audio/soundbridge/internal/device"
	"github.com/soundbridge-audio/soundbridge/internal/wavfile"
	"github.com/soundbridge-audio/soundbridge/pkg/audioclient"
	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	mode := flag.String("mode", "devices", "One of devices, play, record.")
	audioFilePath := flag.String("audioFilePath", "capture.wav", "The .WAV file to play or record.")
	recordSeconds := flag.Int("recordSeconds", 5, "How long record mode captures for.")
	flag.Parse()

	config.LoadConfig(*configFilePath)
	logFilePointer := config.ConfigureLogger()
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	// --------------------------------------------------------------------------------

	provider, err := device.NewPortAudioProvider()
	if err != nil {
		slog.Error("error while initializing the audio backend", "err", err)
		panic(err)
	}
	defer provider.Close()

	switch *mode {
	case "devices":
		err = listDevices(provider)
	case "play":
		err = play(provider, *audioFilePath)
	case "record":
		err = record(provider, *audioFilePath, time.Duration(*recordSeconds)*time.Second)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		slog.Error("command failed", "mode", *mode, "err", err)
		os.Exit(1)
	}
}

func listDevices(provider *device.PortAudioProvider) error {
	for _, flow := range []hardware.Flow{hardware.FlowRender, hardware.FlowCapture} {
		endpoints, defaultIdx, err := provider.Endpoints(flow)
		if err != nil {
			return err
		}
		fmt.Printf("%s endpoints:\n", flow)
		for i, ep := range endpoints {
			marker := " "
			if i == defaultIdx {
				marker = "*"
			}
			mix, err := audioclient.GetMixFormat(provider, ep.ID, flow)
			if err != nil {
				fmt.Printf("  %s %-40s (unavailable: %v)\n", marker, ep.Name, err)
				continue
			}
			fmt.Printf("  %s %-40s %d ch @ %d Hz\n", marker, ep.Name, mix.Channels, mix.SampleRate)
		}
	}
	return nil
}

// play streams a .WAV file to the configured render endpoint, pacing writes
// by the stream's own padding.
func play(provider *device.PortAudioProvider, audioFilePath string) error {
	clip, err := wavfile.Load(audioFilePath)
	if err != nil {
		return err
	}

	cfg := config.StreamConfig(hardware.FlowRender)
	cfg.Format = clip.Format

	stream, err := audioclient.CreateStream(provider, cfg)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}

	bufsize := stream.GetBufferSize()
	align := uint32(clip.Format.BlockAlign)
	remaining := clip.Data
	for len(remaining) > 0 {
		free := bufsize - stream.GetCurrentPadding()
		if free == 0 {
			time.Sleep(cfg.Period)
			continue
		}
		frames := min(free, uint32(len(remaining))/align)
		if frames == 0 {
			break
		}

		buf, err := stream.GetRenderBuffer(frames)
		if err != nil {
			return err
		}
		copy(buf, remaining[:frames*align])
		if err := stream.ReleaseRenderBuffer(frames, false); err != nil {
			return err
		}
		remaining = remaining[frames*align:]
	}

	// Let the queued tail drain before tearing the stream down.
	for stream.GetCurrentPadding() > 0 {
		time.Sleep(cfg.Period)
	}
	stream.Stop()
	return nil
}

// record captures from the configured endpoint into a 16-bit .WAV file.
func record(provider *device.PortAudioProvider, audioFilePath string, duration time.Duration) error {
	cfg := config.StreamConfig(hardware.FlowCapture)

	stream, err := audioclient.CreateStream(provider, cfg)
	if err != nil {
		return err
	}
	defer stream.Close()

	writer, err := wavfile.NewWriter(audioFilePath, cfg.Format)
	if err != nil {
		return err
	}

	if err := stream.Start(); err != nil {
		writer.Close()
		return err
	}

	slog.Info("recording",
		"audioFile", audioFilePath,
		"duration", duration,
		"device", viper.GetString("device"),
	)

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		pkt, err := stream.GetCaptureBuffer(false)
		if err != nil {
			writer.Close()
			return err
		}
		if pkt.Frames == 0 {
			time.Sleep(cfg.Period / 2)
			continue
		}
		writeErr := writer.Write(pkt.Data)
		if err := stream.ReleaseCaptureBuffer(pkt.Frames); err != nil {
			writer.Close()
			return err
		}
		if writeErr != nil {
			writer.Close()
			return writeErr
		}
	}

	stream.Stop()
	return writer.Close()
}
