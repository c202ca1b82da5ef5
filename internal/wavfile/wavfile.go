// Package wavfile moves stream-engine byte buffers in and out of .WAV
// files for the command line tool and the examples. Everything goes
// through the engine's interleaved 16-bit PCM layout.
package wavfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/soundbridge-audio/soundbridge/pkg/format"
)

// Clip is a fully decoded .WAV file ready to feed a render stream.
type Clip struct {
	Format format.Format
	// Data is interleaved little-endian 16-bit PCM, Format.BlockAlign
	// bytes per frame.
	Data []byte
}

// Frames reports the clip length in frames.
func (c *Clip) Frames() uint32 {
	return uint32(len(c.Data) / int(c.Format.BlockAlign))
}

// Load reads a .WAV file fully into memory, rescaling samples to 16 bits
// when the file uses another depth.
func Load(audioFilePath string) (Clip, error) {
	logger := slog.Default().With(
		"audioFile", audioFilePath,
	)

	f, err := os.Open(audioFilePath)
	if err != nil {
		logger.Error("could not open audio file", "err", err)
		return Clip{}, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		logger.Error("could not decode audio file", "err", decoder.Err())
		return Clip{}, errors.New("error while decoding audio file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		logger.Error("could not get full PCM buffer from audio file", "err", err)
		return Clip{}, err
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return Clip{}, errors.New("audio file carries no usable format")
	}

	shift := int(buf.SourceBitDepth) - 16
	data := make([]byte, 2*len(buf.Data))
	for i, sample := range buf.Data {
		if shift > 0 {
			sample >>= shift
		} else if shift < 0 {
			sample <<= -shift
		}
		data[2*i] = byte(sample)
		data[2*i+1] = byte(sample >> 8)
	}

	clip := Clip{
		Format: format.New(
			format.FamilyPCM,
			uint32(buf.Format.SampleRate),
			uint16(buf.Format.NumChannels),
			16,
		),
		Data: data,
	}
	logger.Debug(
		"loaded audio file",
		"sampleRate", clip.Format.SampleRate,
		"channels", clip.Format.Channels,
		"frames", clip.Frames(),
	)
	return clip, nil
}

// Writer appends capture packets to a .WAV file. The file is only valid
// once Close has run.
type Writer struct {
	logger     *slog.Logger
	uuid       uuid.UUID
	fmt        format.Format
	encoder    *wav.Encoder
	fileHandle *os.File
	bufFormat  *goaudio.Format
}

// NewWriter creates a .WAV file at the given path taking interleaved
// 16-bit PCM in the stream format.
func NewWriter(audioFilePath string, f format.Format) (*Writer, error) {
	if f.Family != format.FamilyPCM || f.BitsPerSample != 16 {
		return nil, fmt.Errorf("wav writer wants 16-bit pcm, got %s %d-bit",
			f.Family, f.BitsPerSample)
	}

	uuid := uuid.New()
	logger := slog.Default().With(
		"wav writer uuid", uuid,
		"audioFile", audioFilePath,
	)

	fh, err := os.Create(audioFilePath)
	if err != nil {
		logger.Error("could not create audio file", "err", err)
		return nil, err
	}

	encoder := wav.NewEncoder(fh, int(f.SampleRate), 16, int(f.Channels), 1)
	logger.Debug(
		"created audio file",
		"sampleRate", encoder.SampleRate,
		"channels", encoder.NumChans,
	)

	return &Writer{
		logger:     logger,
		uuid:       uuid,
		fmt:        f,
		encoder:    encoder,
		fileHandle: fh,
		bufFormat: &goaudio.Format{
			SampleRate:  int(f.SampleRate),
			NumChannels: int(f.Channels),
		},
	}, nil
}

// Write appends one buffer of interleaved 16-bit PCM bytes, as handed out
// by GetCaptureBuffer.
func (w *Writer) Write(data []byte) error {
	buf := &goaudio.IntBuffer{
		Format:         w.bufFormat,
		Data:           make([]int, len(data)/2),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8))
	}

	if err := w.encoder.Write(buf); err != nil {
		w.logger.Error("could not write to audio file", "err", err)
		return err
	}
	return nil
}

// Close finalizes the .WAV header and closes the file.
func (w *Writer) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.fileHandle.Close()
		return err
	}
	w.fileHandle.Sync()
	return w.fileHandle.Close()
}
