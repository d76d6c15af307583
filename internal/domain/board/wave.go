package board

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	waveExtension     = ".wav"
	maxWaveSampleRate = 22050
	wavePCMFormat     = 1
	riffHeaderSize    = 12
	chunkHeaderSize   = 8
	fmtChunkMinSize   = 16
)

//nolint:gochecknoglobals // Magic markers of the RIFF container.
var (
	riffMarker = []byte("RIFF")
	waveMarker = []byte("WAVE")
	fmtMarker  = []byte("fmt ")
)

// WaveFormat describes the fmt chunk of a RIFF/WAVE file.
type WaveFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// Suitable reports whether the board speaker can play this format:
// uncompressed PCM, mono, 8 or 16 bit, at most 22050 Hz.
func (f WaveFormat) Suitable() bool {
	return f.AudioFormat == wavePCMFormat &&
		f.Channels == 1 &&
		(f.BitsPerSample == 8 || f.BitsPerSample == 16) &&
		f.SampleRate > 0 && f.SampleRate <= maxWaveSampleRate
}

// CheckWaveFile returns ErrNotSuitableFile unless path names a .wav file the board can play.
func CheckWaveFile(path string) error {
	if !strings.EqualFold(filepath.Ext(path), waveExtension) {
		return ErrNotSuitableFile
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open wave file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	format, err := ReadWaveFormat(f)
	if err != nil || !format.Suitable() {
		return ErrNotSuitableFile
	}

	return nil
}

var errNoFmtChunk = errors.New("fmt chunk not found")

// ReadWaveFormat reads the RIFF header and returns the first fmt chunk.
func ReadWaveFormat(r io.Reader) (WaveFormat, error) {
	var format WaveFormat

	header := make([]byte, riffHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return format, fmt.Errorf("read riff header: %w", err)
	}

	if !bytes.Equal(header[0:4], riffMarker) || !bytes.Equal(header[8:12], waveMarker) {
		return format, ErrNotSuitableFile
	}

	chunk := make([]byte, chunkHeaderSize)

	for {
		if _, err := io.ReadFull(r, chunk); err != nil {
			return format, errNoFmtChunk
		}

		size := binary.LittleEndian.Uint32(chunk[4:8])

		if !bytes.Equal(chunk[0:4], fmtMarker) {
			// Chunks are word aligned.
			skip := int64(size) + int64(size&1)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return format, errNoFmtChunk
			}

			continue
		}

		if size < fmtChunkMinSize {
			return format, ErrNotSuitableFile
		}

		body := make([]byte, fmtChunkMinSize)
		if _, err := io.ReadFull(r, body); err != nil {
			return format, fmt.Errorf("read fmt chunk: %w", err)
		}

		format.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
		format.Channels = binary.LittleEndian.Uint16(body[2:4])
		format.SampleRate = binary.LittleEndian.Uint32(body[4:8])
		format.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])

		return format, nil
	}
}
