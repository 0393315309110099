package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// PCM is a decoded waveform: one slice of samples in [-1, 1] per channel.
type PCM struct {
	SampleRate int
	Channels   [][]float64
}

// Duration returns the clip length in seconds based on the first channel.
func (p *PCM) Duration() float64 {
	if p == nil || p.SampleRate == 0 || len(p.Channels) == 0 {
		return 0
	}
	return float64(len(p.Channels[0])) / float64(p.SampleRate)
}

// DecodeFile reads and decodes a WAV file from disk.
func DecodeFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDecode, path, err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV parses a RIFF/WAVE stream. Supported encodings are 8/16/24/32-bit
// integer PCM and 32-bit IEEE float. Unknown chunks are skipped.
func DecodeWAV(r io.Reader) (*PCM, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrDecode, err)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrDecode)
	}

	var (
		format        uint16
		channels      int
		sampleRate    int
		bitsPerSample int
		haveFmt       bool
		payload       []byte
	)

	// Walk chunks: 4-byte id, 4-byte little-endian size, body padded to even length.
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) || size < 0 {
			// Streamed WAVs sometimes carry a bogus data size; take what is there.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too short", ErrDecode)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if format == wavFormatExtensible && end-body >= 26 {
				// Sub-format GUID starts with the actual format code.
				format = binary.LittleEndian.Uint16(data[body+24 : body+26])
			}
			haveFmt = true
		case "data":
			payload = data[body:end]
		}

		off = end + size%2
		if end == len(data) {
			break
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrDecode)
	}
	if channels < 1 || sampleRate < 1 {
		return nil, fmt.Errorf("%w: invalid format (channels=%d rate=%d)", ErrDecode, channels, sampleRate)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty data chunk", ErrDecode)
	}

	read, err := sampleReader(format, bitsPerSample)
	if err != nil {
		return nil, err
	}

	width := bitsPerSample / 8
	frames := len(payload) / (width * channels)
	if frames == 0 {
		return nil, fmt.Errorf("%w: no complete sample frames", ErrDecode)
	}

	pcm := &PCM{SampleRate: sampleRate, Channels: make([][]float64, channels)}
	for c := range pcm.Channels {
		pcm.Channels[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * width * channels
		for c := 0; c < channels; c++ {
			pos := base + c*width
			pcm.Channels[c][i] = read(payload[pos : pos+width])
		}
	}
	return pcm, nil
}

func sampleReader(format uint16, bits int) (func([]byte) float64, error) {
	switch {
	case format == wavFormatPCM && bits == 8:
		return func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }, nil
	case format == wavFormatPCM && bits == 16:
		return func(b []byte) float64 {
			return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
		}, nil
	case format == wavFormatPCM && bits == 24:
		return func(b []byte) float64 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			return float64(v) / 8388608
		}, nil
	case format == wavFormatPCM && bits == 32:
		return func(b []byte) float64 {
			return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
		}, nil
	case format == wavFormatIEEEFloat && bits == 32:
		return func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}, nil
	}
	return nil, fmt.Errorf("%w: unsupported encoding (format=%d bits=%d)", ErrDecode, format, bits)
}
