package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"testing"
)

// fakeTranscoder writes a short sine wave WAV instead of running ffmpeg.
type fakeTranscoder struct {
	err       error
	partial   bool // write output before failing
	lastInput string
}

func (f *fakeTranscoder) Transcode(ctx context.Context, in, out string) error {
	f.lastInput = in
	if f.err != nil {
		if f.partial {
			os.WriteFile(out, []byte("RIFF"), 0o600)
		}
		return f.err
	}
	fh, err := os.Create(out)
	if err != nil {
		return err
	}
	defer fh.Close()
	return encodeWAV16(fh, sine(220, 16000, 0.5, 0.5))
}

var errTranscode = errors.New("transcoder exploded")

func sine(freq float64, rate int, seconds, amp float64) *PCM {
	n := int(float64(rate) * seconds)
	s := make([]float64, n)
	for i := range s {
		s[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return &PCM{SampleRate: rate, Channels: [][]float64{s}}
}

// tempEntries lists files left in dir.
func tempEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// encodeWAV16 writes mono or interleaved multi-channel samples as 16-bit PCM.
// Samples outside [-1, 1] are clipped.
func encodeWAV16(w io.Writer, pcm *PCM) error {
	if pcm == nil || len(pcm.Channels) == 0 {
		return fmt.Errorf("no channels to encode")
	}
	channels := len(pcm.Channels)
	frames := len(pcm.Channels[0])
	dataSize := frames * channels * 2

	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(pcm.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(pcm.SampleRate*channels*2))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	buf := make([]byte, dataSize)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := pcm.Channels[c][i]
			v = math.Max(-1, math.Min(1, v))
			binary.LittleEndian.PutUint16(buf[(i*channels+c)*2:], uint16(int16(math.Round(v*32767))))
		}
	}
	_, err := w.Write(buf)
	return err
}
