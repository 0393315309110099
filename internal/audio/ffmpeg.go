package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Transcoder converts a compressed recording into an uncompressed waveform file.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) error
}

// VolumeDetector measures the mean volume of a recording in dB.
type VolumeDetector interface {
	MeanVolume(ctx context.Context, path string) (float64, error)
}

// FFmpeg shells out to the ffmpeg binary for transcoding and level analysis.
type FFmpeg struct {
	Path string
}

// NewFFmpeg returns an FFmpeg runner. An empty path means "ffmpeg" from PATH.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path}
}

// Available reports whether the configured binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// Transcode writes a 16-bit PCM WAV next to the input, keeping the source
// sample rate and channel layout.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, f.Path,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// Clean up partial output
		os.Remove(outputPath)
		return fmt.Errorf("ffmpeg transcode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// MeanVolume runs the volumedetect filter and returns the reported mean volume.
func (f *FFmpeg) MeanVolume(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.Path,
		"-hide_banner", "-nostats",
		"-i", path,
		"-af", "volumedetect",
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffmpeg volumedetect: %w", err)
	}
	return ParseMeanVolume(stderr.String())
}

var meanVolumeRe = regexp.MustCompile(`mean_volume:\s*(-?\d+(?:\.\d+)?|-inf) dB`)

// ParseMeanVolume extracts the last mean_volume measurement from ffmpeg's
// diagnostic output. Digital silence ("-inf") is reported as -91 dB, the floor
// of 16-bit audio.
func ParseMeanVolume(output string) (float64, error) {
	matches := meanVolumeRe.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no mean_volume in ffmpeg output")
	}
	raw := matches[len(matches)-1][1]
	if raw == "-inf" {
		return -91, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse mean_volume %q: %w", raw, err)
	}
	return v, nil
}
