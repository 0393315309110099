package acoustic

import (
	"fmt"
	"math"

	"github.com/snarg/speakscore/internal/audio"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Analysis parameters shared by pitch and intensity tracking.
const (
	FrameSize = 2048
	HopSize   = 512

	minPitchHz    = 80.0
	maxPitchHz    = 1000.0
	highPassCoeff = 0.1
	silenceRMS    = 0.01
	minPeak       = 0.1

	smoothRadius  = 5
	minContinuity = 0.8
)

// Features holds per-frame pitch (Hz, 0 when unvoiced) and RMS intensity for one
// clip, plus its duration in seconds. MeanPitchHz is the average of the voiced
// pitch frames and survives normalization so scorers can compare it to ranges
// expressed in Hz.
type Features struct {
	Pitch       []float64
	Intensity   []float64
	Duration    float64
	MeanPitchHz float64
}

// Extract computes features from the first channel of pcm.
func Extract(pcm *audio.PCM) (Features, error) {
	if pcm == nil || len(pcm.Channels) == 0 || len(pcm.Channels[0]) == 0 {
		return Features{}, fmt.Errorf("%w: no channel data", audio.ErrDecode)
	}
	if pcm.SampleRate <= 0 {
		return Features{}, fmt.Errorf("%w: invalid sample rate %d", audio.ErrDecode, pcm.SampleRate)
	}

	samples := pcm.Channels[0]
	pitch := Pitch(samples, pcm.SampleRate)
	return Features{
		Pitch:       pitch,
		Intensity:   Intensity(samples),
		Duration:    pcm.Duration(),
		MeanPitchHz: voicedMean(pitch),
	}, nil
}

// Pitch tracks the fundamental frequency per frame using autocorrelation over
// a high-passed signal, then smooths the track.
func Pitch(samples []float64, sampleRate int) []float64 {
	filtered := highPass(samples, highPassCoeff)
	minLag := int(math.Floor(float64(sampleRate) / maxPitchHz))
	maxLag := int(math.Floor(float64(sampleRate) / minPitchHz))

	var frames []float64
	frame := make([]float64, FrameSize)
	for i := 0; i < len(filtered)-FrameSize; i += HopSize {
		copy(frame, filtered[i:i+FrameSize])
		if rms(frame) < silenceRMS {
			frames = append(frames, 0)
			continue
		}
		window.Hann(frame)
		lag := peakLag(autocorrelate(frame, maxLag+1), minLag, maxLag)
		if lag > 0 {
			frames = append(frames, float64(sampleRate)/float64(lag))
		} else {
			frames = append(frames, 0)
		}
	}
	return smooth(frames)
}

// Intensity returns the RMS of the raw samples per frame.
func Intensity(samples []float64) []float64 {
	var frames []float64
	for i := 0; i < len(samples)-FrameSize; i += HopSize {
		frames = append(frames, rms(samples[i:i+FrameSize]))
	}
	return frames
}

// highPass removes DC offset with a single-pole filter.
func highPass(data []float64, coeff float64) []float64 {
	out := make([]float64, len(data))
	var prev float64
	for i, v := range data {
		var last float64
		if i > 0 {
			last = out[i-1]
		}
		out[i] = v - prev + coeff*last
		prev = v
	}
	return out
}

func rms(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(frame, frame) / float64(len(frame)))
}

// autocorrelate computes r[lag] for lag in [0, maxLag), capped at the frame length.
func autocorrelate(frame []float64, maxLag int) []float64 {
	if maxLag > len(frame) {
		maxLag = len(frame)
	}
	ac := make([]float64, maxLag)
	n := len(frame)
	for lag := range ac {
		ac[lag] = floats.Dot(frame[:n-lag], frame[lag:])
	}
	return ac
}

// peakLag finds the first zero crossing of ac in [minLag, maxLag) and returns the
// lag of the highest value after it, or 0 when no confident peak exists.
func peakLag(ac []float64, minLag, maxLag int) int {
	if maxLag > len(ac)-1 {
		maxLag = len(ac) - 1
	}
	var (
		best    float64
		bestLag int
		crossed bool
	)
	for lag := minLag; lag < maxLag; lag++ {
		if !crossed && ac[lag]*ac[lag+1] < 0 {
			crossed = true
			continue
		}
		if crossed && ac[lag] > best {
			best = ac[lag]
			bestLag = lag
		}
	}
	if !crossed || best <= minPeak {
		return 0
	}
	return bestLag
}

// smooth replaces each frame with the mean of the voiced frames within
// ±smoothRadius, or 0 when too few of them are voiced.
func smooth(pitch []float64) []float64 {
	out := make([]float64, len(pitch))
	for i := range pitch {
		var sum float64
		var voiced, count int
		for j := i - smoothRadius; j <= i+smoothRadius; j++ {
			if j < 0 || j >= len(pitch) {
				continue
			}
			if pitch[j] > 0 {
				sum += pitch[j]
				voiced++
			}
			count++
		}
		if voiced > 0 && float64(voiced)/float64(count) >= minContinuity {
			out[i] = sum / float64(voiced)
		}
	}
	return out
}

func voiced(pitch []float64) []float64 {
	var v []float64
	for _, p := range pitch {
		if p > 0 {
			v = append(v, p)
		}
	}
	return v
}

func voicedMean(pitch []float64) float64 {
	v := voiced(pitch)
	if len(v) == 0 {
		return 0
	}
	return stat.Mean(v, nil)
}
