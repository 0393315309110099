package acoustic

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxDuration is the clip length in seconds that normalizes to 1.
const MaxDuration = 5.0

// Normalize rescales features relative to the clip itself: voiced pitch by the
// highest voiced pitch, intensity by the loudest frame, duration by MaxDuration.
// Clips with no voiced frames or no energy normalize to all zeros.
func Normalize(f Features) Features {
	out := Features{
		Pitch:       make([]float64, len(f.Pitch)),
		Intensity:   make([]float64, len(f.Intensity)),
		Duration:    math.Min(f.Duration/MaxDuration, 1),
		MeanPitchHz: f.MeanPitchHz,
	}

	maxPitch := 1.0
	if v := voiced(f.Pitch); len(v) > 0 {
		maxPitch = floats.Max(v)
	}
	for i, p := range f.Pitch {
		if p > 0 {
			out.Pitch[i] = p / maxPitch
		}
	}

	if len(f.Intensity) > 0 {
		if maxIntensity := floats.Max(f.Intensity); maxIntensity > 0 {
			floats.ScaleTo(out.Intensity, 1/maxIntensity, f.Intensity)
		}
	}
	return out
}
