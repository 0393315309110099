package acoustic

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Dimension weights for the combined feature score.
const (
	pitchWeight     = 0.4
	intensityWeight = 0.3
	durationWeight  = 0.3
)

// Scores are per-dimension and combined feature scores on a 0-100 scale.
type Scores struct {
	Pitch     float64 `json:"pitchScore"`
	Intensity float64 `json:"intensityScore"`
	Duration  float64 `json:"durationScore"`
	Overall   float64 `json:"score"`
}

// ScoreFeatures compares normalized features against a language model. Pitch is
// judged by MeanPitchHz, intensity by the mean normalized frame intensity and
// duration by the normalized duration. A dimension with no data scores 0.
func ScoreFeatures(f Features, m Model) Scores {
	var s Scores
	if f.MeanPitchHz > 0 {
		s.Pitch = rangeScore(f.MeanPitchHz, m.Pitch)
	}
	if len(f.Intensity) > 0 {
		s.Intensity = rangeScore(stat.Mean(f.Intensity, nil), m.Intensity)
	}
	s.Duration = rangeScore(f.Duration, m.Duration)

	s.Overall = (pitchWeight*s.Pitch + intensityWeight*s.Intensity + durationWeight*s.Duration) * 100
	s.Pitch *= 100
	s.Intensity *= 100
	s.Duration *= 100
	return s
}

// rangeScore is 1 at the midpoint of r, falls linearly to 0 at its edges, and
// outside r decays with the distance to the nearest bound over the range width.
func rangeScore(v float64, r Range) float64 {
	if math.IsNaN(v) || r.width() <= 0 {
		return 0
	}
	if v >= r.Min && v <= r.Max {
		return 1 - math.Abs(v-r.mid())/(r.width()/2)
	}
	dist := math.Min(math.Abs(v-r.Min), math.Abs(v-r.Max))
	return math.Max(0, 1-dist/r.width())
}

// HasVoice reports whether normalized features look like speech: some frame
// above 10% of peak intensity, at least one voiced pitch frame and a
// duration between 0.1 and 5 seconds.
func HasVoice(f Features) bool {
	loud := false
	for _, v := range f.Intensity {
		if v > 0.1 {
			loud = true
			break
		}
	}
	pitched := false
	for _, p := range f.Pitch {
		if p > 0 {
			pitched = true
			break
		}
	}
	seconds := f.Duration * MaxDuration
	return loud && pitched && seconds > 0.1 && seconds < MaxDuration
}

// NoVoiceAnalysis is the analysis text for clips without detectable speech.
const NoVoiceAnalysis = "No voice detected. Please speak clearly."

// Analysis summarises feature scores as a sentence followed by hints for each
// weak dimension.
func Analysis(s Scores) string {
	var parts []string
	switch {
	case s.Overall > 80:
		parts = append(parts, "Excellent pronunciation!")
	case s.Overall > 60:
		parts = append(parts, "Good pronunciation, but could use some improvement.")
	default:
		parts = append(parts, "Needs more practice. Focus on the following:")
	}
	if s.Pitch < 60 {
		parts = append(parts, "Try to maintain a more consistent pitch.")
	}
	if s.Intensity < 60 {
		parts = append(parts, "Speak with more clarity and volume.")
	}
	if s.Duration < 60 {
		parts = append(parts, "Try to maintain a more natural speaking pace.")
	}
	return strings.Join(parts, " ")
}

// VolumeBandMarks maps a mean volume in dB to pitch-intensity marks. Each band
// includes its upper bound.
func VolumeBandMarks(db float64) float64 {
	switch {
	case db >= -10:
		return 100
	case db >= -20:
		return 90
	case db >= -35:
		return 80
	case db >= -45:
		return 60
	default:
		return 20
	}
}
