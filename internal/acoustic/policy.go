package acoustic

import (
	"context"
	"fmt"

	"github.com/snarg/speakscore/internal/audio"
)

// Policy names accepted by NewPolicy.
const (
	PolicyVolume   = "volume"
	PolicyFeatures = "features"
)

// Result is the outcome of an acoustic policy for one clip.
type Result struct {
	Policy string  `json:"policy"`
	Marks  float64 `json:"marks"`

	// Set by the volume policy.
	MeanVolumeDB float64 `json:"meanVolumeDb,omitempty"`

	// Set by the feature policy.
	Scores          *Scores  `json:"scores,omitempty"`
	VoiceDetected   bool     `json:"voiceDetected"`
	Analysis        string   `json:"analysis,omitempty"`
	Language        string   `json:"language,omitempty"`
	Characteristics []string `json:"characteristics,omitempty"`
}

// Policy turns an ingested clip into pitch-intensity marks on a 0-100 scale.
type Policy interface {
	Name() string
	Score(ctx context.Context, clip *audio.Clip, language string) (Result, error)
}

// VolumePolicy maps the clip's mean volume onto fixed bands.
type VolumePolicy struct {
	Detector audio.VolumeDetector
}

func (p *VolumePolicy) Name() string { return PolicyVolume }

func (p *VolumePolicy) Score(ctx context.Context, clip *audio.Clip, language string) (Result, error) {
	db, err := p.Detector.MeanVolume(ctx, clip.WAVPath)
	if err != nil {
		return Result{}, fmt.Errorf("volume detection: %w", err)
	}
	marks := VolumeBandMarks(db)
	return Result{
		Policy:        PolicyVolume,
		Marks:         marks,
		MeanVolumeDB:  db,
		VoiceDetected: marks > VolumeBandMarks(-91),
	}, nil
}

// FeaturePolicy scores pitch, intensity and duration against a language model.
type FeaturePolicy struct {
	Models *ModelTable
}

func (p *FeaturePolicy) Name() string { return PolicyFeatures }

func (p *FeaturePolicy) Score(ctx context.Context, clip *audio.Clip, language string) (Result, error) {
	pcm, err := clip.Decode()
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	raw, err := Extract(pcm)
	if err != nil {
		return Result{}, err
	}
	return p.Evaluate(raw, language), nil
}

// Evaluate scores already extracted features.
func (p *FeaturePolicy) Evaluate(raw Features, language string) Result {
	model := p.Models.Lookup(language)
	res := Result{
		Policy:          PolicyFeatures,
		Language:        model.Language,
		Characteristics: model.Characteristics,
	}

	norm := Normalize(raw)
	if !HasVoice(norm) {
		res.Scores = &Scores{}
		res.Analysis = NoVoiceAnalysis
		return res
	}

	scores := ScoreFeatures(norm, model)
	res.Marks = scores.Overall
	res.Scores = &scores
	res.VoiceDetected = true
	res.Analysis = Analysis(scores)
	return res
}

// NewPolicy returns the policy registered under name.
func NewPolicy(name string, detector audio.VolumeDetector, models *ModelTable) (Policy, error) {
	switch name {
	case PolicyVolume:
		if detector == nil {
			return nil, fmt.Errorf("volume policy requires a volume detector")
		}
		return &VolumePolicy{Detector: detector}, nil
	case PolicyFeatures:
		if models == nil {
			return nil, fmt.Errorf("features policy requires language models")
		}
		return &FeaturePolicy{Models: models}, nil
	}
	return nil, fmt.Errorf("unknown acoustic policy %q (want %q or %q)", name, PolicyVolume, PolicyFeatures)
}
