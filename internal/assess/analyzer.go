package assess

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/snarg/speakscore/internal/acoustic"
	"github.com/snarg/speakscore/internal/errlog"
	"github.com/snarg/speakscore/internal/metrics"
)

// Analysis is the acoustic-only diagnostic for one recording. It is not persisted.
type Analysis struct {
	Word                    string   `json:"word"`
	Language                string   `json:"language"`
	Score                   float64  `json:"score"`
	PitchScore              float64  `json:"pitchScore"`
	IntensityScore          float64  `json:"intensityScore"`
	DurationScore           float64  `json:"durationScore"`
	Feedback                string   `json:"feedback"`
	LanguageCharacteristics []string `json:"languageCharacteristics"`
	VoiceDetected           bool     `json:"voiceDetected"`
	MeanVolumeDB            float64  `json:"meanVolumeDb"`
	VolumeMarks             float64  `json:"volumeMarks"`
}

// Analyzer runs both acoustic policies on a single download.
type Analyzer struct {
	ingestor Ingestor
	volume   acoustic.Policy
	features acoustic.Policy
	errs     *errlog.Log
	log      zerolog.Logger
}

// NewAnalyzer creates an Analyzer. A nil errs discards failure records.
func NewAnalyzer(ingestor Ingestor, volume, features acoustic.Policy, errs *errlog.Log, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		ingestor: ingestor,
		volume:   volume,
		features: features,
		errs:     errs,
		log:      log.With().Str("component", "analyze").Logger(),
	}
}

// Analyze validates req and scores the recording with both policies.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	r := Request{AudioURL: req.AudioURL, Word: req.Word, Language: req.Language}.trimmed()
	if fields := validate(r, a.ingestor, false, false); len(fields) > 0 {
		return nil, rejected(fields)
	}

	out, err := a.analyze(ctx, r)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			a.errs.Record(ctx, "analyze_"+ae.Stage, ae.Err, map[string]string{
				"word":      r.Word,
				"language":  r.Language,
				"audio_url": r.AudioURL,
			})
		}
		a.log.Warn().Err(err).Str("word", r.Word).Msg("analysis failed")
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) analyze(ctx context.Context, r Request) (*Analysis, error) {
	start := time.Now()
	clip, err := a.ingestor.Fetch(ctx, r.AudioURL)
	metrics.StageDuration.WithLabelValues(StageIngest).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, evaluationFailed(StageIngest, err)
	}
	defer clip.Release()

	var vol, feat acoustic.Result
	start = time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vol, err = a.volume.Score(gctx, clip, r.Language)
		return err
	})
	g.Go(func() error {
		var err error
		feat, err = a.features.Score(gctx, clip, r.Language)
		return err
	})
	err = g.Wait()
	metrics.StageDuration.WithLabelValues(StageAcoustic).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, evaluationFailed(StageAcoustic, err)
	}

	out := &Analysis{
		Word:                    r.Word,
		Language:                feat.Language,
		Score:                   feat.Marks,
		Feedback:                feat.Analysis,
		LanguageCharacteristics: feat.Characteristics,
		VoiceDetected:           feat.VoiceDetected,
		MeanVolumeDB:            vol.MeanVolumeDB,
		VolumeMarks:             vol.Marks,
	}
	if feat.Scores != nil {
		out.PitchScore = feat.Scores.Pitch
		out.IntensityScore = feat.Scores.Intensity
		out.DurationScore = feat.Scores.Duration
	}
	return out, nil
}
