package assess

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/speakscore/internal/acoustic"
	"github.com/snarg/speakscore/internal/audio"
	"github.com/snarg/speakscore/internal/database"
	"github.com/snarg/speakscore/internal/errlog"
	"github.com/snarg/speakscore/internal/lexical"
	"github.com/snarg/speakscore/internal/metrics"
	"github.com/snarg/speakscore/internal/transcribe"
)

// Weights of the two sub-scores in the final marks.
const (
	accuracyWeight       = 0.6
	pitchIntensityWeight = 0.4
)

// Outcome is the terminal state of a successful evaluation.
type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeSilenceGated Outcome = "silence_gated"
)

// Assessment is a scored attempt at one word.
type Assessment struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	LessonID            string    `json:"lessonId"`
	Word                string    `json:"word"`
	Language            string    `json:"language"`
	TranscribedText     string    `json:"transcribedText"`
	AccuracyMarks       float64   `json:"accuracyMarks"`
	PitchIntensityMarks float64   `json:"pitchIntensityMarks"`
	FinalMarks          float64   `json:"finalMarks"`
	Feedback            []string  `json:"feedback"`
	Outcome             Outcome   `json:"outcome"`
	AcousticPolicy      string    `json:"acousticPolicy"`
	PhoneticMatch       bool      `json:"phoneticMatch"`
	Timestamp           time.Time `json:"timestamp"`
}

// Ingestor fetches recordings into temporary waveform files.
type Ingestor interface {
	URLChecker
	Fetch(ctx context.Context, rawURL string) (*audio.Clip, error)
	PublicURL(ctx context.Context, rawURL string) (string, error)
}

// Store persists assessments.
type Store interface {
	InsertAssessment(ctx context.Context, row *database.AssessmentRow) error
	ListAssessmentsByUser(ctx context.Context, userID string, limit, offset int) ([]database.AssessmentRow, int, error)
}

// Notifier publishes a payload under a topic suffix.
type Notifier interface {
	Publish(topic string, payload any) error
}

// Options configures a Service.
type Options struct {
	Ingestor         Ingestor
	Policy           acoustic.Policy
	Transcriber      transcribe.Transcriber
	Store            Store
	Notifier         Notifier // optional
	ErrorLog         *errlog.Log
	SilenceThreshold float64 // pitch-intensity marks below which a recording counts as silent
	Log              zerolog.Logger
	Now              func() time.Time
}

// Service runs the assessment pipeline. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	opts Options
	log  zerolog.Logger
}

// NewService creates a Service. SilenceThreshold is used as given; zero or
// below disables the silence gate.
func NewService(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		opts: opts,
		log:  opts.Log.With().Str("component", "assess").Logger(),
	}
}

// Evaluate validates req, scores the recording and persists the assessment.
// Silence-gated recordings are a successful result. Failures are returned as
// *Error; nothing is persisted for them.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Assessment, error) {
	req = req.trimmed()
	if fields := validate(req, s.opts.Ingestor, true, true); len(fields) > 0 {
		metrics.AssessmentsTotal.WithLabelValues(string(KindRejectedInput)).Inc()
		return nil, rejected(fields)
	}

	lc := s.log.With().
		Str("user_id", req.UserID).
		Str("lesson_id", req.LessonID).
		Str("word", req.Word)
	if id := errlog.RequestID(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	log := lc.Logger()

	a, err := s.evaluate(ctx, log, req)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			metrics.AssessmentsTotal.WithLabelValues(string(ae.Kind)).Inc()
			s.opts.ErrorLog.Record(ctx, ae.Stage, ae.Err, map[string]string{
				"user_id":   req.UserID,
				"lesson_id": req.LessonID,
				"word":      req.Word,
				"language":  req.Language,
				"audio_url": req.AudioURL,
			})
		}
		log.Warn().Err(err).Msg("evaluation failed")
		return nil, err
	}
	metrics.AssessmentsTotal.WithLabelValues(string(a.Outcome)).Inc()
	return a, nil
}

func (s *Service) evaluate(ctx context.Context, log zerolog.Logger, req Request) (*Assessment, error) {
	marks, err := s.acousticMarks(ctx, req)
	if err != nil {
		return nil, err
	}
	if marks < s.opts.SilenceThreshold {
		log.Debug().Float64("pitch_intensity_marks", marks).Msg("below silence threshold")
		return s.gated(ctx, req, marks)
	}

	text, err := s.transcribe(ctx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		log.Debug().Msg("empty transcription")
		return s.gated(ctx, req, marks)
	}

	start := time.Now()
	lex := lexical.Compare(text, req.Word)
	metrics.StageDuration.WithLabelValues(StageLexical).Observe(time.Since(start).Seconds())

	a := s.newAssessment(req)
	a.Outcome = OutcomeCompleted
	a.TranscribedText = text
	a.AccuracyMarks = lex.Accuracy
	a.PitchIntensityMarks = marks
	a.FinalMarks = math.Round(accuracyWeight*lex.Accuracy + pitchIntensityWeight*marks)
	a.Feedback = Feedback(lex.Accuracy, marks)
	a.PhoneticMatch = lex.PhoneticMatch

	if err := s.persist(ctx, a); err != nil {
		return nil, err
	}
	log.Info().
		Float64("accuracy_marks", a.AccuracyMarks).
		Float64("pitch_intensity_marks", a.PitchIntensityMarks).
		Float64("final_marks", a.FinalMarks).
		Msg("assessment completed")
	return a, nil
}

// acousticMarks fetches the recording, scores it and releases the temp files
// before returning, so nothing stays on disk while transcription polls.
func (s *Service) acousticMarks(ctx context.Context, req Request) (float64, error) {
	start := time.Now()
	clip, err := s.opts.Ingestor.Fetch(ctx, req.AudioURL)
	metrics.StageDuration.WithLabelValues(StageIngest).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, evaluationFailed(StageIngest, err)
	}
	defer clip.Release()

	start = time.Now()
	res, err := s.opts.Policy.Score(ctx, clip, req.Language)
	metrics.StageDuration.WithLabelValues(StageAcoustic).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, evaluationFailed(StageAcoustic, err)
	}
	return res.Marks, nil
}

func (s *Service) transcribe(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(StageTranscribe).Observe(time.Since(start).Seconds())
	}()

	audioURL, err := s.opts.Ingestor.PublicURL(ctx, req.AudioURL)
	if err != nil {
		return "", evaluationFailed(StageTranscribe, err)
	}
	text, err := s.opts.Transcriber.Transcribe(ctx, audioURL, req.Language)
	if err != nil {
		return "", &Error{Kind: KindTranscriptionFailed, Stage: StageTranscribe, Err: err}
	}
	return text, nil
}

func (s *Service) gated(ctx context.Context, req Request, marks float64) (*Assessment, error) {
	a := s.newAssessment(req)
	a.Outcome = OutcomeSilenceGated
	a.PitchIntensityMarks = marks
	a.Feedback = []string{NoVoiceFeedback}
	if err := s.persist(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) newAssessment(req Request) *Assessment {
	return &Assessment{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		LessonID:       req.LessonID,
		Word:           req.Word,
		Language:       req.Language,
		AcousticPolicy: s.opts.Policy.Name(),
		Timestamp:      s.opts.Now().UTC(),
	}
}

func (s *Service) persist(ctx context.Context, a *Assessment) error {
	start := time.Now()
	err := s.opts.Store.InsertAssessment(ctx, toRow(a))
	metrics.StageDuration.WithLabelValues(StagePersist).Observe(time.Since(start).Seconds())
	if err != nil {
		return evaluationFailed(StagePersist, err)
	}

	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.Publish("assessments/"+url.PathEscape(a.UserID), a); err != nil {
			s.log.Warn().Err(err).Str("assessment_id", a.ID).Msg("assessment event not published")
		}
	}
	return nil
}

// History returns a user's assessments newest first and the user's total count.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]Assessment, int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, 0, rejected(map[string]string{"userId": "is required"})
	}
	rows, total, err := s.opts.Store.ListAssessmentsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, evaluationFailed(StageHistory, err)
	}
	out := make([]Assessment, len(rows))
	for i := range rows {
		out[i] = fromRow(&rows[i])
	}
	return out, total, nil
}

func toRow(a *Assessment) *database.AssessmentRow {
	id, _ := uuid.Parse(a.ID)
	return &database.AssessmentRow{
		ID:                  id,
		UserID:              a.UserID,
		LessonID:            a.LessonID,
		Word:                a.Word,
		Language:            a.Language,
		TranscribedText:     a.TranscribedText,
		AccuracyMarks:       a.AccuracyMarks,
		PitchIntensityMarks: a.PitchIntensityMarks,
		FinalMarks:          a.FinalMarks,
		Feedback:            a.Feedback,
		Outcome:             string(a.Outcome),
		AcousticPolicy:      a.AcousticPolicy,
		PhoneticMatch:       a.PhoneticMatch,
		CreatedAt:           a.Timestamp,
	}
}

func fromRow(r *database.AssessmentRow) Assessment {
	return Assessment{
		ID:                  r.ID.String(),
		UserID:              r.UserID,
		LessonID:            r.LessonID,
		Word:                r.Word,
		Language:            r.Language,
		TranscribedText:     r.TranscribedText,
		AccuracyMarks:       r.AccuracyMarks,
		PitchIntensityMarks: r.PitchIntensityMarks,
		FinalMarks:          r.FinalMarks,
		Feedback:            r.Feedback,
		Outcome:             Outcome(r.Outcome),
		AcousticPolicy:      r.AcousticPolicy,
		PhoneticMatch:       r.PhoneticMatch,
		Timestamp:           r.CreatedAt,
	}
}
