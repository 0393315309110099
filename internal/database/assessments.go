package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssessmentRow is one persisted pronunciation assessment.
type AssessmentRow struct {
	ID                  uuid.UUID
	UserID              string
	LessonID            string
	Word                string
	Language            string
	TranscribedText     string
	AccuracyMarks       float64
	PitchIntensityMarks float64
	FinalMarks          float64
	Feedback            []string
	Outcome             string // "completed", "silence_gated"
	AcousticPolicy      string
	PhoneticMatch       bool
	CreatedAt           time.Time
}

// assessmentColumns is the column order shared by inserts and selects.
const assessmentColumns = `id, user_id, lesson_id, word, language, transcribed_text,
	accuracy_marks, pitch_intensity_marks, final_marks,
	feedback, outcome, acoustic_policy, phonetic_match, created_at`

// InsertAssessment stores a new assessment. Rows are never updated afterwards.
func (db *DB) InsertAssessment(ctx context.Context, row *AssessmentRow) error {
	feedback := row.Feedback
	if feedback == nil {
		feedback = []string{}
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO assessments (`+assessmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		row.ID, row.UserID, row.LessonID, row.Word, row.Language, row.TranscribedText,
		row.AccuracyMarks, row.PitchIntensityMarks, row.FinalMarks,
		feedback, row.Outcome, row.AcousticPolicy, row.PhoneticMatch, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// ListAssessmentsByUser returns a user's assessments newest first, plus the
// total number of assessments for that user.
func (db *DB) ListAssessmentsByUser(ctx context.Context, userID string, limit, offset int) ([]AssessmentRow, int, error) {
	var total int
	if err := db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM assessments WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count assessments: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+assessmentColumns+`
		FROM assessments
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []AssessmentRow
	for rows.Next() {
		var r AssessmentRow
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.LessonID, &r.Word, &r.Language, &r.TranscribedText,
			&r.AccuracyMarks, &r.PitchIntensityMarks, &r.FinalMarks,
			&r.Feedback, &r.Outcome, &r.AcousticPolicy, &r.PhoneticMatch, &r.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list assessments: %w", err)
	}
	return out, total, nil
}
