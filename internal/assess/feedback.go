package assess

// NoVoiceFeedback is the only feedback on a silence-gated assessment.
const NoVoiceFeedback = "No voice detected. Please speak clearly and try again."

// Feedback returns one accuracy message followed by one pitch-intensity message.
func Feedback(accuracyMarks, pitchIntensityMarks float64) []string {
	fb := make([]string, 0, 2)
	switch {
	case accuracyMarks < 70:
		fb = append(fb, "Focus on enunciating the word more precisely.")
	case accuracyMarks < 85:
		fb = append(fb, "Good effort! Try to match the pronunciation more closely.")
	default:
		fb = append(fb, "Excellent pronunciation accuracy!")
	}
	switch {
	case pitchIntensityMarks < 70:
		fb = append(fb, "Try to speak with more clarity and volume.")
	case pitchIntensityMarks < 85:
		fb = append(fb, "Your pitch and intensity are good, but could be more consistent.")
	default:
		fb = append(fb, "Your pitch and intensity are excellent! Keep it up.")
	}
	return fb
}
