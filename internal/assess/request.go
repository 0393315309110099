package assess

import (
	"net/url"
	"regexp"
	"strings"
)

var languagePattern = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

// Request asks for one pronunciation assessment.
type Request struct {
	AudioURL string `json:"audioUrl"`
	Word     string `json:"word"`
	Language string `json:"language"`
	LessonID string `json:"lessonId"`
	UserID   string `json:"userId"`
}

func (r Request) trimmed() Request {
	return Request{
		AudioURL: strings.TrimSpace(r.AudioURL),
		Word:     strings.TrimSpace(r.Word),
		Language: strings.TrimSpace(r.Language),
		LessonID: strings.TrimSpace(r.LessonID),
		UserID:   strings.TrimSpace(r.UserID),
	}
}

// AnalyzeRequest asks for an acoustic-only analysis that is not persisted.
type AnalyzeRequest struct {
	AudioURL string `json:"audioUrl"`
	Word     string `json:"word"`
	Language string `json:"language"`
}

// URLChecker reports whether a recording URL can be fetched.
type URLChecker interface {
	Supports(u *url.URL) bool
}

// validate checks r and returns the offending fields keyed by JSON name.
// When public is set the URL must also be reachable by the transcription
// service, which rules out local files.
func validate(r Request, urls URLChecker, public bool, needUser bool) map[string]string {
	fields := map[string]string{}

	if msg := checkURL(r.AudioURL, urls, public); msg != "" {
		fields["audioUrl"] = msg
	}
	if r.Word == "" {
		fields["word"] = "is required"
	}
	switch {
	case r.Language == "":
		fields["language"] = "is required"
	case !languagePattern.MatchString(r.Language):
		fields["language"] = "must look like en or en-US"
	}
	if needUser {
		if r.LessonID == "" {
			fields["lessonId"] = "is required"
		}
		if r.UserID == "" {
			fields["userId"] = "is required"
		}
	}
	return fields
}

func checkURL(raw string, urls URLChecker, public bool) string {
	if raw == "" {
		return "is required"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "must be an absolute URL"
	}
	if public && strings.EqualFold(u.Scheme, "file") {
		return "must be reachable by the transcription service (http, https or s3)"
	}
	if !urls.Supports(u) {
		return "scheme " + u.Scheme + " is not supported"
	}
	return ""
}
