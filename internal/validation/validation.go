package validation

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength = 255
	MaxURLLength   = 2048
)

var (
	ErrEmptyURL        = errors.New("please enter a YouTube URL")
	ErrInvalidURL      = errors.New("invalid YouTube URL format")
	ErrURLTooLong      = errors.New("URL too long - maximum 2048 characters")
	ErrTitleTooLong    = errors.New("title too long - maximum 255 characters")
	ErrInvalidPosition = errors.New("position must be a finite, non-negative number of seconds")
)

// Patterns are tried in order; the first capture group is the video id.
var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([^&]+)`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtu\.be/([^?]+)`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtube\.com/embed/([^?]+)`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtube\.com/v/([^?]+)`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?youtube\.com/shorts/([^?]+)`),
}

// ExtractVideoID returns the video id of a watch, youtu.be, embed, v or
// shorts URL.
func ExtractVideoID(rawURL string) (string, error) {

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}

	if len(rawURL) > MaxURLLength {
		return "", ErrURLTooLong
	}

	for _, p := range youtubePatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil && m[1] != "" {
			return m[1], nil
		}
	}

	return "", ErrInvalidURL
}

func ValidateTitle(title string) error {

	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}

	return nil
}

func ValidatePosition(seconds float64) error {

	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return ErrInvalidPosition
	}

	return nil
}
