package submission

import (
	"context"

	"clip-tracker/internal/models"
	"clip-tracker/internal/timecode"

	"github.com/rs/zerolog"
)

// LogSink writes submissions to the log. It is always configured, so a
// submission is visible even when no other sink is.
type LogSink struct {
	Logger zerolog.Logger
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Submit(ctx context.Context, sub models.Submission) (Receipt, error) {
	clips := zerolog.Arr()
	for _, c := range sub.Clips {
		clips.Object(loggedClip(c))
	}

	s.Logger.Info().
		Str("video_id", sub.VideoID).
		Int("clip_count", len(sub.Clips)).
		Array("clips", clips).
		Msg("clips submitted")

	return Receipt{Sink: s.Name()}, nil
}

type loggedClip models.SubmittedClip

func (c loggedClip) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("start_time", c.StartTime).
		Float64("end_time", c.EndTime).
		Str("title", c.Title).
		Str("range", timecode.Range(c.StartTime, c.EndTime))
}
