package submission

import (
	"context"
	"fmt"

	"clip-tracker/internal/timecode"
	"clip-tracker/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const untitledClip = "Untitled clip"

// DownloadRequest names one submitted clip.
type DownloadRequest struct {
	VideoID   string  `json:"video_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// Ticket acknowledges a download request. No media is produced.
type Ticket struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	Description string `json:"description"`
	Length      string `json:"length"`
}

// Downloader acknowledges download requests and logs them.
type Downloader struct {
	Logger zerolog.Logger
}

func (d *Downloader) Request(ctx context.Context, req DownloadRequest) (Ticket, error) {
	if req.VideoID == "" {
		return Ticket{}, fmt.Errorf("video_id is required")
	}
	if err := validation.ValidatePosition(req.StartTime); err != nil {
		return Ticket{}, err
	}
	if err := validation.ValidatePosition(req.EndTime); err != nil {
		return Ticket{}, err
	}
	if req.EndTime <= req.StartTime {
		return Ticket{}, fmt.Errorf("end_time must be after start_time")
	}

	title := req.Title
	if title == "" {
		title = untitledClip
	}

	t := Ticket{
		ID:          uuid.NewString(),
		Message:     fmt.Sprintf("Preparing download for %q", title),
		Description: "Time range: " + timecode.Range(req.StartTime, req.EndTime),
		Length:      timecode.Length(req.StartTime, req.EndTime),
	}

	d.Logger.Info().
		Str("ticket_id", t.ID).
		Str("video_id", req.VideoID).
		Float64("start_time", req.StartTime).
		Float64("end_time", req.EndTime).
		Str("title", req.Title).
		Msg("download requested")

	return t, nil
}
