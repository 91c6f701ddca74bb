package models

// Marking state tags exposed to the UI.
const (
	MarkingIdle      = "idle"
	MarkingRecording = "recording"
)

// SessionView is the read-only projection of a session used for display.
type SessionView struct {
	SessionID   string `json:"session_id"`
	VideoID     string `json:"video_id,omitempty"`
	PlayerReady bool   `json:"player_ready"`

	// Marking is MarkingIdle or MarkingRecording. PendingStart is set only while recording.
	Marking      string   `json:"marking"`
	PendingStart *float64 `json:"pending_start,omitempty"`

	CurrentTime float64 `json:"current_time"`
	Playing     bool    `json:"playing"`

	Clips         []Clip  `json:"clips"`
	TotalDuration float64 `json:"total_duration"`
}
