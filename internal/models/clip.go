package models

// Clip is a finalized in/out pair on the loaded video. Times are seconds.
type Clip struct {
	ID        string  `json:"id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	return c.EndTime - c.StartTime
}

// Snapshot is a point-in-time copy of a session's clips, in creation order.
type Snapshot struct {
	VideoID string `json:"video_id"`
	Clips   []Clip `json:"clips"`
}

// SubmittedClip is a clip as handed to the submission transport: no id.
type SubmittedClip struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// Submission is the payload produced by a submit.
type Submission struct {
	VideoID string          `json:"video_id"`
	Clips   []SubmittedClip `json:"clips"`
}

// Submission strips clip ids from the snapshot.
func (s Snapshot) Submission() Submission {
	clips := make([]SubmittedClip, 0, len(s.Clips))
	for _, c := range s.Clips {
		clips = append(clips, SubmittedClip{
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Title:     c.Title,
		})
	}
	return Submission{VideoID: s.VideoID, Clips: clips}
}
