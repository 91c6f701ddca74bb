// Package player defines the capability surface the clip session needs from the
// embedded video player, and the browser-backed implementation of it.
package player

import "errors"

// ErrUnavailable is returned when no ready player is attached or the player
// cannot answer. Callers treat it as recoverable.
var ErrUnavailable = errors.New("player unavailable")

// Handle is a live player. Implementations must be safe for concurrent use.
type Handle interface {
	// CurrentPosition returns the playback position in seconds.
	CurrentPosition() (float64, error)

	// TogglePlayback pauses a playing player and plays a paused one.
	TogglePlayback() error

	// SeekAndPlay jumps to seconds and starts playback.
	SeekAndPlay(seconds float64) error

	// IsPlaying reports whether the player is playing.
	IsPlaying() (bool, error)
}

// ReadyFunc receives the live handle once the player has loaded videoID.
type ReadyFunc func(videoID string, h Handle)
