package player

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Messages sent by the browser player.
const (
	MsgReady = "ready"
	MsgState = "state"
	MsgError = "error"
)

// Commands sent to the browser player.
const (
	CmdLoad   = "load"
	CmdToggle = "toggle"
	CmdSeek   = "seek"
)

const outboundQueueSize = 64

var ErrUnknownMessage = errors.New("unknown player message")

// ClientMessage is a message reported by the embedded player.
type ClientMessage struct {
	Type     string  `json:"type"`
	VideoID  string  `json:"video_id,omitempty"`
	Position float64 `json:"position,omitempty"`
	Playing  bool    `json:"playing,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Command is an instruction for the embedded player.
type Command struct {
	Type     string  `json:"type"`
	VideoID  string  `json:"video_id,omitempty"`
	Position float64 `json:"position,omitempty"`
	Play     bool    `json:"play,omitempty"`
}

// Remote is a Handle backed by a player running in the browser. The browser
// reports its state; Remote answers position queries from the last report and
// queues commands for the write pump.
type Remote struct {
	mu     sync.Mutex
	send   chan []byte
	closed bool

	videoID    string
	ready      bool
	position   float64
	playing    bool
	reportedAt time.Time

	now     func() time.Time
	onReady ReadyFunc
	logger  zerolog.Logger
}

// NewRemote creates a Remote. onReady fires once per loaded video id.
func NewRemote(onReady ReadyFunc, logger zerolog.Logger) *Remote {
	return &Remote{
		send:    make(chan []byte, outboundQueueSize),
		now:     time.Now,
		onReady: onReady,
		logger:  logger.With().Str("component", "remote_player").Logger(),
	}
}

// Outbound returns the queue of encoded commands. It is closed by Close.
func (r *Remote) Outbound() <-chan []byte {
	return r.send
}

// HandleMessage applies one message received from the browser.
func (r *Remote) HandleMessage(data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode player message: %w", err)
	}

	switch msg.Type {
	case MsgReady:
		r.handleReady(msg.VideoID)
	case MsgState:
		r.handleState(msg)
	case MsgError:
		r.mu.Lock()
		r.ready = false
		r.mu.Unlock()
		r.logger.Warn().Str("video_id", msg.VideoID).Str("reason", msg.Message).Msg("player reported error")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return nil
}

func (r *Remote) handleReady(videoID string) {
	r.mu.Lock()
	if r.closed || videoID == "" {
		r.mu.Unlock()
		return
	}
	if r.videoID != "" && videoID != r.videoID {
		r.mu.Unlock()
		r.logger.Debug().Str("video_id", videoID).Str("expected", r.videoID).Msg("stale ready dropped")
		return
	}
	if r.ready {
		r.mu.Unlock()
		return
	}

	r.videoID = videoID
	r.ready = true
	r.position = 0
	r.playing = false
	r.reportedAt = r.now()
	onReady := r.onReady
	r.mu.Unlock()

	if onReady != nil {
		onReady(videoID, r)
	}
}

func (r *Remote) handleState(msg ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || msg.VideoID != r.videoID || msg.Position < 0 {
		return
	}
	r.position = msg.Position
	r.playing = msg.Playing
	r.reportedAt = r.now()
}

// Load asks the browser to load videoID. Readiness is reset until the browser
// reports ready for that id.
func (r *Remote) Load(videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrUnavailable
	}
	r.videoID = videoID
	r.ready = false
	r.position = 0
	r.playing = false
	return r.enqueue(Command{Type: CmdLoad, VideoID: videoID})
}

// CurrentPosition extrapolates the last reported position while playing.
func (r *Remote) CurrentPosition() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.ready {
		return 0, ErrUnavailable
	}
	return r.positionLocked(), nil
}

func (r *Remote) positionLocked() float64 {
	if !r.playing {
		return r.position
	}
	elapsed := r.now().Sub(r.reportedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return r.position + elapsed
}

func (r *Remote) TogglePlayback() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.ready {
		return ErrUnavailable
	}
	if err := r.enqueue(Command{Type: CmdToggle}); err != nil {
		return err
	}
	r.position = r.positionLocked()
	r.playing = !r.playing
	r.reportedAt = r.now()
	return nil
}

func (r *Remote) SeekAndPlay(seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.ready {
		return ErrUnavailable
	}
	if seconds < 0 {
		seconds = 0
	}
	if err := r.enqueue(Command{Type: CmdSeek, Position: seconds, Play: true}); err != nil {
		return err
	}
	r.position = seconds
	r.playing = true
	r.reportedAt = r.now()
	return nil
}

func (r *Remote) IsPlaying() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.ready {
		return false, ErrUnavailable
	}
	return r.playing, nil
}

// Close marks the player gone. Further calls fail with ErrUnavailable.
func (r *Remote) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.ready = false
	close(r.send)
}

// enqueue must be called with r.mu held.
func (r *Remote) enqueue(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	select {
	case r.send <- data:
		return nil
	default:
		return fmt.Errorf("%w: command queue full", ErrUnavailable)
	}
}

var _ Handle = (*Remote)(nil)
