// Package session owns the state of one loaded video: its player handle,
// the marking machine, and the ordered clip collection.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"clip-tracker/internal/marking"
	"clip-tracker/internal/models"
	"clip-tracker/internal/player"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sentinel errors — callers use errors.Is() instead of string matching
var (
	ErrDuplicateID  = errors.New("duplicate clip id")
	ErrClipNotFound = errors.New("clip not found")
	ErrInvalidClip  = errors.New("invalid clip")
)

const DefaultPollInterval = 250 * time.Millisecond

// Config carries the settings shared by every session a Manager creates.
type Config struct {
	PollInterval time.Duration
	Logger       zerolog.Logger
	NewClipID    func() string
}

// Session is safe for concurrent use. Every method runs under one lock, so the
// marking machine sees events in a single order.
type Session struct {
	ID string

	mu     sync.Mutex
	closed bool

	videoID string
	handle  player.Handle
	ready   bool

	// generation changes whenever the handle is attached or discarded, so a
	// poller tick that lost the race with a reload is dropped.
	generation  uint64
	poller      *player.Poller
	currentTime float64

	machine *marking.Machine
	clips   []models.Clip

	pollInterval time.Duration
	logger       zerolog.Logger
}

func New(id string, cfg Config) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.NewClipID == nil {
		cfg.NewClipID = uuid.NewString
	}
	return &Session{
		ID:           id,
		machine:      marking.NewWithIDs(cfg.NewClipID),
		clips:        []models.Clip{},
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger.With().Str("component", "session").Str("session_id", id).Logger(),
	}
}

// LoadVideo switches the session to videoID. The player handle, the poller,
// any pending mark and all clips belong to the previous video and are dropped.
func (s *Session) LoadVideo(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detachLocked()
	s.videoID = videoID
	s.clips = []models.Clip{}
	s.machine.Reset()

	s.logger.Info().Str("video_id", videoID).Msg("video loaded")
}

// MarkPlayerReady attaches h as the live player for videoID and starts the
// position poller. It reports false, and does nothing, when no video is loaded
// or videoID is not the loaded one.
func (s *Session) MarkPlayerReady(videoID string, h player.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || h == nil || s.videoID == "" || videoID != s.videoID {
		s.logger.Debug().Str("video_id", videoID).Str("loaded", s.videoID).Msg("readiness ignored")
		return false
	}

	s.poller.Stop()
	s.generation++
	gen := s.generation

	s.handle = h
	s.ready = true
	s.poller = player.StartPoller(h, s.pollInterval, s.logger, func(pos float64) {
		s.publishPosition(gen, pos)
	})

	s.logger.Info().Str("video_id", videoID).Msg("player ready")
	return true
}

func (s *Session) publishPosition(gen uint64, pos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || !s.ready {
		return
	}
	s.currentTime = pos
}

// ReleasePlayer drops h if it is the attached handle, e.g. after the browser
// disconnects. The video and its clips stay; readiness must be signalled again.
func (s *Session) ReleasePlayer(h player.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil || s.handle != h {
		return false
	}
	s.detachLocked()
	s.logger.Info().Msg("player released")
	return true
}

// detachLocked must be called with s.mu held.
func (s *Session) detachLocked() {
	s.poller.Stop()
	s.poller = nil
	s.handle = nil
	s.ready = false
	s.currentTime = 0
	s.generation++
}

// StartMarking begins a mark at the player's current position.
func (s *Session) StartMarking() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Start(s.handle, s.ready); err != nil {
		s.logger.Debug().Err(err).Msg("start marking refused")
		return err
	}

	start, _ := s.machine.PendingStart()
	s.logger.Debug().Float64("start", start).Msg("marking started")
	return nil
}

// EndMarking closes the pending mark. created is false when the end was not
// after the start; no clip is stored in that case.
func (s *Session) EndMarking() (models.Clip, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, created, err := s.machine.End(s.handle)
	if err != nil {
		s.logger.Debug().Err(err).Msg("end marking refused")
		return models.Clip{}, false, err
	}
	if !created {
		s.logger.Debug().Msg("empty mark discarded")
		return models.Clip{}, false, nil
	}

	if err := s.addLocked(clip); err != nil {
		s.logger.Error().Err(err).Str("clip_id", clip.ID).Msg("marked clip rejected by store")
		return models.Clip{}, false, err
	}

	s.logger.Info().
		Str("clip_id", clip.ID).
		Float64("start", clip.StartTime).
		Float64("end", clip.EndTime).
		Msg("clip created")
	return clip, true, nil
}

// AddClip appends c to the collection.
func (s *Session) AddClip(c models.Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addLocked(c)
}

func (s *Session) addLocked(c models.Clip) error {
	if c.ID == "" || c.StartTime < 0 || c.EndTime <= c.StartTime {
		return fmt.Errorf("%w: id=%q start=%v end=%v", ErrInvalidClip, c.ID, c.StartTime, c.EndTime)
	}
	if s.indexLocked(c.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}
	s.clips = append(s.clips, c)
	return nil
}

// DeleteClip removes the clip with id. Unknown ids are ignored.
func (s *Session) DeleteClip(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return
	}
	s.clips = append(s.clips[:i], s.clips[i+1:]...)
}

// UpdateTitle replaces the title of clip id. Timing is never touched.
func (s *Session) UpdateTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	s.clips[i].Title = title
	return nil
}

func (s *Session) indexLocked(id string) int {
	for i, c := range s.clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Clips returns a copy of the collection in creation order.
func (s *Session) Clips() []models.Clip {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.copyClipsLocked()
}

func (s *Session) copyClipsLocked() []models.Clip {
	out := make([]models.Clip, len(s.clips))
	copy(out, s.clips)
	return out
}

// Snapshot returns the loaded video id and a copy of every clip. An empty
// collection is returned as is.
func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.Snapshot{VideoID: s.videoID, Clips: s.copyClipsLocked()}
}

// VideoID returns the loaded video id, empty when none is loaded.
func (s *Session) VideoID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.videoID
}

// TogglePlayback toggles the attached player.
func (s *Session) TogglePlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.handle == nil {
		return player.ErrUnavailable
	}
	return asUnavailable(s.handle.TogglePlayback())
}

// PreviewClip seeks the player to the start of clip id and plays.
func (s *Session) PreviewClip(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if !s.ready || s.handle == nil {
		return player.ErrUnavailable
	}
	return asUnavailable(s.handle.SeekAndPlay(s.clips[i].StartTime))
}

// View returns the display projection of the session.
func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := models.SessionView{
		SessionID:   s.ID,
		VideoID:     s.videoID,
		PlayerReady: s.ready,
		Marking:     s.machine.State().String(),
		CurrentTime: s.currentTime,
		Clips:       s.copyClipsLocked(),
	}
	for _, c := range s.clips {
		v.TotalDuration += c.Duration()
	}
	if start, ok := s.machine.PendingStart(); ok {
		v.PendingStart = &start
	}
	if s.ready && s.handle != nil {
		if playing, err := s.handle.IsPlaying(); err == nil {
			v.Playing = playing
		}
	}
	return v
}

// Close stops the poller and drops the player. The session ignores readiness
// afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detachLocked()
	s.machine.Reset()
	s.closed = true
}

func asUnavailable(err error) error {
	if err == nil || errors.Is(err, player.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", player.ErrUnavailable, err)
}
