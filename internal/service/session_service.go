// internal/service/session_service.go
package service

import (
	"context"
	"errors"
	"sync"

	"clip-tracker/internal/models"
	"clip-tracker/internal/player"
	"clip-tracker/internal/session"
	"clip-tracker/internal/submission"
	"clip-tracker/internal/validation"

	"github.com/rs/zerolog"
)

// Sentinel errors — callers use errors.Is() instead of string matching
var (
	ErrNoVideo = errors.New("no video loaded")
)

// SessionService ties the session registry to the browser players attached
// to each session and to the submission transport.
type SessionService struct {
	Sessions  *session.Manager
	Sinks     submission.Multi
	Downloads *submission.Downloader
	Logger    zerolog.Logger

	mu      sync.Mutex
	players map[string]*player.Remote // session id -> attached browser player
}

func (s *SessionService) CreateSession() models.SessionView {
	sess := s.Sessions.Create()
	s.Logger.Info().Str("session_id", sess.ID).Msg("session created")
	return sess.View()
}

func (s *SessionService) GetSession(id string) (*session.Session, error) {
	return s.Sessions.Get(id)
}

func (s *SessionService) ListSessions() []string {
	return s.Sessions.List()
}

// DeleteSession disconnects the session's player and removes the session.
// Deleting an unknown session is not an error.
func (s *SessionService) DeleteSession(id string) {
	s.mu.Lock()
	remote := s.players[id]
	delete(s.players, id)
	s.mu.Unlock()

	if remote != nil {
		remote.Close()
	}
	s.Sessions.Delete(id)
}

// LoadVideo validates rawURL, switches the session to its video and asks the
// attached player, if any, to load it.
func (s *SessionService) LoadVideo(id, rawURL string) (models.SessionView, error) {
	sess, err := s.Sessions.Get(id)
	if err != nil {
		return models.SessionView{}, err
	}

	videoID, err := validation.ExtractVideoID(rawURL)
	if err != nil {
		return models.SessionView{}, err
	}

	sess.LoadVideo(videoID)

	if remote := s.player(id); remote != nil {
		if err := remote.Load(videoID); err != nil {
			s.Logger.Warn().Err(err).Str("session_id", id).Msg("player did not accept load")
		}
	}

	return sess.View(), nil
}

// AttachPlayer creates the browser-backed player for session id. A player
// already attached to the session is closed and replaced.
func (s *SessionService) AttachPlayer(id string, logger zerolog.Logger) (*player.Remote, error) {
	sess, err := s.Sessions.Get(id)
	if err != nil {
		return nil, err
	}

	remote := player.NewRemote(func(videoID string, h player.Handle) {
		sess.MarkPlayerReady(videoID, h)
	}, logger)

	s.mu.Lock()
	if s.players == nil {
		s.players = make(map[string]*player.Remote)
	}
	old := s.players[id]
	s.players[id] = remote
	s.mu.Unlock()

	if old != nil {
		old.Close()
		sess.ReleasePlayer(old)
	}

	if videoID := sess.VideoID(); videoID != "" {
		if err := remote.Load(videoID); err != nil {
			return nil, err
		}
	}
	return remote, nil
}

// DetachPlayer forgets remote once its connection is gone.
func (s *SessionService) DetachPlayer(id string, remote *player.Remote) {
	s.mu.Lock()
	if s.players[id] == remote {
		delete(s.players, id)
	}
	s.mu.Unlock()

	remote.Close()
	if sess, err := s.Sessions.Get(id); err == nil {
		sess.ReleasePlayer(remote)
	}
}

func (s *SessionService) player(id string) *player.Remote {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.players[id]
}

// Submit snapshots the session and hands the clips, without ids, to every
// configured sink. Zero clips are rejected here, not by the session.
func (s *SessionService) Submit(ctx context.Context, id string) (models.Submission, []submission.Receipt, error) {
	sess, err := s.Sessions.Get(id)
	if err != nil {
		return models.Submission{}, nil, err
	}

	snap := sess.Snapshot()
	if len(snap.Clips) == 0 {
		return models.Submission{}, nil, submission.ErrNoClips
	}
	if snap.VideoID == "" {
		return models.Submission{}, nil, ErrNoVideo
	}

	sub := snap.Submission()
	receipts, err := s.Sinks.Submit(ctx, sub)
	if err != nil {
		s.Logger.Error().Err(err).Str("session_id", id).Msg("submission incomplete")
		return sub, receipts, err
	}
	return sub, receipts, nil
}

func (s *SessionService) RequestDownload(ctx context.Context, req submission.DownloadRequest) (submission.Ticket, error) {
	return s.Downloads.Request(ctx, req)
}
