package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"clip-tracker/internal/logging"
	"clip-tracker/internal/marking"
	"clip-tracker/internal/models"
	"clip-tracker/internal/player"
	"clip-tracker/internal/service"
	"clip-tracker/internal/session"
	"clip-tracker/internal/submission"
	"clip-tracker/internal/validation"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type EditorHandler struct {
	Service  *service.SessionService
	Upgrader websocket.Upgrader
	WS       player.WSConfig
}

// Routes registers the API on r. r is expected to be the /api/v1 subrouter.
func (h *EditorHandler) Routes(r *mux.Router) {
	r.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	r.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/video", h.LoadVideo).Methods("PUT")
	r.HandleFunc("/sessions/{id}/player", h.ConnectPlayer).Methods("GET")
	r.HandleFunc("/sessions/{id}/marking/start", h.StartMarking).Methods("POST")
	r.HandleFunc("/sessions/{id}/marking/end", h.EndMarking).Methods("POST")
	r.HandleFunc("/sessions/{id}/playback/toggle", h.TogglePlayback).Methods("POST")
	r.HandleFunc("/sessions/{id}/clips", h.ListClips).Methods("GET")
	r.HandleFunc("/sessions/{id}/clips/{clipID}", h.UpdateClip).Methods("PATCH")
	r.HandleFunc("/sessions/{id}/clips/{clipID}", h.DeleteClip).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/clips/{clipID}/preview", h.PreviewClip).Methods("POST")
	r.HandleFunc("/sessions/{id}/submit", h.SubmitClips).Methods("POST")
	r.HandleFunc("/downloads", h.RequestDownload).Methods("POST")
}

func (h *EditorHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	view := h.Service.CreateSession()
	writeJSON(w, http.StatusCreated, view)
}

func (h *EditorHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"sessions": h.Service.ListSessions(),
	})
}

func (h *EditorHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, sess.View())
}

func (h *EditorHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.Service.DeleteSession(mux.Vars(r)["id"])

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
	})
}

func (h *EditorHandler) LoadVideo(w http.ResponseWriter, r *http.Request) {

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON"))
		return
	}

	view, err := h.Service.LoadVideo(mux.Vars(r)["id"], body.URL)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ConnectPlayer upgrades to a WebSocket and serves the browser player until
// it disconnects.
func (h *EditorHandler) ConnectPlayer(w http.ResponseWriter, r *http.Request) {

	id := mux.Vars(r)["id"]
	if _, err := h.Service.GetSession(id); err != nil {
		h.fail(w, r, err)
		return
	}

	l := logging.Ctx(r.Context())

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		l.Warn().Err(err).Msg("player upgrade failed")
		return
	}

	logger := l.With().Str("session_id", id).Logger()
	remote, err := h.Service.AttachPlayer(id, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("player attach failed")
		conn.Close()
		return
	}

	logger.Info().Msg("player connected")
	player.Serve(conn, remote, h.WS, logger)
	h.Service.DetachPlayer(id, remote)
	logger.Info().Msg("player disconnected")
}

func (h *EditorHandler) StartMarking(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := sess.StartMarking(); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.View())
}

func (h *EditorHandler) EndMarking(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	clip, created, err := sess.EndMarking()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := struct {
		Created bool         `json:"created"`
		Clip    *models.Clip `json:"clip,omitempty"`
	}{Created: created}
	if created {
		resp.Clip = &clip
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *EditorHandler) TogglePlayback(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := sess.TogglePlayback(); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.View())
}

func (h *EditorHandler) ListClips(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string][]models.Clip{
		"clips": sess.Clips(),
	})
}

func (h *EditorHandler) UpdateClip(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON"))
		return
	}
	if err := validation.ValidateTitle(body.Title); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := sess.UpdateTitle(mux.Vars(r)["clipID"], body.Title); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]models.Clip{
		"clips": sess.Clips(),
	})
}

func (h *EditorHandler) DeleteClip(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sess.DeleteClip(mux.Vars(r)["clipID"])

	writeJSON(w, http.StatusOK, map[string][]models.Clip{
		"clips": sess.Clips(),
	})
}

func (h *EditorHandler) PreviewClip(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := sess.PreviewClip(mux.Vars(r)["clipID"]); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "playing",
	})
}

func (h *EditorHandler) SubmitClips(w http.ResponseWriter, r *http.Request) {
	sub, receipts, err := h.Service.Submit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Submission models.Submission    `json:"submission"`
		Receipts   []submission.Receipt `json:"receipts"`
	}{sub, receipts})
}

func (h *EditorHandler) RequestDownload(w http.ResponseWriter, r *http.Request) {

	var req submission.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON"))
		return
	}

	ticket, err := h.Service.RequestDownload(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusAccepted, ticket)
}

func (h *EditorHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.Service.GetSession(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return sess, true
}

// fail maps domain errors onto HTTP statuses.
func (h *EditorHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		l := logging.Ctx(r.Context())
		l.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrClipNotFound):
		return http.StatusNotFound
	case errors.Is(err, player.ErrUnavailable),
		errors.Is(err, marking.ErrAlreadyRecording),
		errors.Is(err, marking.ErrNotRecording),
		errors.Is(err, service.ErrNoVideo):
		return http.StatusConflict
	case errors.Is(err, submission.ErrNoClips),
		errors.Is(err, validation.ErrEmptyURL),
		errors.Is(err, validation.ErrInvalidURL),
		errors.Is(err, validation.ErrURLTooLong),
		errors.Is(err, validation.ErrTitleTooLong):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrDuplicateID), errors.Is(err, session.ErrInvalidClip):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
