package player

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSConfig holds the WebSocket keepalive settings.
type WSConfig struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultWSConfig returns the settings used when none are configured.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		PingInterval:   50 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Serve pumps messages between conn and r until the connection drops.
// It blocks in the read loop and closes r on return.
func Serve(conn *websocket.Conn, r *Remote, cfg WSConfig, logger zerolog.Logger) {
	go writePump(conn, r, cfg)
	readPump(conn, r, cfg, logger)
}

func readPump(conn *websocket.Conn, r *Remote, cfg WSConfig, logger zerolog.Logger) {
	defer func() {
		r.Close()
		conn.Close()
	}()

	conn.SetReadLimit(cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("player connection closed unexpectedly")
			}
			return
		}
		if err := r.HandleMessage(message); err != nil {
			logger.Warn().Err(err).Msg("player message rejected")
		}
	}
}

func writePump(conn *websocket.Conn, r *Remote, cfg WSConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	out := r.Outbound()
	for {
		select {
		case message, ok := <-out:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
