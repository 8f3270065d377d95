package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a silent peer is tolerated.
	pongWait = 60 * time.Second
	// pingInterval must be shorter than pongWait.
	pingInterval = (pongWait * 9) / 10
	// maxMessageSize caps inbound frames; watchers only send control frames.
	maxMessageSize = 512
)

// Upgrader builds a websocket upgrader that accepts requests whose Origin
// is absent or listed in allowed. A "*" entry accepts every origin.
func Upgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowed, "*") {
				return true
			}
			return slices.Contains(allowed, origin)
		},
	}
}

// Render produces the next message for a watcher.
type Render func(ctx context.Context) (any, error)

// Stream writes render's result to conn once immediately and again after
// every Change on sub, until the peer goes away or ctx ends. It closes both
// conn and sub before returning.
func Stream(ctx context.Context, conn *websocket.Conn, sub *Subscription, render Render, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer sub.Close()
	defer conn.Close()

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	push := func() bool {
		msg, err := render(ctx)
		if err != nil {
			logger.WarnContext(ctx, "watch render failed", "error", err)
			closeWith(conn, websocket.CloseInternalServerErr, "view unavailable")
			return false
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.DebugContext(ctx, "watch write failed", "error", err)
			return false
		}
		return true
	}

	if !push() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			closeWith(conn, websocket.CloseGoingAway, "")
			return
		case _, ok := <-sub.C:
			if !ok || !push() {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames so pongs and close frames are processed,
// and cancels the stream when the peer stops responding.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeWait))
}
