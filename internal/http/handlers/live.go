package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// LiveView streams the view as JSON text frames: once on connect and again
// after every change. Client frames are read only to notice disconnects.
func (a *App) LiveView(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 << 10,
		CheckOrigin:     a.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := a.Studio.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					a.Logger.Debug().Err(err).Msg("ws: client closed")
				}
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := conn.WriteJSON(a.Studio.View()); err != nil {
		return
	}

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-a.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(liveWriteWait))
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(v); err != nil {
				a.Logger.Debug().Err(err).Msg("ws: write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

// checkOrigin accepts same-origin requests and the configured CORS origins.
func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if a.Config != nil {
		for _, allowed := range a.Config.AllowedOrigins {
			if origin == allowed {
				return true
			}
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
