package internal

import (
	"net/http"
	"time"

	"ctf-arena/internal/scoreboard"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Scoreboard serves the latest snapshot, computing one on first use.
func Scoreboard(board *scoreboard.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := board.Snapshot()
		if snap.UpdatedAt.IsZero() {
			if err := board.Refresh(c.Request.Context(), "request"); err != nil {
				respondError(c, err)
				return
			}
			snap = board.Snapshot()
		}
		c.JSON(http.StatusOK, snap)
	}
}

// ScoreboardWS pushes the current snapshot, then every refresh, until the client goes away.
func ScoreboardWS(board *scoreboard.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			requestLogger(c).Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		updates, cancel := board.Subscribe()
		defer cancel()

		// reader: handles pongs and notices the close
		closed := make(chan struct{})
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		write := func(v any) error {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteJSON(v)
		}
		if err := write(board.Snapshot()); err != nil {
			return
		}

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return
			case <-c.Request.Context().Done():
				return
			case snap := <-updates:
				if err := write(snap); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
