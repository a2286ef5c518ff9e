package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/linskybing/chainjob-cache/pkg/response"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// pushInterval is how often StreamJobs sends a fresh page.
var pushInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamJobs godoc
// @Summary Stream a filtered job listing over WebSocket
// @Description Pushes {jobs,count,source} every 2 seconds until the client disconnects.
// @Tags jobs
// @Param status query int false "Status ordinal (0-5)"
// @Param client query string false "Client address"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Failure 400 {object} response.ErrorResponse
// @Router /ws/jobs [get]
func (h *JobHandler) StreamJobs(c *gin.Context) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	// Heartbeat handling
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader to consume control frames and detect close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	push := func() bool {
		var payload []byte
		jobs, source, err := h.svc.ListJobs(ctx, f)
		if err != nil {
			payload, _ = json.Marshal(response.ErrorResponse{Error: "Failed to fetch jobs", Details: err.Error()})
		} else {
			payload, _ = json.Marshal(response.JobListResponse{Jobs: jobs, Count: len(jobs), Source: string(source)})
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, payload) == nil
	}

	if !push() {
		return
	}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			if !push() {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
