package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/luyenthi/vstep-backend/internal/middleware"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/service"
	ws "github.com/luyenthi/vstep-backend/internal/websocket"
)

const (
	clockTickInterval = 5 * time.Second
	clockReadTimeout  = 5 * time.Minute
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ClockHandler streams the mock-exam countdown over WebSocket.
type ClockHandler struct {
	mockService  *service.MockExamService
	log          zerolog.Logger
	upgrader     websocket.Upgrader
	tickInterval time.Duration
}

// NewClockHandler creates a new ClockHandler.
func NewClockHandler(mockService *service.MockExamService, log zerolog.Logger, allowedOrigins []string) *ClockHandler {
	return &ClockHandler{
		mockService:  mockService,
		log:          log.With().Str("component", "clock_handler").Logger(),
		upgrader:     buildUpgrader(allowedOrigins),
		tickInterval: clockTickInterval,
	}
}

// SessionClockStream godoc
// WS /ws/v1/mock-exams/:id/clock
// Streams the remaining sitting time for the owner's in-progress session:
// a tick every few seconds and a single expired event at zero. The clock is
// informational; late saves and submits are still accepted over HTTP.
func (h *ClockHandler) SessionClockStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Ownership check happens before any clock data is sent; a stranger's
	// session id behaves exactly like a missing one.
	session, err := h.mockService.GetSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		ws.WriteError(conn, "session not found")
		return
	}
	if session.Status != model.SessionStatusInProgress {
		ws.WriteError(conn, "exam is not in progress")
		return
	}

	clockLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()
	clockLog.Info().Msg("Clock stream connected")

	// Listen-only clients never send application messages; the control-level
	// ping sent with each tick keeps their read deadline moving.
	conn.SetReadDeadline(time.Now().Add(clockReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(clockReadTimeout))
	})

	// The connection permits one concurrent writer, so every frame goes out
	// from the loop below. The reader only forwards ping requests and detects
	// the client going away.
	pings := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg ws.RequestPayload
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					clockLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	// First tick immediately so the client can sync its timer on connect.
	if err := h.sendTick(conn, session.ExpiresAt); err != nil {
		return
	}

	for {
		select {
		case <-done:
			clockLog.Debug().Msg("Clock stream closed")
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case <-ticker.C:
			conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			if err := h.sendTick(conn, session.ExpiresAt); err != nil {
				return
			}
			if !time.Now().Before(session.ExpiresAt) {
				ws.WriteTyped(conn, ws.ExpiredResponse{Event: ws.EventExpired})
				clockLog.Info().Msg("Session clock expired")
				return
			}
		}
	}
}

func (h *ClockHandler) sendTick(conn *websocket.Conn, expiresAt time.Time) error {
	remaining := time.Until(expiresAt)
	if remaining < 0 {
		remaining = 0
	}
	return ws.WriteTyped(conn, ws.TickResponse{
		Event:            ws.EventTick,
		RemainingSeconds: int(remaining.Seconds()),
	})
}
