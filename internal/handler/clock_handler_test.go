package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/middleware"
	"github.com/luyenthi/vstep-backend/internal/model"
	"github.com/luyenthi/vstep-backend/internal/service"
	"github.com/luyenthi/vstep-backend/internal/validator"
	ws "github.com/luyenthi/vstep-backend/internal/websocket"
)

func newClockServer(t *testing.T, tick time.Duration) (string, *stubStore, *stubCatalog) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	catalog := &stubCatalog{ids: map[uuid.UUID]bool{}}
	store := &stubStore{}
	svc := service.NewMockExamService(catalog, store, stubContent{}, nil,
		&config.Config{DefaultLevel: "B2"}, zerolog.Nop())
	h := NewClockHandler(svc, zerolog.Nop(), nil)
	h.tickInterval = tick

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: testUserID, Role: model.RoleStudent})
	})
	r.GET("/mock-exams/:id/clock", h.SessionClockStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL, store, catalog
}

func dialClock(t *testing.T, srvURL, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srvURL, "http") + "/mock-exams/" + sessionID + "/clock"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type clockEvent struct {
	Event            string `json:"event"`
	Error            string `json:"error"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// The stream must keep serving while a client fires pings as fast as it can
// against a fast tick rate. Pong frames share the connection with tick
// frames, so both must come from the same writer.
func TestClockStreamAnswersPingsBetweenTicks(t *testing.T) {
	srvURL, store, catalog := newClockServer(t, time.Millisecond)
	id := startTestSession(t, store, catalog)
	conn := dialClock(t, srvURL, id.String())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for i := 0; i < 200; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if err := conn.WriteJSON(ws.RequestPayload{Action: ws.ActionPing}); err != nil {
				return
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	pongs, ticks := 0, 0
	for pongs == 0 || ticks < 20 {
		var evt clockEvent
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("stream broke after %d ticks, %d pongs: %v", ticks, pongs, err)
		}
		switch evt.Event {
		case "tick":
			ticks++
		case "pong":
			pongs++
		case "error":
			t.Fatalf("unexpected error event: %s", evt.Error)
		}
	}
}

func TestClockStreamHidesOtherUsersSessions(t *testing.T) {
	srvURL, store, catalog := newClockServer(t, time.Millisecond)
	id := startTestSession(t, store, catalog)
	store.session.UserID = testUserID + 1

	conn := dialClock(t, srvURL, id.String())
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var evt clockEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Event != "error" || evt.Error != "session not found" {
		t.Errorf("expected session-not-found error, got %+v", evt)
	}
}

func TestClockStreamEmitsExpired(t *testing.T) {
	srvURL, store, catalog := newClockServer(t, 10*time.Millisecond)
	id := startTestSession(t, store, catalog)
	store.session.ExpiresAt = time.Now().Add(-time.Second)

	conn := dialClock(t, srvURL, id.String())
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	sawZeroTick := false
	for {
		var evt clockEvent
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch evt.Event {
		case "tick":
			if evt.RemainingSeconds != 0 {
				t.Errorf("expected zero remaining seconds, got %d", evt.RemainingSeconds)
			}
			sawZeroTick = true
		case "expired":
			if !sawZeroTick {
				t.Error("expired event arrived before any tick")
			}
			return
		}
	}
}
