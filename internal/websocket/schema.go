package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestPayload is the single message shape clients send on the clock
// stream. Only ping is supported; answers travel over HTTP auto-save.
type RequestPayload struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventTick    Event = "tick"
	EventExpired Event = "expired"
	EventPong    Event = "pong"
)

// TickResponse carries the remaining sitting time.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// ExpiredResponse is sent once when the clock reaches zero. The server does
// not reject late saves or submits; the event is informational.
type ExpiredResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
