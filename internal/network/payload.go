package network

import (
	"github.com/hydroedu/hydrosim/internal/engine"
	"github.com/hydroedu/hydrosim/internal/session"
)

// Error texts returned to clients.
const (
	msgInvalidSession   = "Invalid or missing session id"
	msgMissingAction    = "Missing action_id"
	msgSnapshotRequired = "sid and snapshot required"
	msgInvalidMessage   = "Invalid message"
	msgUnknownType      = "Unknown message type"
	msgRateLimited      = "Too many actions, slow down"
)

// TimePayload is the simulated clock.
type TimePayload struct {
	Day  int `json:"day"`
	Hour int `json:"hour"`
}

// EnvPayload is the growing environment as shown on the dashboard.
type EnvPayload struct {
	Temp     float64 `json:"temp"`
	Humidity float64 `json:"humidity"`
	EC       float64 `json:"ec"`
	PH       float64 `json:"ph"`
	Water    float64 `json:"water"`
	Light    string  `json:"light"` // "ON" or "OFF"
}

// PlantPayload is the crop's condition.
type PlantPayload struct {
	Health      float64 `json:"health"`
	Stage       string  `json:"stage"`
	Yield       float64 `json:"yield"`
	Status      string  `json:"status"`
	Category    string  `json:"category"`
	Use         string  `json:"use"`
	Seasonality string  `json:"seasonality"`
}

// StatusPayload is the body of GET /status and of STATUS pushes.
type StatusPayload struct {
	SessionID      string         `json:"session_id"`
	City           string         `json:"city"`
	Month          string         `json:"month"`
	Crop           string         `json:"crop"`
	Language       string         `json:"language"`
	Time           TimePayload    `json:"time"`
	Env            EnvPayload     `json:"env"`
	Plant          PlantPayload   `json:"plant"`
	RequiredAction *engine.Prompt `json:"required_action"`
	Feedback       []string       `json:"feedback"`
	Notifications  []string       `json:"notifications"`
	Running        bool           `json:"running"`
	Paused         bool           `json:"paused"`
}

// NewStatusPayload reads the session's engine into the dashboard shape.
func NewStatusPayload(sess *session.Session) StatusPayload {
	st := sess.Engine.Status()
	light := "OFF"
	if st.LightOn {
		light = "ON"
	}
	return StatusPayload{
		SessionID: sess.ID,
		City:      st.City,
		Month:     st.Month,
		Crop:      st.Crop,
		Language:  sess.Language,
		Time:      TimePayload{Day: st.Day, Hour: st.Hour},
		Env: EnvPayload{
			Temp:     st.Temperature,
			Humidity: st.Humidity,
			EC:       st.EC,
			PH:       st.PH,
			Water:    st.Water,
			Light:    light,
		},
		Plant: PlantPayload{
			Health:      st.Health,
			Stage:       st.Stage,
			Yield:       st.YieldKg,
			Status:      st.Label,
			Category:    st.Category,
			Use:         st.Use,
			Seasonality: st.Seasonality,
		},
		RequiredAction: st.ActivePrompt,
		Feedback:       nonNil(st.Feedback),
		Notifications:  nonNil(st.Notifications),
		Running:        st.Running,
		Paused:         st.Paused,
	}
}

// StatusMessage wraps the session status for a WebSocket push.
func StatusMessage(sess *session.Session) ServerMessage {
	p := NewStatusPayload(sess)
	return ServerMessage{Type: MsgStatus, Status: &p}
}

// ErrorMessage builds an ERROR push.
func ErrorMessage(text string) ServerMessage {
	return ServerMessage{Type: MsgError, Error: text}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
