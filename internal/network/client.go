package network

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client message types.
const (
	MsgAction        = "ACTION"
	MsgPromptMissed  = "PROMPT_MISSED"
	MsgResolvePrompt = "RESOLVE_PROMPT"
	MsgStatus        = "STATUS"
	MsgActionResult  = "ACTION_RESULT"
	MsgError         = "ERROR"
)

// ClientMessage is an incoming command from the frontend.
type ClientMessage struct {
	Type     string `json:"type"`      // ACTION, PROMPT_MISSED, RESOLVE_PROMPT, STATUS
	ActionID string `json:"action_id"` // For ACTION
	Acted    *bool  `json:"acted"`     // For RESOLVE_PROMPT, defaults to true
}

// ServerMessage is pushed to the frontend.
type ServerMessage struct {
	Type     string         `json:"type"`
	Status   *StatusPayload `json:"status,omitempty"`
	Feedback string         `json:"feedback,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Client is one WebSocket connection watching a session.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	sessionID      string
	actionGap      time.Duration
	lastActionTime time.Time
}

// NewClient creates a new WebSocket client for sessionID.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, actionGap time.Duration) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
		actionGap: actionGap,
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.add(c)
}

// ReadPump pumps messages from the websocket connection into the session's engine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Warn("WebSocket read error for " + c.sessionID + ": " + err.Error())
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Error("Failed to parse ClientMessage from WebSocket. err: " + err.Error())
			c.write(ErrorMessage(msgInvalidMessage))
			continue
		}

		c.handle(msg)
	}
}

func (c *Client) handle(msg ClientMessage) {
	sess, ok := c.hub.store.Get(c.sessionID)
	if !ok {
		c.write(ErrorMessage(msgInvalidSession))
		return
	}
	eng := sess.Engine

	switch msg.Type {
	case MsgAction:
		if msg.ActionID == "" {
			c.write(ErrorMessage(msgMissingAction))
			return
		}
		// Rate limiting check
		if time.Since(c.lastActionTime) < c.actionGap {
			c.hub.logger.Warn("Rate limit exceeded for client action on " + c.sessionID)
			c.write(ErrorMessage(msgRateLimited))
			return
		}
		c.lastActionTime = time.Now()

		feedback, _ := eng.Apply(msg.ActionID)
		c.hub.logger.Event("PLAYER_ACTION", c.sessionID, msg.ActionID+": "+feedback)
		c.write(ServerMessage{Type: MsgActionResult, Feedback: feedback})
	case MsgPromptMissed:
		eng.PromptMissed()
	case MsgResolvePrompt:
		eng.ResolvePrompt(msg.Acted == nil || *msg.Acted)
	case MsgStatus:
		// Answered below
	default:
		c.hub.logger.Warn("Unknown ClientMessage type: " + msg.Type)
		c.write(ErrorMessage(msgUnknownType))
		return
	}

	c.write(StatusMessage(sess))
}

func (c *Client) write(v ServerMessage) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.hub.logger.Error("Failed to serialize ServerMessage: " + err.Error())
		return
	}
	c.hub.reply(c, payload)
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
