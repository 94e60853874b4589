package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the agent
	agentWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the agent
	agentPongWait = 30 * time.Second

	// Send pings to agent with this period (must be less than pongWait)
	agentPingPeriod = 20 * time.Second

	// Maximum message size allowed from agent
	agentMaxMessageSize = 8192
)

// AgentClient represents the WebSocket connection of one agent console
type AgentClient struct {
	// Agent ID, set by the first register message
	agentID string

	// The hub this client belongs to
	hub *AgentHub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Logger
	logger zerolog.Logger

	// done channel to signal client shutdown
	done chan struct{}

	// closeOnce ensures send channel is closed only once
	closeOnce sync.Once
}

// NewAgentClient creates a new AgentClient
func NewAgentClient(hub *AgentHub, conn *websocket.Conn, logger zerolog.Logger) *AgentClient {
	return &AgentClient{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *AgentClient) readPump() {
	defer func() {
		close(c.done)
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(agentMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(agentPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(agentPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Str("agent_id", c.agentID).Msg("agent websocket read error")
			}
			break
		}

		// Any traffic counts as liveness
		c.conn.SetReadDeadline(time.Now().Add(agentPongWait))
		if !c.handleMessage(message) {
			break
		}
	}
}

// handleMessage parses a console message and hands it to the hub. It returns
// false once the hub has stopped.
func (c *AgentClient) handleMessage(message []byte) bool {
	var msgType struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msgType); err != nil {
		c.logger.Debug().Err(err).Msg("failed to parse message type")
		return true
	}

	var msg interface{}
	switch msgType.Type {
	case "register":
		var reg types.AgentRegister
		if err := json.Unmarshal(message, &reg); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse register message")
			return true
		}
		if reg.AgentID == "" || (c.agentID != "" && reg.AgentID != c.agentID) {
			c.sendAck(types.ServerAck{Type: "ack", AgentID: reg.AgentID, Error: "invalid agentId for this connection"})
			return true
		}
		if c.agentID == "" {
			c.agentID = reg.AgentID
			c.logger = c.logger.With().Str("agent_id", c.agentID).Logger()
		}
		msg = &reg

	case "heartbeat":
		var hb types.AgentHeartbeat
		if err := json.Unmarshal(message, &hb); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse heartbeat message")
			return true
		}
		hb.AgentID = c.agentID
		msg = &hb

	case "status_change":
		var sc types.AgentStatusChange
		if err := json.Unmarshal(message, &sc); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse status_change message")
			return true
		}
		sc.AgentID = c.agentID
		msg = &sc

	case "chat_complete":
		var cc types.ChatComplete
		if err := json.Unmarshal(message, &cc); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse chat_complete message")
			return true
		}
		cc.AgentID = c.agentID
		msg = &cc

	default:
		c.logger.Debug().Str("type", msgType.Type).Msg("unknown message type")
		return true
	}

	return c.hub.submit(agentEvent{client: c, msg: msg})
}

// ack reports the outcome of a message back to the console
func (c *AgentClient) ack(err error) {
	ack := types.ServerAck{Type: "ack", AgentID: c.agentID}
	if err != nil {
		ack.Error = err.Error()
	}
	c.sendAck(ack)
}

func (c *AgentClient) sendAck(ack types.ServerAck) {
	if data, err := json.Marshal(ack); err == nil {
		c.safeSend(data)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *AgentClient) writePump() {
	ticker := time.NewTicker(agentPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(agentWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(agentWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps
func (c *AgentClient) Start() {
	go c.writePump()
	go c.readPump()
}

// Close safely closes the client's send channel (idempotent)
func (c *AgentClient) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// safeSend attempts to send a message, recovering from panic if channel is closed
func (c *AgentClient) safeSend(data []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}
