package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBufferSize = 256
)

// StateProvider builds the snapshot sent to clients asking for a resync.
type StateProvider interface {
	GetGameState(ctx context.Context, sessionID uuid.UUID) (*GameState, error)
}

// Hub pushes game events to the websocket clients watching a session.
type Hub struct {
	AllEvents

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	gate       *revealGate
	state      StateProvider
	log        *zap.Logger
}

var _ Observer = (*Hub)(nil)

type Client struct {
	hub           *Hub
	id            string
	socket        *websocket.Conn
	send          chan []byte
	gameSessionID uuid.UUID
	playerID      uuid.UUID
}

// Message is a client request or a hub reply that is not a game event.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

func NewHub(state StateProvider, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		gate:       newRevealGate(),
		state:      state,
		log:        log,
	}
}

// Run owns client registration until ctx is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("client registered",
				zap.String("client_id", client.id),
				zap.String("game_session_id", client.gameSessionID.String()),
				zap.String("player_id", client.playerID.String()),
				zap.Int("total_clients", total),
			)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("client unregistered",
				zap.String("client_id", client.id),
				zap.String("game_session_id", client.gameSessionID.String()),
				zap.Int("total_clients", total),
			)

		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// OnEvent broadcasts the public form of e. Score updates wait for the
// question to close.
func (h *Hub) OnEvent(e Event) {
	for _, ev := range h.gate.admit(e) {
		data, err := MarshalPublicEvent(ev)
		if err != nil {
			h.log.Error("failed to marshal event", zap.Stringer("event", ev.Kind()), zap.Error(err))
			continue
		}
		h.BroadcastToSession(ev.GameSessionID(), data)
	}
}

// BroadcastToSession queues data for every client of the session. Clients
// whose buffer is full are disconnected.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, data []byte) int {
	var slow []*Client
	sent := 0

	h.mutex.RLock()
	for client := range h.clients {
		if client.gameSessionID != sessionID {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		h.log.Warn("client send buffer full, disconnecting", zap.String("client_id", client.id))
		h.UnregisterClient(client)
	}
	return sent
}

// ConnectedClients counts the clients watching a session.
func (h *Hub) ConnectedClients(sessionID uuid.UUID) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	n := 0
	for client := range h.clients {
		if client.gameSessionID == sessionID {
			n++
		}
	}
	return n
}

// RegisterClient takes ownership of conn. playerID may be uuid.Nil for
// clients that only watch.
func (h *Hub) RegisterClient(conn *websocket.Conn, sessionID, playerID uuid.UUID) *Client {
	client := &Client{
		hub:           h,
		id:            uuid.NewString(),
		socket:        conn,
		send:          make(chan []byte, sendBufferSize),
		gameSessionID: sessionID,
		playerID:      playerID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) sendGameStateSync(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	state, err := h.state.GetGameState(ctx, client.gameSessionID)
	if err != nil {
		h.log.Warn("failed to build game state",
			zap.String("client_id", client.id),
			zap.String("game_session_id", client.gameSessionID.String()),
			zap.Error(err),
		)
		client.reply(Message{Type: "error", Payload: "game state unavailable"})
		return
	}
	client.reply(Message{Type: "game_state_sync", Payload: state})
}

func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Error("failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(Message{Type: "error", Payload: "invalid message"})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		c.reply(Message{Type: "pong"})

	case "request_game_state":
		c.hub.sendGameStateSync(c)

	default:
		c.hub.log.Debug("unknown message type",
			zap.String("type", msg.Type),
			zap.String("client_id", c.id),
		)
		c.reply(Message{Type: "error", Payload: "unknown message type"})
	}
}
