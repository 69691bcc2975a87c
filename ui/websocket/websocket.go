package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	syncDomain "github.com/rcvieira/fluxo/domains/sync"
	"github.com/rcvieira/fluxo/infrastructure/valkey"
	valkeylib "github.com/valkey-io/valkey-go"
)

type client struct{}

// relayMessage is the cross-instance form: the envelope plus the sender
// instance id, so an instance can ignore its own relayed broadcasts.
type relayMessage struct {
	Envelope syncDomain.Envelope `json:"envelope"`
	SenderID string              `json:"sender_id,omitempty"`
}

type pongRequest struct {
	conn *websocket.Conn
}

// Hub owns every live websocket session and serializes all writes through
// its run loop, which is what gives per-connection ordered delivery.
type Hub struct {
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan syncDomain.Envelope
	// relayed carries envelopes arriving from sibling instances over the
	// pub/sub channel. Kept separate from broadcast so they are delivered
	// locally only, never re-published to valkey.
	relayed chan syncDomain.Envelope
	pongs   chan pongRequest

	mu      sync.RWMutex
	clients map[*websocket.Conn]client

	vkClient *valkey.Client
	vkChan   string
	localID  string
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan syncDomain.Envelope, 256),
		relayed:    make(chan syncDomain.Envelope, 256),
		pongs:      make(chan pongRequest, 64),
		clients:    make(map[*websocket.Conn]client),
		vkChan:     "fluxo:ws_broadcast",
	}
}

// SetValkeyClient enables distributed broadcast across server instances.
func (h *Hub) SetValkeyClient(client *valkey.Client, serverID string) {
	h.vkClient = client
	h.localID = serverID
}

// Publish implements sync.Emitter. Fire-and-forget: a full broadcast queue
// drops the event rather than blocking the mutation path; disconnected
// clients recover through reconnect reconciliation.
func (h *Hub) Publish(event syncDomain.ChangeEvent) {
	env, err := event.Encode()
	if err != nil {
		logrus.Errorf("[WS] Encode error for %s: %v", event.Kind, err)
		return
	}
	select {
	case h.broadcast <- env:
	default:
		logrus.Warnf("[WS] Broadcast queue full, dropping %s", event.Kind)
	}
}

// ConnectedCount reports the number of live sessions, for diagnostics.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleRegister(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = client{}
	h.mu.Unlock()
	logrus.Debug("[WS] Connection registered")
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	logrus.Debug("[WS] Connection unregistered")
}

func (h *Hub) broadcastToLocal(env syncDomain.Envelope) {
	marshalMessage, err := json.Marshal(env)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			h.closeConnection(conn)
		}
	}
}

func (h *Hub) writePong(conn *websocket.Conn) {
	data, _ := json.Marshal(syncDomain.Envelope{Event: string(syncDomain.KindPong)})
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.closeConnection(conn)
	}
}

func (h *Hub) publishToValkey(env syncDomain.Envelope) {
	if h.vkClient == nil {
		return
	}

	data, err := json.Marshal(relayMessage{Envelope: env, SenderID: h.localID})
	if err != nil {
		return
	}

	ctx := context.Background()
	cmd := h.vkClient.Inner().B().Publish().Channel(h.vkChan).Message(string(data)).Build()
	if err := h.vkClient.Inner().Do(ctx, cmd).Error(); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

func (h *Hub) startValkeySubscriber() {
	if h.vkClient == nil {
		return
	}

	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := h.vkClient.Inner().Receive(context.Background(), h.vkClient.Inner().B().Subscribe().Channel(h.vkChan).Build(), func(msg valkeylib.PubSubMessage) {
			var relay relayMessage
			if err := json.Unmarshal([]byte(msg.Message), &relay); err == nil {
				// Avoid loops: ignore messages sent by this same instance
				if relay.SenderID == h.localID {
					return
				}
				// Hand over to the run loop; all conn writes must stay on
				// that single goroutine.
				select {
				case h.relayed <- relay.Envelope:
				default:
					logrus.Warnf("[WS] Relay queue full, dropping %s", relay.Envelope.Event)
				}
			}
		})
		if err != nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func (h *Hub) closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Run drains the hub channels until ctx is cancelled. Must run in its own
// goroutine before any connection is accepted.
func (h *Hub) Run(ctx context.Context) {
	if h.vkClient != nil {
		h.startValkeySubscriber()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.handleRegister(conn)

		case conn := <-h.unregister:
			h.handleUnregister(conn)

		case req := <-h.pongs:
			h.writePong(req.conn)

		case env := <-h.broadcast:
			// 1. Send to local clients immediately
			h.broadcastToLocal(env)

			// 2. If Valkey is active, propagate to sibling instances
			if h.vkClient != nil {
				h.publishToValkey(env)
			}

		case env := <-h.relayed:
			// From a sibling instance: local delivery only.
			h.broadcastToLocal(env)
		}
	}
}

// RegisterRoutes mounts the upgrade endpoint. authorize validates the token
// query parameter; the sync client sends the same credential it uses for the
// REST API.
func (h *Hub) RegisterRoutes(app fiber.Router, authorize func(token string) bool) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.SendStatus(fiber.StatusUpgradeRequired)
		}
		if authorize != nil && !authorize(c.Query("token")) {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.Next()
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			h.unregister <- conn
			_ = conn.Close()
		}()

		h.register <- conn

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Debugf("[WS] read error: %v", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				logrus.Debugf("[WS] unsupported message type: %d", messageType)
				continue
			}

			var env syncDomain.Envelope
			if err := json.Unmarshal(message, &env); err != nil {
				logrus.Debugf("[WS] unmarshal error: %v", err)
				continue
			}

			if env.Event == string(syncDomain.KindPing) {
				h.pongs <- pongRequest{conn: conn}
			}
		}
	}))
}
