package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-study-portal-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ClusterChannel carries turn frames between instances
const ClusterChannel = "cluster_events"

type clusterFrame struct {
	Origin          string          `json:"origin"`
	TargetSessionID string          `json:"target_session_id"`
	Message         json.RawMessage `json:"message"`
}

// Hub fans turn frames out to the websocket clients watching a session.
// With redis configured, frames published on one instance reach clients
// connected to any other.
type Hub struct {
	// session id -> watching clients (one per tab or device)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, instanceID string, log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: instanceID,
		logger:     log,
	}
}

// Run serves registrations until ctx is done
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Send delivers a frame to local watchers and, when clustered, to peers
func (h *Hub) Send(sessionID string, message []byte) {
	h.deliverLocal(sessionID, message)

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterFrame{Origin: h.instanceID, TargetSessionID: sessionID, Message: message})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(context.Background(), ClusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Failed to publish cluster frame", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
	}
}

// Watchers reports how many local clients follow sessionID
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) deliverLocal(sessionID string, message []byte) {
	var stalled []*Client

	// sends happen under the read lock so remove cannot close a channel mid-send
	h.mu.RLock()
	for _, client := range h.clients[sessionID] {
		select {
		case client.Send <- message:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.logger.Warn("Hub", "Client send buffer full, dropping client", map[string]interface{}{"session_id": sessionID})
		h.remove(client)
	}
}

// remove drops client and closes its channel exactly once
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.SessionID]
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.SessionID]) == 0 {
		delete(h.clients, client.SessionID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, id)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame clusterFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				h.logger.Warn("Hub", "Cluster frame parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			// frames we published were already delivered locally
			if frame.Origin == h.instanceID {
				continue
			}
			h.deliverLocal(frame.TargetSessionID, frame.Message)
		}
	}
}
