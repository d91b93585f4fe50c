package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/backend/pkg/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains user_id -> set of connections and delivers notification events.
// With Redis configured, events are published to a per-user channel and every instance
// holding a connection for that user delivers them.
type Hub struct {
	// userID -> map[clientID]*Client
	users    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]*subscription
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
	metrics  *metrics.Metrics
}

// subscription is a user's Redis subscription. cancel is nil while it is being set up.
type subscription struct {
	cancel func()
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance delivery).
type RedisPublisher interface {
	PublishUserEvent(ctx context.Context, userID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to user channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeUser(userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis arguments may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		users:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]*subscription),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
		metrics:  m,
	}
}

// Register adds a client. Starts the Redis subscription for the user on their first connection.
func (h *Hub) Register(c *Client) {
	var sub *subscription
	h.mu.Lock()
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
		if h.redisSub != nil {
			sub = &subscription{}
			h.subs[c.UserID] = sub
		}
	}
	h.users[c.UserID][c.ID] = c
	h.mu.Unlock()
	h.metrics.RealtimeConnected(1)
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))

	if sub != nil {
		h.subscribe(c.UserID, sub)
	}
}

// subscribe runs the Redis round trip without holding the hub lock. If the user left or
// reconnected meanwhile, the new subscription is dropped.
func (h *Hub) subscribe(userID uuid.UUID, sub *subscription) {
	cancel, err := h.redisSub.SubscribeUser(userID, func(event string, payload []byte) {
		h.Deliver(userID, event, json.RawMessage(payload))
	})
	h.mu.Lock()
	current := h.subs[userID] == sub
	if err != nil {
		if current {
			delete(h.subs, userID)
		}
		h.mu.Unlock()
		h.logger.Warn("redis subscribe failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if current {
		sub.cancel = cancel
	}
	h.mu.Unlock()
	if !current {
		cancel()
	}
}

// Unregister removes a client. Cancels the Redis subscription when the user's last client leaves.
func (h *Hub) Unregister(c *Client) {
	var cancel func()
	h.mu.Lock()
	removed := false
	if m, ok := h.users[c.UserID]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
			removed = true
		}
		if len(m) == 0 {
			delete(h.users, c.UserID)
			if sub, ok := h.subs[c.UserID]; ok {
				cancel = sub.cancel
				delete(h.subs, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if removed {
		h.metrics.RealtimeConnected(-1)
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Deliver sends a message to the user's clients on this instance.
func (h *Hub) Deliver(userID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal realtime payload", zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.users[userID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishToUser delivers an event to every connection of the user across instances.
// With Redis it publishes only, so the subscriber callback delivers once per instance.
func (h *Hub) PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	if h.redis == nil {
		h.Deliver(userID, event, payload)
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.redis.PublishUserEvent(ctx, userID, event, data)
}

// Connections returns the number of local connections of a user.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
