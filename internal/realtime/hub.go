package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/xendao/governance/internal/address"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// SubscriberChangeHandler is called when the number of stream subscribers of an organization changes.
type SubscriberChangeHandler func(organization address.Pubkey, count int)

// Hub maintains organization -> set of connections and broadcasts ledger events.
// Uses Redis pub/sub for horizontal scaling: every instance subscribes to the
// channels of the organizations its clients watch.
type Hub struct {
	// organization -> map[clientID]*Client
	rooms    map[address.Pubkey]map[string]*Client
	subs     map[address.Pubkey]func() // cancel Redis subscription per organization
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
	onChange SubscriberChangeHandler
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishOrganizationEvent(ctx context.Context, organization address.Pubkey, event string, payload []byte) error
}

// RedisSubscriber subscribes to organization channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeOrganization(organization address.Pubkey, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[address.Pubkey]map[string]*Client),
		subs:     make(map[address.Pubkey]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// SetSubscriberChangeHandler sets the callback for subscriber count changes.
func (h *Hub) SetSubscriberChangeHandler(fn SubscriberChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

// Register adds a client to an organization room. Starts the Redis subscription
// if the organization has none yet, so a failed subscribe is retried by the next client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.Organization] == nil {
		h.rooms[c.Organization] = make(map[string]*Client)
	}
	if _, ok := h.subs[c.Organization]; !ok && h.redisSub != nil {
		org := c.Organization
		cancel, err := h.redisSub.SubscribeOrganization(org, func(event string, payload []byte) {
			h.Broadcast(org, event, json.RawMessage(payload))
		})
		if err == nil {
			h.subs[org] = cancel
		} else {
			h.logger.Warn("redis subscribe failed", zap.String("organization", org.String()), zap.Error(err))
		}
	}
	h.rooms[c.Organization][c.ID] = c
	count := len(h.rooms[c.Organization])
	onChange := h.onChange
	h.mu.Unlock()
	if onChange != nil {
		onChange(c.Organization, count)
	}
	h.logger.Debug("client subscribed", zap.String("client_id", c.ID), zap.String("organization", c.Organization.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	var count int
	if m, ok := h.rooms[c.Organization]; ok {
		delete(m, c.ID)
		count = len(m)
		if count == 0 {
			delete(h.rooms, c.Organization)
			if cancel, ok := h.subs[c.Organization]; ok {
				cancel()
				delete(h.subs, c.Organization)
			}
		}
	}
	onChange := h.onChange
	h.mu.Unlock()
	if onChange != nil {
		onChange(c.Organization, count)
	}
	h.logger.Debug("client unsubscribed", zap.String("client_id", c.ID), zap.String("organization", c.Organization.String()))
}

// Broadcast sends a message to all local clients watching organization.
func (h *Hub) Broadcast(organization address.Pubkey, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[organization] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish announces a committed ledger event. With Redis configured the
// subscriber callback performs the broadcast once for all instances
// (including this one). Local clients of an organization without an active
// subscription are served directly.
func (h *Hub) Publish(ctx context.Context, organization address.Pubkey, event string, payload interface{}) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}
	var pubErr error
	if h.redis != nil {
		pubErr = h.redis.PublishOrganizationEvent(ctx, organization, event, data)
		if h.subscribed(organization) {
			return pubErr
		}
	}
	h.Broadcast(organization, event, json.RawMessage(data))
	return pubErr
}

func (h *Hub) subscribed(organization address.Pubkey) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[organization]
	return ok
}

// SubscriberCount returns the number of connected clients watching organization.
func (h *Hub) SubscriberCount(organization address.Pubkey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[organization])
}

// SendToClient sends a message to a single client.
func (h *Hub) SendToClient(organization address.Pubkey, clientID string, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	c, ok := h.rooms[organization][clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
