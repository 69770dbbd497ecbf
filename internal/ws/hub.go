package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/metrics"
	"github.com/rentalhub/rental-backend/pkg/logger"
)

const redisDeliveryChannel = "chat:deliveries"

// Hub owns the sessions connected to this instance and writes events to them.
// With Redis, events for sessions held by another instance are relayed
// through a pub/sub channel.
type Hub struct {
	sessions map[string]*Client

	mu          sync.RWMutex
	redisClient *redis.Client
	instanceID  string
	ctx         context.Context
	cancel      context.CancelFunc
	ready       chan struct{}
}

// remoteDelivery is a frame relayed to the instance owning SessionID
type remoteDelivery struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Frame     json.RawMessage `json:"frame"`
}

// NewHub creates a new Hub. redisClient may be nil for a single instance.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		sessions:    make(map[string]*Client),
		redisClient: redisClient,
		instanceID:  uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
		ready:       make(chan struct{}),
	}
}

// InstanceID identifies this hub in relayed deliveries
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Register adds a client to the hub. The session can receive events as soon
// as Register returns.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.sessions[client.sessionID] = client
	h.mu.Unlock()
	metrics.SessionsActive.Inc()
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.sessions[client.sessionID]; ok && current == client {
		delete(h.sessions, client.sessionID)
		close(client.send)
		metrics.SessionsActive.Dec()
	}
}

// Ready is closed once the hub is accepting deliveries from other instances
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Run relays deliveries from other instances until Stop is called
func (h *Hub) Run() {
	if h.redisClient == nil {
		close(h.ready)
		<-h.ctx.Done()
		return
	}
	h.subscribeRedis()
}

// SessionCount returns the number of sessions held by this instance
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// EmitToSession writes event to sessionID. A session on another instance is
// reached through Redis; without Redis an unknown session is an error.
func (h *Hub) EmitToSession(ctx context.Context, sessionID string, event *domain.Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Type, err)
	}

	delivered, err := h.deliverLocal(sessionID, frame)
	if delivered || err != nil {
		return err
	}

	if h.redisClient == nil {
		return fmt.Errorf("session %s not connected: %w", sessionID, common.ErrTransport)
	}

	data, err := json.Marshal(&remoteDelivery{Origin: h.instanceID, SessionID: sessionID, Frame: frame})
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	if err := h.redisClient.Publish(ctx, redisDeliveryChannel, data).Err(); err != nil {
		return fmt.Errorf("relay to session %s: %v: %w", sessionID, err, common.ErrTransport)
	}
	return nil
}

// deliverLocal enqueues frame when sessionID is held here. It never blocks:
// a full send buffer is reported as a transport error.
func (h *Hub) deliverLocal(sessionID string, frame []byte) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.sessions[sessionID]
	if !ok {
		return false, nil
	}
	select {
	case client.send <- frame:
		return true, nil
	default:
		return true, fmt.Errorf("session %s send buffer full: %w", sessionID, common.ErrTransport)
	}
}

// subscribeRedis delivers frames relayed by other instances to local sessions
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisDeliveryChannel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting ready
	if _, err := pubsub.Receive(h.ctx); err != nil {
		logger.GetLogger().Error().Err(err).Msg("redis delivery subscription failed")
		close(h.ready)
		return
	}
	close(h.ready)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rd remoteDelivery
			if err := json.Unmarshal([]byte(msg.Payload), &rd); err != nil {
				logger.GetLogger().Warn().Err(err).Msg("malformed relayed delivery")
				continue
			}
			// Own publications were for sessions this instance does not hold
			if rd.Origin == h.instanceID {
				continue
			}
			if _, err := h.deliverLocal(rd.SessionID, rd.Frame); err != nil {
				logger.GetLogger().Warn().Err(err).Str("session_id", rd.SessionID).Msg("relayed delivery failed")
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}
