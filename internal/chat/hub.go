// Package chat runs per-student message threads between a school and the
// student's guardians, over WebSocket with Redis pub/sub fan-out across
// instances.
package chat

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// RoomID identifies one chat thread: one student in one school.
type RoomID struct {
	SchoolID  int64
	StudentID int64
}

func (r RoomID) String() string {
	return fmt.Sprintf("%d:%d", r.SchoolID, r.StudentID)
}

// RedisPublisher publishes room events for cross-instance broadcast.
type RedisPublisher interface {
	PublishRoomEvent(room RoomID, event string, payload []byte) error
}

// RedisSubscriber subscribes to a room channel and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeRoom(room RoomID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains room -> set of connections and broadcasts messages. Local
// broadcast plus Redis pub/sub keeps multiple instances in step.
type Hub struct {
	rooms    map[RoomID]map[string]*Client
	subs     map[RoomID]func() // cancel Redis subscription per room
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[RoomID]map[string]*Client),
		subs:     make(map[RoomID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its room. The first client in a room starts the
// room's Redis subscription.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.Room] == nil {
		h.rooms[c.Room] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeRoom(c.Room, func(event string, payload []byte) {
				h.Broadcast(c.Room, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.Room] = cancel
			}
		}
	}
	h.rooms[c.Room][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", c.Room.String()))
}

// Unregister removes a client from its room. The last client out cancels
// the room's Redis subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.Room]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.Room)
			if cancel, ok := h.subs[c.Room]; ok {
				cancel()
				delete(h.subs, c.Room)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.String("room", c.Room.String()))
}

// Broadcast sends a message to every client in a room (local instance only).
func (h *Hub) Broadcast(room RoomID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[room]
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish pushes a room event through Redis only, so the subscriber callback
// broadcasts exactly once per instance, this one included. Without Redis it
// falls back to a local broadcast.
func (h *Hub) Publish(room RoomID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		_ = h.redis.PublishRoomEvent(room, event, data)
		return
	}
	h.Broadcast(room, event, payload)
}

// Occupancy returns the number of connected clients in a room.
func (h *Hub) Occupancy(room RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
