package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dravynn/RideNetAi/internal/auth"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Hub owns the trip rooms: the mapping from trip id to the set of live
// connections watching that trip. Membership is read under the lock at
// broadcast time, so a client that left between a write being issued and
// the broadcast firing is never notified.
type Hub struct {
	redis      *redis.Client
	instanceID string
	rooms      map[string]map[*Client]struct{}
	mu         sync.RWMutex
}

// Client is one authenticated live connection. Frames are delivered through
// Send in enqueue order; room membership is tracked in trips under the hub
// lock so disconnect cleanup can sweep every joined room.
type Client struct {
	ID       string
	Identity auth.Identity
	Send     chan []byte
	trips    map[string]struct{}
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:      redisClient,
		instanceID: uuid.NewString(),
		rooms:      map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(identity auth.Identity) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		Send:     make(chan []byte, 64),
		trips:    map[string]struct{}{},
	}
}

// Unregister removes the client from every room it joined and closes its
// send queue. Safe to call exactly once, on disconnect.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for tripID := range client.trips {
		h.removeLocked(client, tripID)
	}
	close(client.Send)
}

func (h *Hub) JoinRoom(client *Client, tripID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[tripID] == nil {
		h.rooms[tripID] = map[*Client]struct{}{}
	}
	h.rooms[tripID][client] = struct{}{}
	client.trips[tripID] = struct{}{}
}

// LeaveRoom reports whether the client was actually a member; leaving a
// room never joined is a no-op.
func (h *Hub) LeaveRoom(client *Client, tripID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := client.trips[tripID]; !ok {
		return false
	}
	h.removeLocked(client, tripID)
	return true
}

// removeLocked tears the room down when its member set becomes empty.
func (h *Hub) removeLocked(client *Client, tripID string) {
	delete(client.trips, tripID)
	if room, ok := h.rooms[tripID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, tripID)
		}
	}
}

func (h *Hub) RoomSize(tripID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tripID])
}

// SendEvent queues an event for a single client.
func (h *Hub) SendEvent(client *Client, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	h.send(client, payload)
}

// BroadcastEvent fans an event out to the current membership of the trip's
// room, locally and via Redis to rooms held by other instances.
func (h *Hub) BroadcastEvent(tripID, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode broadcast")
		return
	}
	h.Broadcast(tripID, payload)
}

func (h *Hub) Broadcast(tripID string, payload []byte) {
	h.fanOut(tripID, payload)

	if h.redis != nil {
		frame, _ := json.Marshal(redisFrame{Src: h.instanceID, Payload: payload})
		err := h.redis.Publish(context.Background(), redisChannel(tripID), frame).Err()
		if err != nil {
			log.Error().Err(err).Str("trip_id", tripID).Msg("redis publish")
		}
	}
}

// fanOut holds the read lock across the sends so a concurrent Unregister
// cannot close a member's queue mid-delivery. Sends are non-blocking, so
// the lock is held only briefly.
func (h *Hub) fanOut(tripID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[tripID] {
		h.send(client, payload)
	}
}

// send never blocks; a client too slow to drain its queue loses frames
// rather than stalling the room.
func (h *Hub) send(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
	}
}

type redisFrame struct {
	Src     string          `json:"src"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "tracking:*:broadcast")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		tripID := tripIDFromChannel(msg.Channel)
		if tripID == "" {
			continue
		}

		var frame redisFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			log.Warn().Err(err).Str("channel", msg.Channel).Msg("bad redis frame")
			continue
		}
		if frame.Src == h.instanceID {
			continue
		}
		h.fanOut(tripID, frame.Payload)
	}
}

func redisChannel(tripID string) string {
	return "tracking:" + tripID + ":broadcast"
}

func tripIDFromChannel(ch string) string {
	// tracking:{trip}:broadcast
	const prefix = "tracking:"
	const suffix = ":broadcast"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
