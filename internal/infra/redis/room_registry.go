package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"pinquiz-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// RoomRegistry is a Redis-aware implementation of app.RoomRegistry.
// Notes:
//   - Rooms themselves stay in a local in-memory map so the in-process
//     broadcast logic keeps working.
//   - Redis holds a liveness marker per PIN, claimed with SETNX so two
//     instances never mint the same PIN concurrently.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans out room events across instances.
type RoomRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	rnd   *rand.Rand
	rooms map[string]*app.Room
}

func NewRoomRegistry(client *redis.Client, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		rooms:  make(map[string]*app.Room),
	}
}

func (r *RoomRegistry) Create(build func(pin string) *app.Room) *app.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		pin := strconv.Itoa(100000 + r.rnd.Intn(900000))
		if _, taken := r.rooms[pin]; taken {
			continue
		}
		claimed, err := r.client.SetNX(context.Background(), r.key(pin), "1", r.ttl).Result()
		if err == nil && !claimed {
			continue
		}
		// Redis errors degrade to local-only uniqueness.
		room := build(pin)
		r.rooms[pin] = room
		return room
	}
}

func (r *RoomRegistry) Get(pin string) (*app.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[pin]
	return room, ok
}

func (r *RoomRegistry) Delete(pin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, pin)
	_ = r.client.Del(context.Background(), r.key(pin)).Err()
}

func (r *RoomRegistry) SweepIdle(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	expired := make([]*app.Room, 0)
	for pin, room := range r.rooms {
		if room.LastActive().Before(cutoff) {
			delete(r.rooms, pin)
			_ = r.client.Del(context.Background(), r.key(pin)).Err()
			expired = append(expired, room)
		}
	}
	r.mu.Unlock()

	for _, room := range expired {
		room.Shutdown()
	}
	return len(expired)
}

func (r *RoomRegistry) key(pin string) string {
	return "room:" + pin
}
