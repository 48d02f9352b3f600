package memory

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"pinquiz-service/internal/app"
)

// RoomRegistry is an in-memory implementation of app.RoomRegistry. PINs are
// drawn from the full 6-digit space and re-drawn on collision with any
// currently active room.
type RoomRegistry struct {
	mu    sync.RWMutex
	rnd   *rand.Rand
	rooms map[string]*app.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		rooms: make(map[string]*app.Room),
	}
}

func (r *RoomRegistry) Create(build func(pin string) *app.Room) *app.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	pin := r.mintPinLocked()
	room := build(pin)
	r.rooms[pin] = room
	return room
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
}

func (r *RoomRegistry) SweepIdle(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	expired := make([]*app.Room, 0)
	for pin, room := range r.rooms {
		if room.LastActive().Before(cutoff) {
			delete(r.rooms, pin)
			expired = append(expired, room)
		}
	}
	r.mu.Unlock()

	// Shut down outside the registry lock; each room has its own lock.
	for _, room := range expired {
		room.Shutdown()
	}
	return len(expired)
}

func (r *RoomRegistry) mintPinLocked() string {
	for {
		pin := strconv.Itoa(100000 + r.rnd.Intn(900000))
		if _, taken := r.rooms[pin]; !taken {
			return pin
		}
	}
}
