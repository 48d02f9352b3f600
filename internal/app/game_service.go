package app

import (
	"context"
	"time"

	"pinquiz-service/internal/domain"
)

// RoomRegistry owns the PIN -> Room mapping (in-memory, Redis-marked, etc).
type RoomRegistry interface {
	// Create mints a fresh PIN, invokes build with it, and stores the result
	// atomically so concurrent creations never collide.
	Create(build func(pin string) *Room) *Room
	Get(pin string) (*Room, bool)
	Delete(pin string)
	// SweepIdle removes and shuts down rooms inactive for at least idle,
	// returning how many were reclaimed.
	SweepIdle(idle time.Duration) int
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// GameService contains the live game use cases: room lifecycle, player
// membership, host-driven phase transitions, and answer scoring.
type GameService struct {
	rooms      RoomRegistry
	quizzes    QuizRepository
	maxPlayers int
}

func NewGameService(rooms RoomRegistry, quizzes QuizRepository, maxPlayers int) *GameService {
	return &GameService{rooms: rooms, quizzes: quizzes, maxPlayers: maxPlayers}
}

// CreateRoom starts a new game of the given quiz and returns its PIN. The
// creating connection becomes the host: only it may advance or end the game.
func (s *GameService) CreateRoom(ctx context.Context, quizID, hostConnID string) (string, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return "", err
	}
	if len(quiz.Questions) == 0 {
		return "", domain.ErrEmptyQuiz
	}
	room := s.rooms.Create(func(pin string) *Room {
		return NewRoom(pin, quiz, hostConnID, s.maxPlayers)
	})
	return room.Pin(), nil
}

// Join adds a player to a room and broadcasts the updated roster. The
// returned roster includes the new player.
func (s *GameService) Join(_ context.Context, pin, connID, name string) ([]domain.RosterEntry, error) {
	room, ok := s.rooms.Get(pin)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.join(connID, name)
}

// Advance drives the room's phase state machine one step. Host only.
func (s *GameService) Advance(_ context.Context, pin, connID string) (domain.Event, error) {
	room, ok := s.rooms.Get(pin)
	if !ok {
		return domain.Event{}, domain.ErrRoomNotFound
	}
	return room.advance(connID)
}

// SubmitAnswer scores a timed submission for the answering phase and returns
// the acknowledgment for the submitting connection only.
func (s *GameService) SubmitAnswer(_ context.Context, pin, connID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	room, ok := s.rooms.Get(pin)
	if !ok {
		return domain.AnswerResult{}, domain.ErrRoomNotFound
	}
	return room.submitAnswer(connID, sub)
}

// Subscribe returns a channel that receives the room's broadcasts. The caller
// must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(_ context.Context, pin string) (<-chan domain.Event, func(), error) {
	room, ok := s.rooms.Get(pin)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.subscribe()
	return ch, cancel, nil
}

// Leave handles a dropped or departing connection. A departing host ends the
// game; emptied rooms are left to the host or the idle reaper.
func (s *GameService) Leave(_ context.Context, pin, connID string) {
	room, ok := s.rooms.Get(pin)
	if !ok {
		return
	}
	if wasHost := room.leave(connID); wasHost {
		room.Shutdown()
		s.rooms.Delete(pin)
	}
}

// EndRoom is the explicit host teardown: final standings are broadcast and
// the room is removed from the registry.
func (s *GameService) EndRoom(_ context.Context, pin, connID string) error {
	room, ok := s.rooms.Get(pin)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if err := room.finish(connID); err != nil {
		return err
	}
	s.rooms.Delete(pin)
	return nil
}

// ReapIdle reclaims rooms with no activity for at least idle.
func (s *GameService) ReapIdle(idle time.Duration) int {
	return s.rooms.SweepIdle(idle)
}
