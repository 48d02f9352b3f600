package app

import (
	"sort"
	"sync"
	"time"

	"pinquiz-service/internal/domain"
)

// Room is one in-progress game: a phase state machine, a question pointer,
// and the set of joined players. All state is guarded by the room's own
// mutex so rooms never contend with each other.
type Room struct {
	pin        string
	quiz       domain.Quiz
	hostConnID string
	maxPlayers int
	now        func() time.Time

	mu          sync.Mutex
	phase       domain.Phase
	currentQ    int
	joinCounter int
	players     map[string]*domain.Player
	subscribers map[chan domain.Event]struct{}
	lastActive  time.Time
	closed      bool
}

// NewRoom creates a room in the lobby phase with an empty player set.
// maxPlayers of zero means unlimited.
func NewRoom(pin string, quiz domain.Quiz, hostConnID string, maxPlayers int) *Room {
	return NewRoomWithClock(pin, quiz, hostConnID, maxPlayers, time.Now)
}

// NewRoomWithClock allows deterministic timestamps in tests.
func NewRoomWithClock(pin string, quiz domain.Quiz, hostConnID string, maxPlayers int, now func() time.Time) *Room {
	return &Room{
		pin:         pin,
		quiz:        quiz,
		hostConnID:  hostConnID,
		maxPlayers:  maxPlayers,
		now:         now,
		phase:       domain.PhaseLobby,
		players:     make(map[string]*domain.Player),
		subscribers: make(map[chan domain.Event]struct{}),
		lastActive:  now(),
	}
}

// Pin returns the room's PIN.
func (r *Room) Pin() string {
	return r.pin
}

// Phase returns the room's current phase.
func (r *Room) Phase() domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// QuestionIndex returns the zero-based pointer into the quiz's questions.
func (r *Room) QuestionIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentQ
}

// LastActive reports when the room last saw a join, advance, or submission.
func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

// IsEmpty reports whether the room has no players.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

// Shutdown closes every subscriber channel and marks the room dead.
// Safe to call more than once.
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
}

func (r *Room) join(connID, name string) ([]domain.RosterEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase == domain.PhaseFinished {
		return nil, domain.ErrGameFinished
	}
	if player, ok := r.players[connID]; ok {
		player.Name = name
	} else {
		if r.maxPlayers > 0 && len(r.players) >= r.maxPlayers {
			return nil, domain.ErrRoomFull
		}
		r.players[connID] = &domain.Player{
			ConnID:   connID,
			Name:     name,
			Score:    0,
			JoinedAt: r.joinCounter,
		}
		r.joinCounter++
	}
	r.lastActive = r.now()

	roster := r.rosterLocked()
	r.broadcastLocked(domain.Event{Type: domain.EventRoster, Payload: roster})
	return roster, nil
}

// leave removes a player and re-broadcasts the roster. It reports whether
// the departing connection was the room's host.
func (r *Room) leave(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[connID]; ok {
		delete(r.players, connID)
		r.broadcastLocked(domain.Event{Type: domain.EventRoster, Payload: r.rosterLocked()})
	}
	return connID == r.hostConnID
}

func (r *Room) advance(connID string) (domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connID != r.hostConnID {
		return domain.Event{}, domain.ErrNotHost
	}
	r.lastActive = r.now()

	switch r.phase {
	case domain.PhaseLobby:
		r.phase = domain.PhaseAnswering
		return r.broadcastPhaseLocked(), nil

	case domain.PhaseAnswering:
		r.phase = domain.PhaseLeaderboard
		event := domain.Event{Type: domain.EventPhase, Payload: domain.PhaseChange{
			Phase:         r.phase,
			QuestionIndex: r.currentQ,
			Leaderboard:   r.leaderboardLocked(),
		}}
		r.broadcastLocked(event)
		return event, nil

	case domain.PhaseLeaderboard:
		if r.currentQ+1 >= len(r.quiz.Questions) {
			r.phase = domain.PhaseFinished
			event := domain.Event{Type: domain.EventGameOver, Payload: domain.GameOver{
				Leaderboard: r.leaderboardLocked(),
			}}
			r.broadcastLocked(event)
			return event, nil
		}
		r.currentQ++
		r.phase = domain.PhaseAnswering
		return r.broadcastPhaseLocked(), nil

	default:
		return domain.Event{}, domain.ErrGameFinished
	}
}

func (r *Room) submitAnswer(connID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != domain.PhaseAnswering {
		return domain.AnswerResult{}, domain.ErrInvalidPhase
	}
	player, ok := r.players[connID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	question := r.quiz.Questions[r.currentQ]
	if sub.QuestionIndex != r.currentQ ||
		sub.ElapsedSeconds < 0 ||
		sub.OptionIndex < 0 || sub.OptionIndex >= len(question.Options) {
		return domain.AnswerResult{}, domain.ErrInvalidSubmission
	}

	correct := sub.OptionIndex == question.CorrectIndex
	awarded := domain.Award(sub.ElapsedSeconds, correct)
	player.Score += awarded
	r.lastActive = r.now()

	return domain.AnswerResult{
		Correct:    correct,
		Awarded:    awarded,
		TotalScore: player.Score,
	}, nil
}

// finish is the explicit host-driven teardown: broadcast the final standings
// and close all subscriptions.
func (r *Room) finish(connID string) error {
	r.mu.Lock()
	if connID != r.hostConnID {
		r.mu.Unlock()
		return domain.ErrNotHost
	}
	r.phase = domain.PhaseFinished
	r.broadcastLocked(domain.Event{Type: domain.EventGameOver, Payload: domain.GameOver{
		Leaderboard: r.leaderboardLocked(),
	}})
	r.mu.Unlock()

	r.Shutdown()
	return nil
}

func (r *Room) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	// Deliver the initial snapshot before the lock drops so a concurrent
	// Shutdown cannot close the channel first.
	ch <- domain.Event{Type: domain.EventRoster, Payload: r.rosterLocked()}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Room) broadcastPhaseLocked() domain.Event {
	view := r.quiz.Questions[r.currentQ].View()
	event := domain.Event{Type: domain.EventPhase, Payload: domain.PhaseChange{
		Phase:         r.phase,
		QuestionIndex: r.currentQ,
		Question:      &view,
	}}
	r.broadcastLocked(event)
	return event
}

func (r *Room) broadcastLocked(event domain.Event) {
	for ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest buffered event so slow consumers never block
			// the room.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func (r *Room) rosterLocked() []domain.RosterEntry {
	players := make([]*domain.Player, 0, len(r.players))
	for _, player := range r.players {
		players = append(players, player)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinedAt < players[j].JoinedAt
	})

	roster := make([]domain.RosterEntry, 0, len(players))
	for _, player := range players {
		roster = append(roster, domain.RosterEntry{Name: player.Name, Score: player.Score})
	}
	return roster
}

func (r *Room) leaderboardLocked() []domain.LeaderboardEntry {
	players := make([]*domain.Player, 0, len(r.players))
	for _, player := range r.players {
		players = append(players, player)
	}
	// Rank by score, with join order as a stable tie-break.
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].JoinedAt < players[j].JoinedAt
	})

	if len(players) > domain.LeaderboardSize {
		players = players[:domain.LeaderboardSize]
	}
	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for _, player := range players {
		entries = append(entries, domain.LeaderboardEntry{Name: player.Name, Score: player.Score})
	}
	return entries
}
