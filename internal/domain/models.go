package domain

// Phase is one state of the per-room game state machine.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseAnswering   Phase = "answering"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseFinished    Phase = "finished"
)

// Scoring constants for timed answers.
const (
	BasePoints       = 1000
	MinPoints        = 100
	PenaltyPerSecond = 50
)

// LeaderboardSize caps how many entries a leaderboard broadcast carries.
const LeaderboardSize = 5

// Award computes the points earned for an answer submitted after
// elapsedSeconds. Incorrect answers earn nothing; correct answers earn
// BasePoints minus a linear time penalty, floored at MinPoints.
func Award(elapsedSeconds float64, correct bool) int {
	if !correct {
		return 0
	}
	points := BasePoints - int(PenaltyPerSecond*elapsedSeconds)
	if points < MinPoints {
		return MinPoints
	}
	return points
}

// Question models an MCQ question; CorrectIndex points into Options.
type Question struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// QuestionView is the player-facing shape of a Question, without the answer.
type QuestionView struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// View strips the correct-answer index for broadcast to players.
func (q Question) View() QuestionView {
	return QuestionView{Prompt: q.Prompt, Options: q.Options}
}

// Quiz is an ordered collection of questions, immutable for a game.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Player represents one connected participant of a room.
type Player struct {
	ConnID   string
	Name     string
	Score    int
	JoinedAt int // join ordinal, used for deterministic tie-breaks
}

// RosterEntry is a snapshot-friendly view of a player.
type RosterEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// LeaderboardEntry is one ranked row of a leaderboard snapshot.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// AnswerSubmission models the scoring signal from player clients.
type AnswerSubmission struct {
	QuestionIndex  int
	OptionIndex    int
	ElapsedSeconds float64
}

// AnswerResult summarizes the outcome of a submission for the submitter.
type AnswerResult struct {
	Correct    bool `json:"correct"`
	Awarded    int  `json:"awarded"`
	TotalScore int  `json:"totalScore"`
}

// EventType tags room broadcasts.
type EventType string

const (
	EventRoster   EventType = "roster"
	EventPhase    EventType = "phase"
	EventGameOver EventType = "gameOver"
)

// Event is a broadcast delivered to every subscriber of a room.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// PhaseChange is the payload of an EventPhase broadcast.
type PhaseChange struct {
	Phase         Phase              `json:"phase"`
	QuestionIndex int                `json:"questionIndex"`
	Question      *QuestionView      `json:"question,omitempty"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard,omitempty"`
}

// GameOver is the payload of an EventGameOver broadcast.
type GameOver struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}
