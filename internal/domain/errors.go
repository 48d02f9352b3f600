package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a PIN does not resolve to an active room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a connection acts before joining a room.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz rejects hosting a quiz with no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrInvalidPhase is returned for actions the current phase does not admit,
	// such as answer submissions outside the answering phase.
	ErrInvalidPhase = errors.New("action not valid in current phase")
	// ErrGameFinished is returned when the host advances past the last question.
	ErrGameFinished = errors.New("game is over")
	// ErrNotHost is returned when a non-host connection tries to drive the game.
	ErrNotHost = errors.New("only the host may perform this action")
	// ErrRoomFull is returned when a join would exceed the room's player limit.
	ErrRoomFull = errors.New("room is full")
	// ErrInvalidSubmission indicates a malformed answer payload.
	ErrInvalidSubmission = errors.New("invalid answer submission")
)
