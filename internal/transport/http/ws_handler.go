package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"pinquiz-service/internal/app"
	"pinquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex  int     `json:"questionIndex"`
	OptionIndex    int     `json:"optionIndex"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type roomCreatedPayload struct {
	Pin string `json:"pin"`
}

type joinedPayload struct {
	Pin    string               `json:"pin"`
	Roster []domain.RosterEntry `json:"roster"`
}

// ServeHost upgrades the host's connection, creates a room for the requested
// quiz, and accepts advance/end frames until the socket closes. A closing
// host socket tears the room down.
func (h *WSHandler) ServeHost(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	hostConnID := uuid.NewString()
	pin, err := h.service.CreateRoom(r.Context(), quizID, hostConnID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), pin)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer func() {
		_ = h.service.EndRoom(r.Context(), pin, hostConnID)
	}()

	send, closeSignals, writerDone, updatesDone := h.startPumps(conn, updates)

	send <- outboundMessage[any]{Type: "roomCreated", Payload: roomCreatedPayload{Pin: pin}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "advance":
			_, err := h.service.Advance(r.Context(), pin, hostConnID)
			switch {
			case errors.Is(err, domain.ErrGameFinished):
				send <- outboundMessage[any]{Type: "gameOver", Payload: struct{}{}}
			case err != nil:
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
			// Successful transitions reach the host through the broadcast.
		case "end":
			if err := h.service.EndRoom(r.Context(), pin, hostConnID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// ServePlay upgrades a player's connection and joins them into the room named
// by the PIN. Unknown PINs get an explicit error frame instead of a silent
// drop.
func (h *WSHandler) ServePlay(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	name := r.URL.Query().Get("name")
	if pin == "" || name == "" {
		http.Error(w, "missing pin or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	roster, err := h.service.Join(r.Context(), pin, connID, name)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), pin)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Leave(r.Context(), pin, connID)

	send, closeSignals, writerDone, updatesDone := h.startPumps(conn, updates)

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{Pin: pin, Roster: roster}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), pin, connID, domain.AnswerSubmission{
				QuestionIndex:  payload.QuestionIndex,
				OptionIndex:    payload.OptionIndex,
				ElapsedSeconds: payload.ElapsedSeconds,
			})
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// startPumps starts the single writer goroutine that owns the socket and the
// pump that feeds it room broadcasts, so nothing else ever writes the
// connection concurrently.
func (h *WSHandler) startPumps(conn *websocket.Conn, updates <-chan domain.Event) (chan outboundMessage[any], chan struct{}, <-chan struct{}, <-chan struct{}) {
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(update.Type), Payload: update.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	return send, closeSignals, writerDone, updatesDone
}
