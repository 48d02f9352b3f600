package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pinquiz-service/internal/app"
	"pinquiz-service/internal/domain"
	"pinquiz-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestHostAndPlayerFlow(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	host := dial(t, server, "/ws/host?quizId=quiz-1")
	defer host.Close()

	_, created := readUntil(host, t, "roomCreated")
	pin, _ := created["pin"].(string)
	if pin == "" {
		t.Fatalf("expected pin in roomCreated payload, got %v", created)
	}

	player := dial(t, server, "/ws/play?pin="+pin+"&name=Alice")
	defer player.Close()

	_, joined := readUntil(player, t, "joined")
	roster, _ := joined["roster"].([]any)
	if len(roster) != 1 {
		t.Fatalf("expected roster of 1 in joined payload, got %v", joined)
	}

	// Host advances to the answering phase; both sides see the broadcast.
	writeMsg(host, t, "advance", nil)
	_, hostPhase := readUntil(host, t, "phase")
	if hostPhase["phase"] != "answering" {
		t.Fatalf("expected answering phase on host, got %v", hostPhase)
	}
	_, playerPhase := readUntil(player, t, "phase")
	if playerPhase["phase"] != "answering" {
		t.Fatalf("expected answering phase on player, got %v", playerPhase)
	}
	if playerPhase["question"] == nil {
		t.Fatalf("expected question payload for players, got %v", playerPhase)
	}

	// Correct answer at t=2 earns 900.
	writeMsg(player, t, "answer", map[string]any{
		"questionIndex":  0,
		"optionIndex":    1,
		"elapsedSeconds": 2,
	})
	_, result := readUntil(player, t, "answerResult")
	if result["correct"] != true || result["awarded"] != float64(900) {
		t.Fatalf("expected correct answer worth 900, got %v", result)
	}

	// Advancing again produces the ranked leaderboard.
	writeMsg(host, t, "advance", nil)
	_, leaderboard := readUntil(host, t, "phase")
	if leaderboard["phase"] != "leaderboard" {
		t.Fatalf("expected leaderboard phase, got %v", leaderboard)
	}
	entries, _ := leaderboard["leaderboard"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one leaderboard entry, got %v", leaderboard)
	}
	top, _ := entries[0].(map[string]any)
	if top["name"] != "Alice" || top["score"] != float64(900) {
		t.Fatalf("expected Alice with 900, got %v", top)
	}
}

func TestPlayerJoinUnknownPin(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "/ws/play?pin=000000&name=Alice")
	defer conn.Close()

	msgType, payload := readNext(conn, t)
	if msgType != "error" {
		t.Fatalf("expected error frame, got %s", msgType)
	}
	if payload["message"] != domain.ErrRoomNotFound.Error() {
		t.Fatalf("expected room-not-found message, got %v", payload)
	}
}

func TestAdvancePastEndAcknowledgesGameOver(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	host := dial(t, server, "/ws/host?quizId=quiz-1")
	defer host.Close()
	readUntil(host, t, "roomCreated")

	// One-question quiz: lobby -> answering -> leaderboard -> gameOver.
	for i := 0; i < 3; i++ {
		writeMsg(host, t, "advance", nil)
	}
	readUntil(host, t, "gameOver")

	// Any further advance gets the terminal acknowledgment, not a new phase.
	writeMsg(host, t, "advance", nil)
	msgType, _ := readUntil(host, t, "gameOver")
	if msgType != "gameOver" {
		t.Fatalf("expected terminal game-over ack, got %s", msgType)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := memory.NewRoomRegistry()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					Prompt:       "What is 2 + 2?",
					Options:      []string{"3", "4", "5", "22"},
					CorrectIndex: 1,
				},
			},
		},
	}), time.Minute)
	service := app.NewGameService(registry, quizRepo, 0)
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/host", wsHandler.ServeHost)
	mux.HandleFunc("/ws/play", wsHandler.ServePlay)
	return httptest.NewServer(mux)
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func writeMsg(conn *websocket.Conn, t *testing.T, msgType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	// Skipped broadcasts (e.g. rosters) carry array payloads; only object
	// payloads are ever asserted on, so non-objects decode to a nil map.
	var payload map[string]any
	_ = json.Unmarshal(msg.Payload, &payload)
	return msg.Type, payload
}

// readUntil skips interleaved broadcasts (rosters, stale phases) until a
// frame of the wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, want string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 10; i++ {
		msgType, payload := readNext(conn, t)
		if msgType == want {
			return msgType, payload
		}
	}
	t.Fatalf("no %s frame within 10 messages", want)
	return "", nil
}
