package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// serveWS streams per-quiz leaderboard snapshots: one on connect, then one
// after every accepted submission. The same visibility gate as the GET view
// applies; gated boards stream as visible:false until an admin publishes.
func (a *API) serveWS(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	board, err := a.boards.QuizLeaderboard(r.Context(), quizID, caller)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := a.watch.Subscribe(quizID)
	defer cancel()

	send := make(chan outboundMessage[domain.Leaderboard], 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send <- outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: board}

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				close(send)
				<-done
				return
			}
			select {
			case send <- outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: update}:
			case <-done:
				return
			case <-readerGone:
				close(send)
				<-done
				return
			}
		case <-readerGone:
			close(send)
			<-done
			return
		case <-done:
			return
		}
	}
}
