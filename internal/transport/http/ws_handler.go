package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"langcenter-quiz-service/internal/app"
)

// WSHandler runs the live quiz over a websocket: the server pushes question,
// tick, reveal and result events; the client sends answers. Disconnecting
// before the result abandons the play without persisting anything.
type WSHandler struct {
	live        *app.LiveQuizService
	leaderboard *app.LeaderboardService
	upgrader    websocket.Upgrader
}

func NewWSHandler(live *app.LiveQuizService, leaderboard *app.LeaderboardService) *WSHandler {
	return &WSHandler{
		live:        live,
		leaderboard: leaderboard,
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
	OptionIndex int `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request, starts a play of the active quiz and wires
// the play's event stream to the connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerName := r.URL.Query().Get("name")
	if playerName == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	play, err := h.live.StartPlay(r.Context(), playerName)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel := play.Subscribe()
	defer cancel()

	completed := false
	defer func() {
		if !completed {
			h.live.Abandon(play.ID())
		}
	}()

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
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: event.Type, Payload: event}:
				case <-closeSignals:
					return
				}
				if event.Type == "result" {
					h.finishPlay(r, play.ID(), send, closeSignals)
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: map[string]string{"playId": play.ID()}}

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
			if err := h.live.Answer(play.ID(), payload.OptionIndex); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "abandon":
			h.live.Abandon(play.ID())
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if play.Phase() == app.PhaseAbandoned {
			break
		}
	}

	completed = play.Phase() == app.PhaseResult

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// finishPlay persists the completed attempt and pushes the saved participant
// plus the refreshed leaderboard. A persistence failure is reported and the
// play is abandoned: there is no reattach route, so keeping it registered
// would only leak it.
func (h *WSHandler) finishPlay(r *http.Request, playID string, send chan outboundMessage[any], closeSignals chan struct{}) {
	participant, err := h.live.Complete(r.Context(), playID)
	if err != nil {
		trySend(send, closeSignals, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		h.live.Abandon(playID)
		return
	}
	trySend(send, closeSignals, outboundMessage[any]{Type: "participant", Payload: participant})

	leaderboard, err := h.leaderboard.Leaderboard(r.Context())
	if err != nil {
		trySend(send, closeSignals, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	trySend(send, closeSignals, outboundMessage[any]{Type: "leaderboard", Payload: leaderboard})
}

func trySend(send chan outboundMessage[any], closeSignals chan struct{}, msg outboundMessage[any]) {
	select {
	case send <- msg:
	case <-closeSignals:
	}
}
