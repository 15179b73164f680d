package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"langcenter-quiz-service/internal/app"
	"langcenter-quiz-service/internal/domain"
)

// APIHandler exposes the placement and leaderboard flows over JSON. Placement
// sessions are client-ephemeral state; the handler keeps them in memory per
// the no-resume policy and drops them on finalization.
type APIHandler struct {
	placement   *app.PlacementService
	oral        *app.OralService
	leaderboard *app.LeaderboardService

	mu       sync.Mutex
	sessions map[string]*app.PlacementSession
}

func NewAPIHandler(placement *app.PlacementService, oral *app.OralService, leaderboard *app.LeaderboardService) *APIHandler {
	return &APIHandler{
		placement:   placement,
		oral:        oral,
		leaderboard: leaderboard,
		sessions:    make(map[string]*app.PlacementSession),
	}
}

// Register mounts all routes onto the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/placement/start", h.handleStart)
	mux.HandleFunc("POST /api/placement/{id}/answer", h.handleAnswer)
	mux.HandleFunc("POST /api/placement/{id}/next", h.handleNext)
	mux.HandleFunc("POST /api/placement/{id}/prev", h.handlePrev)
	mux.HandleFunc("POST /api/placement/{id}/finalize", h.handleFinalize)
	mux.HandleFunc("GET /api/oral/slots", h.handleListSlots)
	mux.HandleFunc("POST /api/oral/book", h.handleBookSlot)
	mux.HandleFunc("POST /api/oral/complete", h.handleCompleteOral)
	mux.HandleFunc("GET /api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("POST /api/quizzes/{id}/activate", h.handleActivateQuiz)
}

type errorResponse struct {
	Error string `json:"error"`
}

type startRequest struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// questionView hides the correct index from test takers.
type questionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type startResponse struct {
	SessionID string         `json:"sessionId"`
	Questions []questionView `json:"questions"`
}

func (h *APIHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.placement.Start(r.Context(), app.ParticipantInfo{
		FullName: strings.TrimSpace(req.FullName),
		Phone:    strings.TrimSpace(req.Phone),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.mu.Lock()
	h.sessions[session.ID()] = session
	h.mu.Unlock()

	questions := make([]questionView, 0, len(session.Questions()))
	for _, q := range session.Questions() {
		questions = append(questions, questionView{ID: q.ID, Text: q.Text, Options: q.Options})
	}
	writeJSON(w, http.StatusCreated, startResponse{SessionID: session.ID(), Questions: questions})
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) *app.PlacementSession {
	h.mu.Lock()
	session, ok := h.sessions[r.PathValue("id")]
	h.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "placement session not found"})
		return nil
	}
	return session
}

type answerRequest struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

func (h *APIHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := session.RecordAnswer(req.QuestionID, req.OptionIndex); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"answered": session.Answered()})
}

func (h *APIHandler) handleNext(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"currentIndex": session.Next()})
}

func (h *APIHandler) handlePrev(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"currentIndex": session.Prev()})
}

func (h *APIHandler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}
	submission, err := h.placement.Finalize(r.Context(), session)
	if err != nil {
		// Keep the session so a transient persistence failure can be retried.
		writeServiceError(w, err)
		return
	}

	h.mu.Lock()
	delete(h.sessions, session.ID())
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, submission)
}

func (h *APIHandler) handleListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.oral.ListAvailableSlots(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

type bookRequest struct {
	SubmissionID string `json:"submissionId"`
	SlotID       string `json:"slotId"`
}

func (h *APIHandler) handleBookSlot(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	slot, submission, err := h.oral.BookSlot(r.Context(), req.SubmissionID, req.SlotID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slot": slot, "submission": submission})
}

type completeOralRequest struct {
	SubmissionID string `json:"submissionId"`
	Score        int    `json:"score"`
}

func (h *APIHandler) handleCompleteOral(w http.ResponseWriter, r *http.Request) {
	var req completeOralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	submission, err := h.oral.CompleteOralTest(r.Context(), req.SubmissionID, req.Score)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submission)
}

func (h *APIHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	leaderboard, err := h.leaderboard.Leaderboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboard)
}

func (h *APIHandler) handleActivateQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.leaderboard.SetActive(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrNoActiveQuiz),
		errors.Is(err, domain.ErrPlayNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrSlotAlreadyBooked):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrTransient):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporary storage failure, retry"})
	case errors.Is(err, domain.ErrPermission):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "storage rejected the operation"})
	case errors.Is(err, domain.ErrNoQuestions):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
