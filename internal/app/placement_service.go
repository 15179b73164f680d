package app

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/store"
)

// QuestionSource loads the placement question set (from cache/backing store).
type QuestionSource interface {
	ActiveQuestions(ctx context.Context) ([]domain.PlacementQuestion, error)
}

// ParticipantInfo identifies the person taking the placement test.
type ParticipantInfo struct {
	FullName string `validate:"required,min=2"`
	Phone    string `validate:"required,min=5"`
}

// PlacementService drives the written placement test: session lifecycle,
// answer recording, scoring and durable submission.
type PlacementService struct {
	gateway   store.Gateway
	questions QuestionSource
	validate  *validator.Validate
	newID     func() string
	now       func() time.Time
}

func NewPlacementService(gateway store.Gateway, questions QuestionSource) *PlacementService {
	return &PlacementService{
		gateway:   gateway,
		questions: questions,
		validate:  validator.New(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// NewPlacementServiceWithClock is test-only for deterministic IDs and timestamps.
func NewPlacementServiceWithClock(gateway store.Gateway, questions QuestionSource, newID func() string, now func() time.Time) *PlacementService {
	s := NewPlacementService(gateway, questions)
	if newID != nil {
		s.newID = newID
	}
	if now != nil {
		s.now = now
	}
	return s
}

type placementState int

const (
	stateInProgress placementState = iota
	stateFinalized
)

// PlacementSession holds one participant's in-flight test. It lives only in
// process memory; there is no resume after a crash.
type PlacementSession struct {
	id        string
	info      ParticipantInfo
	questions []domain.PlacementQuestion

	mu      sync.Mutex
	state   placementState
	answers map[string]int
	idx     int
}

// Start validates the participant, snapshots the active question set and
// opens a session. The question set is immutable for the session's lifetime.
func (s *PlacementService) Start(ctx context.Context, info ParticipantInfo) (*PlacementSession, error) {
	if err := s.validate.Struct(info); err != nil {
		return nil, fmt.Errorf("participant info: %w", err)
	}

	questions, err := s.questions.ActiveQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}

	return &PlacementSession{
		id:        sessionID(info.FullName, s.now()),
		info:      info,
		questions: questions,
		answers:   make(map[string]int),
	}, nil
}

// sessionID derives a human-readable identifier from the participant name and
// the clock: FT-<3 uppercase letters>-<trailing 6 timestamp digits>. The
// timestamp suffix keeps collisions unlikely; global uniqueness is not needed.
func sessionID(fullName string, now time.Time) string {
	var letters []rune
	for _, r := range fullName {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
			if len(letters) == 3 {
				break
			}
		}
	}
	for len(letters) < 3 {
		letters = append(letters, 'X')
	}

	millis := fmt.Sprintf("%d", now.UnixMilli())
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}
	return fmt.Sprintf("FT-%s-%s", string(letters), millis)
}

// ID returns the session identifier.
func (p *PlacementSession) ID() string { return p.id }

// Questions returns the immutable question set the session was opened with.
func (p *PlacementSession) Questions() []domain.PlacementQuestion { return p.questions }

// CurrentIndex reports the navigation position.
func (p *PlacementSession) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx
}

// RecordAnswer stores (or overwrites) the selected option for a question.
// Navigation is separate; recording never advances the position.
func (p *PlacementSession) RecordAnswer(questionID string, optionIndex int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateInProgress {
		return domain.ErrInvalidState
	}
	q := p.questionLocked(questionID)
	if q == nil {
		return fmt.Errorf("record answer: question %q: %w", questionID, domain.ErrNotFound)
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return fmt.Errorf("record answer: option index %d out of range", optionIndex)
	}
	p.answers[questionID] = optionIndex
	return nil
}

// Next moves the navigation position forward, clamped to the last question.
// Idempotent at the boundary.
func (p *PlacementSession) Next() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idx < len(p.questions)-1 {
		p.idx++
	}
	return p.idx
}

// Prev moves the navigation position back, clamped to zero.
func (p *PlacementSession) Prev() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idx > 0 {
		p.idx--
	}
	return p.idx
}

// Answered reports how many questions have a recorded answer.
func (p *PlacementSession) Answered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.answers)
}

func (p *PlacementSession) questionLocked(id string) *domain.PlacementQuestion {
	for i := range p.questions {
		if p.questions[i].ID == id {
			return &p.questions[i]
		}
	}
	return nil
}

// Finalize scores the session against its full question set (missing answers
// count as incorrect), persists the submission and marks the session inert.
// On a persistence failure the session stays in progress so the caller can
// retry; the submission only exists if the write succeeded.
func (s *PlacementService) Finalize(ctx context.Context, session *PlacementSession) (domain.PlacementSubmission, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != stateInProgress {
		return domain.PlacementSubmission{}, domain.ErrInvalidState
	}

	result, err := ComputeScore(session.questions, session.answers)
	if err != nil {
		return domain.PlacementSubmission{}, err
	}

	submission := domain.PlacementSubmission{
		ID:          s.newID(),
		SessionID:   session.id,
		FullName:    session.info.FullName,
		Phone:       session.info.Phone,
		Score:       result.PercentScore,
		CEFRLevel:   ClassifyCEFR(result.PercentScore),
		SubmittedAt: s.now(),
		OralStatus:  domain.OralNone,
	}

	if err := s.gateway.Create(ctx, store.EntitySubmissions, submission); err != nil {
		return domain.PlacementSubmission{}, fmt.Errorf("persist submission: %w", err)
	}

	session.state = stateFinalized
	return submission, nil
}
