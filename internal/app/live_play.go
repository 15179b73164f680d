package app

import (
	"fmt"
	"sync"
	"time"

	"langcenter-quiz-service/internal/domain"
)

// PlayPhase is the coarse state of a live play.
type PlayPhase string

const (
	PhasePlaying   PlayPhase = "playing"
	PhaseReveal    PlayPhase = "reveal"
	PhaseResult    PlayPhase = "result"
	PhaseAbandoned PlayPhase = "abandoned"
)

// PlayConfig tunes the real-time behaviour of a play. Tests shrink the
// intervals to keep runs fast.
type PlayConfig struct {
	TickInterval time.Duration
	RevealDelay  time.Duration
}

// DefaultPlayConfig matches the public game: one-second countdown ticks and
// a 1.5 second answer reveal before advancing.
func DefaultPlayConfig() PlayConfig {
	return PlayConfig{
		TickInterval: time.Second,
		RevealDelay:  1500 * time.Millisecond,
	}
}

// PlayEvent is broadcast to subscribers on every observable state change.
// Question events never carry the correct index; it is revealed only after
// the question is closed.
type PlayEvent struct {
	Type           string                    `json:"type"` // question | tick | reveal | result
	QuestionIndex  int                       `json:"questionIndex"`
	TotalQuestions int                       `json:"totalQuestions"`
	Question       string                    `json:"question,omitempty"`
	Options        []string                  `json:"options,omitempty"`
	TimeLeft       int                       `json:"timeLeft"`
	CorrectIndex   int                       `json:"correctIndex,omitempty"`
	Correct        bool                      `json:"correct,omitempty"`
	Awarded        int                       `json:"awarded,omitempty"`
	RunningScore   int                       `json:"runningScore"`
	Attempt        *domain.KahootPlayAttempt `json:"attempt,omitempty"`
}

// LivePlay runs one player's pass through the active quiz: a per-question
// countdown that auto-submits the timeout sentinel at zero, a single answer
// per question, a reveal pause, then advance. At most one timer handle is
// live at a time; scheduling always cancels the previous one first.
type LivePlay struct {
	id     string
	quiz   domain.KahootQuiz
	player string
	cfg    PlayConfig

	mu          sync.Mutex
	phase       PlayPhase
	idx         int
	timeLeft    int
	answered    bool
	answers     []domain.AnswerRecord
	score       int
	timer       *time.Timer
	subscribers map[chan PlayEvent]struct{}
}

func newLivePlay(id string, quiz domain.KahootQuiz, player string, cfg PlayConfig) *LivePlay {
	return &LivePlay{
		id:          id,
		quiz:        quiz,
		player:      player,
		cfg:         cfg,
		phase:       PhasePlaying,
		timeLeft:    quiz.Questions[0].TimeLimitSeconds,
		subscribers: make(map[chan PlayEvent]struct{}),
	}
}

// ID returns the play identifier.
func (p *LivePlay) ID() string { return p.id }

// Phase reports the current play phase.
func (p *LivePlay) Phase() PlayPhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Begin presents the first question and starts the countdown.
func (p *LivePlay) Begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcastLocked(p.questionEventLocked())
	p.scheduleLocked(p.cfg.TickInterval, p.tick)
}

// Subscribe returns a channel of play events. The caller must invoke the
// returned cancel function to avoid leaks; the channel is closed when the
// play reaches its result or is abandoned.
func (p *LivePlay) Subscribe() (<-chan PlayEvent, func()) {
	ch := make(chan PlayEvent, 16)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	initial := p.questionEventLocked()
	done := p.phase == PhaseResult || p.phase == PhaseAbandoned
	p.mu.Unlock()

	if !done {
		ch <- initial
	}

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Answer records the player's choice for the current question. Only the
// first answer per question counts; repeats fail with ErrAlreadyAnswered and
// change nothing. Recording freezes the countdown and starts the reveal.
func (p *LivePlay) Answer(optionIndex int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != PhasePlaying {
		return domain.ErrInvalidState
	}
	if p.answered {
		return domain.ErrAlreadyAnswered
	}
	q := p.quiz.Questions[p.idx]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return fmt.Errorf("answer: option index %d out of range", optionIndex)
	}

	p.recordAnswerLocked(optionIndex)
	return nil
}

// Abandon discards the play. Nothing is persisted; subscribers are closed.
func (p *LivePlay) Abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == PhaseResult || p.phase == PhaseAbandoned {
		return
	}
	p.stopTimerLocked()
	p.phase = PhaseAbandoned
	p.closeSubscribersLocked()
}

// Attempt snapshots the play as a KahootPlayAttempt.
func (p *LivePlay) Attempt() domain.KahootPlayAttempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attemptLocked()
}

func (p *LivePlay) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != PhasePlaying || p.answered {
		return
	}
	p.timeLeft--
	if p.timeLeft <= 0 {
		p.timeLeft = 0
		p.recordAnswerLocked(domain.TimeoutSentinel)
		return
	}
	p.broadcastLocked(PlayEvent{
		Type:           "tick",
		QuestionIndex:  p.idx,
		TotalQuestions: len(p.quiz.Questions),
		TimeLeft:       p.timeLeft,
		RunningScore:   p.score,
	})
	p.scheduleLocked(p.cfg.TickInterval, p.tick)
}

// recordAnswerLocked closes the current question with the given selection
// (possibly the timeout sentinel), broadcasts the reveal and schedules the
// advance.
func (p *LivePlay) recordAnswerLocked(selected int) {
	q := p.quiz.Questions[p.idx]
	awarded := ScoreAnswer(q, selected, p.timeLeft)
	record := domain.AnswerRecord{
		QuestionID:       q.ID,
		SelectedIndex:    selected,
		TimeSpentSeconds: q.TimeLimitSeconds - p.timeLeft,
		IsCorrect:        awarded > 0,
	}
	p.answers = append(p.answers, record)
	p.score += awarded
	p.answered = true
	p.phase = PhaseReveal

	p.broadcastLocked(PlayEvent{
		Type:           "reveal",
		QuestionIndex:  p.idx,
		TotalQuestions: len(p.quiz.Questions),
		TimeLeft:       p.timeLeft,
		CorrectIndex:   q.CorrectIndex,
		Correct:        record.IsCorrect,
		Awarded:        awarded,
		RunningScore:   p.score,
	})
	p.scheduleLocked(p.cfg.RevealDelay, p.advance)
}

func (p *LivePlay) advance() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase != PhaseReveal {
		return
	}

	if p.idx == len(p.quiz.Questions)-1 {
		p.phase = PhaseResult
		attempt := p.attemptLocked()
		p.broadcastLocked(PlayEvent{
			Type:           "result",
			QuestionIndex:  p.idx,
			TotalQuestions: len(p.quiz.Questions),
			RunningScore:   p.score,
			Attempt:        &attempt,
		})
		p.closeSubscribersLocked()
		return
	}

	p.idx++
	p.answered = false
	p.timeLeft = p.quiz.Questions[p.idx].TimeLimitSeconds
	p.phase = PhasePlaying
	p.broadcastLocked(p.questionEventLocked())
	p.scheduleLocked(p.cfg.TickInterval, p.tick)
}

func (p *LivePlay) attemptLocked() domain.KahootPlayAttempt {
	answers := make([]domain.AnswerRecord, len(p.answers))
	copy(answers, p.answers)
	return domain.KahootPlayAttempt{
		QuizID:               p.quiz.ID,
		PlayerName:           p.player,
		CurrentQuestionIndex: p.idx,
		Answers:              answers,
		RunningScore:         p.score,
	}
}

func (p *LivePlay) questionEventLocked() PlayEvent {
	q := p.quiz.Questions[p.idx]
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PlayEvent{
		Type:           "question",
		QuestionIndex:  p.idx,
		TotalQuestions: len(p.quiz.Questions),
		Question:       q.Question,
		Options:        options,
		TimeLeft:       p.timeLeft,
		RunningScore:   p.score,
	}
}

// scheduleLocked replaces the single live timer handle. Cancelling before
// rescheduling prevents duplicate decrements from stale ticks.
func (p *LivePlay) scheduleLocked(d time.Duration, fn func()) {
	p.stopTimerLocked()
	p.timer = time.AfterFunc(d, fn)
}

func (p *LivePlay) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *LivePlay) broadcastLocked(ev PlayEvent) {
	for ch := range p.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (p *LivePlay) closeSubscribersLocked() {
	for ch := range p.subscribers {
		delete(p.subscribers, ch)
		close(ch)
	}
}
