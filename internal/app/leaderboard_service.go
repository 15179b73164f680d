package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/store"
)

// QuizCacheInvalidator drops cached active-quiz content after activation.
type QuizCacheInvalidator interface {
	InvalidateActiveQuiz(ctx context.Context)
}

// LeaderboardService persists live-quiz completions and derives the two
// ranking windows. Rankings are always recomputed from the full participant
// set; nothing is incrementally mutated.
type LeaderboardService struct {
	gateway store.Gateway
	cache   QuizCacheInvalidator
	newID   func() string
	now     func() time.Time
}

func NewLeaderboardService(gateway store.Gateway) *LeaderboardService {
	return &LeaderboardService{gateway: gateway, newID: uuid.NewString, now: time.Now}
}

// NewLeaderboardServiceWithClock is test-only for deterministic day windows.
func NewLeaderboardServiceWithClock(gateway store.Gateway, newID func() string, now func() time.Time) *LeaderboardService {
	s := NewLeaderboardService(gateway)
	if newID != nil {
		s.newID = newID
	}
	if now != nil {
		s.now = now
	}
	return s
}

// RecordCompletion converts a finished play attempt into an append-only
// participant record. The record only exists if the write succeeded.
func (s *LeaderboardService) RecordCompletion(ctx context.Context, attempt domain.KahootPlayAttempt) (domain.KahootParticipant, error) {
	correct, timeSpent := 0, 0
	for _, a := range attempt.Answers {
		if a.IsCorrect {
			correct++
		}
		timeSpent += a.TimeSpentSeconds
	}

	participant := domain.KahootParticipant{
		ID:               s.newID(),
		QuizID:           attempt.QuizID,
		Name:             attempt.PlayerName,
		Score:            attempt.RunningScore,
		CorrectAnswers:   correct,
		TotalQuestions:   len(attempt.Answers),
		TimeSpentSeconds: timeSpent,
		CompletedAt:      s.now(),
	}

	if err := s.gateway.Create(ctx, store.EntityParticipants, participant); err != nil {
		return domain.KahootParticipant{}, fmt.Errorf("persist participant: %w", err)
	}
	return participant, nil
}

// Leaderboard recomputes both ranking windows from the full participant set.
func (s *LeaderboardService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	participants, err := store.Find[domain.KahootParticipant](ctx, s.gateway, store.EntityParticipants, store.Query{})
	if err != nil {
		return domain.Leaderboard{}, err
	}

	now := s.now()
	return domain.Leaderboard{
		Daily:     RankDaily(participants, now),
		AllTime:   RankAllTime(participants),
		UpdatedAt: now,
	}, nil
}

// RankDaily ranks completions from the current local calendar day, score
// descending, capped at LeaderboardSize. Ties keep insertion order (stable
// sort): the first recorded ranks higher.
func RankDaily(participants []domain.KahootParticipant, now time.Time) []domain.KahootParticipant {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var todays []domain.KahootParticipant
	for _, p := range participants {
		if !p.CompletedAt.Before(startOfDay) && !p.CompletedAt.After(now) {
			todays = append(todays, p)
		}
	}
	return rank(todays)
}

// RankAllTime ranks every completion, score descending, capped at
// LeaderboardSize.
func RankAllTime(participants []domain.KahootParticipant) []domain.KahootParticipant {
	return rank(participants)
}

func rank(participants []domain.KahootParticipant) []domain.KahootParticipant {
	ranked := make([]domain.KahootParticipant, len(participants))
	copy(ranked, participants)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > domain.LeaderboardSize {
		ranked = ranked[:domain.LeaderboardSize]
	}
	return ranked
}

// AttachQuizCache registers the content cache whose active-quiz entry must be
// dropped after a successful SetActive.
func (s *LeaderboardService) AttachQuizCache(cache QuizCacheInvalidator) {
	s.cache = cache
}

// SetActive makes quizID the single active quiz. Gateways with the atomic
// activation capability flip all rows in one statement; otherwise the
// two-phase fallback deactivates every other quiz first, then activates the
// target. Readers of the fallback may transiently observe zero active
// quizzes. An attached quiz cache is invalidated on success so plays pick up
// the new quiz immediately.
func (s *LeaderboardService) SetActive(ctx context.Context, quizID string) error {
	if _, err := store.Get[domain.KahootQuiz](ctx, s.gateway, store.EntityQuizzes, quizID); err != nil {
		return err
	}
	if err := s.activate(ctx, quizID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateActiveQuiz(ctx)
	}
	return nil
}

func (s *LeaderboardService) activate(ctx context.Context, quizID string) error {
	if activator, ok := s.gateway.(store.QuizActivator); ok {
		return activator.ActivateQuiz(ctx, quizID)
	}

	active, err := store.Find[domain.KahootQuiz](ctx, s.gateway, store.EntityQuizzes, store.Query{
		Filters: []store.Filter{{Field: "isActive", Op: store.OpEq, Value: true}},
	})
	if err != nil {
		return err
	}
	for _, quiz := range active {
		if quiz.ID == quizID {
			continue
		}
		if err := s.gateway.Update(ctx, store.EntityQuizzes, quiz.ID, map[string]any{"isActive": false}); err != nil {
			return err
		}
	}
	return s.gateway.Update(ctx, store.EntityQuizzes, quizID, map[string]any{"isActive": true})
}
