package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"langcenter-quiz-service/internal/domain"
)

// QuizCatalog loads live-quiz content (from cache/backing store).
type QuizCatalog interface {
	ActiveQuiz(ctx context.Context) (domain.KahootQuiz, error)
	GetQuiz(ctx context.Context, quizID string) (domain.KahootQuiz, error)
}

// PlayRegistry tracks in-flight live plays (in-memory, optionally mirrored
// to Redis for liveness).
type PlayRegistry interface {
	Put(play *LivePlay)
	Get(playID string) (*LivePlay, bool)
	Delete(playID string)
}

// LiveQuizService runs the public live-quiz game: one pass per player through
// the single active quiz, finished plays feeding the leaderboard.
type LiveQuizService struct {
	plays       PlayRegistry
	quizzes     QuizCatalog
	leaderboard *LeaderboardService
	cfg         PlayConfig
	validate    *validator.Validate
	newID       func() string
}

func NewLiveQuizService(plays PlayRegistry, quizzes QuizCatalog, leaderboard *LeaderboardService, cfg PlayConfig) *LiveQuizService {
	return &LiveQuizService{
		plays:       plays,
		quizzes:     quizzes,
		leaderboard: leaderboard,
		cfg:         cfg,
		validate:    validator.New(),
		newID:       uuid.NewString,
	}
}

// StartPlay opens a play of the active quiz for the named player and starts
// its first countdown.
func (s *LiveQuizService) StartPlay(ctx context.Context, playerName string) (*LivePlay, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, fmt.Errorf("start play: player name is required")
	}

	quiz, err := s.quizzes.ActiveQuiz(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(quiz); err != nil {
		return nil, fmt.Errorf("active quiz %q is malformed: %w", quiz.ID, err)
	}

	play := newLivePlay(s.newID(), quiz, playerName, s.cfg)
	s.plays.Put(play)
	play.Begin()
	return play, nil
}

// Play looks up an in-flight play.
func (s *LiveQuizService) Play(playID string) (*LivePlay, error) {
	play, ok := s.plays.Get(playID)
	if !ok {
		return nil, domain.ErrPlayNotFound
	}
	return play, nil
}

// Answer forwards the player's selection to the play's state machine.
func (s *LiveQuizService) Answer(playID string, optionIndex int) error {
	play, err := s.Play(playID)
	if err != nil {
		return err
	}
	return play.Answer(optionIndex)
}

// Abandon discards an in-flight play without persisting anything.
func (s *LiveQuizService) Abandon(playID string) {
	play, ok := s.plays.Get(playID)
	if !ok {
		return
	}
	play.Abandon()
	s.plays.Delete(playID)
}

// Complete converts a finished play into a durable participant record and
// drops it from the registry. The play must have reached its result; on a
// persistence failure it stays registered and the caller decides whether to
// retry or abandon.
func (s *LiveQuizService) Complete(ctx context.Context, playID string) (domain.KahootParticipant, error) {
	play, err := s.Play(playID)
	if err != nil {
		return domain.KahootParticipant{}, err
	}
	if play.Phase() != PhaseResult {
		return domain.KahootParticipant{}, domain.ErrInvalidState
	}

	participant, err := s.leaderboard.RecordCompletion(ctx, play.Attempt())
	if err != nil {
		return domain.KahootParticipant{}, err
	}
	s.plays.Delete(playID)
	return participant, nil
}
