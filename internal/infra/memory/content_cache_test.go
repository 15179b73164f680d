package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"langcenter-quiz-service/internal/domain"
)

// countingLoader counts backing-store hits per content kind.
type countingLoader struct {
	StaticContentLoader
	activeLoads    int
	quizLoads      int
	questionsLoads int
}

func (l *countingLoader) LoadActiveQuiz(ctx context.Context) (domain.KahootQuiz, error) {
	l.activeLoads++
	return l.StaticContentLoader.LoadActiveQuiz(ctx)
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.KahootQuiz, error) {
	l.quizLoads++
	return l.StaticContentLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) LoadPlacementQuestions(ctx context.Context) ([]domain.PlacementQuestion, error) {
	l.questionsLoads++
	return l.StaticContentLoader.LoadPlacementQuestions(ctx)
}

func testLoader() *countingLoader {
	return &countingLoader{StaticContentLoader: StaticContentLoader{
		Quizzes: map[string]domain.KahootQuiz{
			"quiz-1": {ID: "quiz-1", Title: "Trivia", IsActive: true},
		},
		Questions: []domain.PlacementQuestion{
			{ID: "p1", Text: "one", Options: []string{"a", "b"}, Weight: 1, IsActive: true},
		},
	}}
}

func TestContentCacheServesFromCache(t *testing.T) {
	ctx := context.Background()
	loader := testLoader()
	cache := NewContentCache(loader, time.Minute)

	for i := 0; i < 3; i++ {
		quiz, err := cache.ActiveQuiz(ctx)
		if err != nil {
			t.Fatalf("active quiz: %v", err)
		}
		if quiz.ID != "quiz-1" {
			t.Fatalf("unexpected quiz: %+v", quiz)
		}
	}
	if loader.activeLoads != 1 {
		t.Fatalf("expected a single backing load, got %d", loader.activeLoads)
	}

	for i := 0; i < 3; i++ {
		if _, err := cache.ActiveQuestions(ctx); err != nil {
			t.Fatalf("questions: %v", err)
		}
	}
	if loader.questionsLoads != 1 {
		t.Fatalf("expected a single questions load, got %d", loader.questionsLoads)
	}
}

func TestContentCacheExpiresByTTL(t *testing.T) {
	ctx := context.Background()
	loader := testLoader()
	cache := NewContentCache(loader, time.Minute)

	now := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz cached: %v", err)
	}
	if loader.quizLoads != 1 {
		t.Fatalf("expected a single load before expiry, got %d", loader.quizLoads)
	}

	// Past the TTL plus its 10% jitter ceiling.
	now = now.Add(2 * time.Minute)
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if loader.quizLoads != 2 {
		t.Fatalf("expected a reload after expiry, got %d loads", loader.quizLoads)
	}
}

func TestContentCacheInvalidateForcesReload(t *testing.T) {
	ctx := context.Background()
	loader := testLoader()
	cache := NewContentCache(loader, time.Minute)

	if _, err := cache.ActiveQuiz(ctx); err != nil {
		t.Fatalf("active quiz: %v", err)
	}
	cache.Invalidate("quiz:active")
	if _, err := cache.ActiveQuiz(ctx); err != nil {
		t.Fatalf("active quiz after invalidate: %v", err)
	}
	if loader.activeLoads != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", loader.activeLoads)
	}
}

func TestContentCacheDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	loader := testLoader()
	loader.Quizzes["quiz-1"] = domain.KahootQuiz{ID: "quiz-1", Title: "Trivia"} // nothing active
	cache := NewContentCache(loader, time.Minute)

	if _, err := cache.ActiveQuiz(ctx); !errors.Is(err, domain.ErrNoActiveQuiz) {
		t.Fatalf("expected ErrNoActiveQuiz, got %v", err)
	}

	active := loader.Quizzes["quiz-1"]
	active.IsActive = true
	loader.Quizzes["quiz-1"] = active

	quiz, err := cache.ActiveQuiz(ctx)
	if err != nil {
		t.Fatalf("active quiz after activation: %v", err)
	}
	if quiz.ID != "quiz-1" {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
}
