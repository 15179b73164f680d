package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"langcenter-quiz-service/internal/app"
	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/infra/memory"
)

func TestPlayRegistryMirrorsLivenessToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registry := NewPlayRegistry(client, time.Minute)
	catalog := memory.NewContentCache(&memory.StaticContentLoader{
		Quizzes: map[string]domain.KahootQuiz{
			"quiz-1": {
				ID: "quiz-1", Title: "Trivia", IsActive: true,
				Questions: []domain.KahootQuestion{
					{ID: "q1", Question: "first", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0, TimeLimitSeconds: 30},
				},
			},
		},
	}, time.Minute)
	leaderboard := app.NewLeaderboardService(memory.NewGateway())
	service := app.NewLiveQuizService(registry, catalog, leaderboard, app.DefaultPlayConfig())

	play, err := service.StartPlay(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("start play: %v", err)
	}
	defer service.Abandon(play.ID())

	key := "quiz:play:" + play.ID()
	if !mr.Exists(key) {
		t.Fatalf("expected liveness key %s", key)
	}
	if got, _ := registry.Get(play.ID()); got != play {
		t.Fatalf("registry lost the in-process play")
	}

	service.Abandon(play.ID())
	if mr.Exists(key) {
		t.Fatalf("liveness key should be cleared after abandon")
	}
	if _, ok := registry.Get(play.ID()); ok {
		t.Fatalf("play should be dropped from the registry")
	}
}

func TestPlayRegistryLivenessKeyExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registry := NewPlayRegistry(client, time.Second)
	catalog := memory.NewContentCache(&memory.StaticContentLoader{
		Quizzes: map[string]domain.KahootQuiz{
			"quiz-1": {
				ID: "quiz-1", Title: "Trivia", IsActive: true,
				Questions: []domain.KahootQuestion{
					{ID: "q1", Question: "first", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0, TimeLimitSeconds: 30},
				},
			},
		},
	}, time.Minute)
	service := app.NewLiveQuizService(registry, catalog, app.NewLeaderboardService(memory.NewGateway()), app.DefaultPlayConfig())

	play, err := service.StartPlay(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("start play: %v", err)
	}
	defer service.Abandon(play.ID())

	mr.FastForward(2 * time.Second)
	if mr.Exists("quiz:play:" + play.ID()) {
		t.Fatalf("liveness key should expire with its TTL")
	}
	// The in-process play survives the marker.
	if _, ok := registry.Get(play.ID()); !ok {
		t.Fatalf("in-process play must outlive the redis marker")
	}
}
