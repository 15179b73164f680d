package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/infra/memory"
)

// ContentCache caches quiz and placement content as JSON values in Redis and
// falls back to a loader on cache miss.
// Keys: content:quiz:active, content:quiz:{id}, content:placement:questions.
type ContentCache struct {
	client *redis.Client
	loader memory.ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContentCache(client *redis.Client, loader memory.ContentLoader, ttl time.Duration) *ContentCache {
	return &ContentCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ActiveQuiz returns the currently playable quiz.
func (c *ContentCache) ActiveQuiz(ctx context.Context) (domain.KahootQuiz, error) {
	var quiz domain.KahootQuiz
	err := c.load(ctx, "content:quiz:active", &quiz, func() (any, error) {
		return c.loader.LoadActiveQuiz(ctx)
	})
	return quiz, err
}

// GetQuiz returns a quiz by ID.
func (c *ContentCache) GetQuiz(ctx context.Context, quizID string) (domain.KahootQuiz, error) {
	var quiz domain.KahootQuiz
	err := c.load(ctx, "content:quiz:"+quizID, &quiz, func() (any, error) {
		return c.loader.LoadQuiz(ctx, quizID)
	})
	return quiz, err
}

// ActiveQuestions returns the active placement question set.
func (c *ContentCache) ActiveQuestions(ctx context.Context) ([]domain.PlacementQuestion, error) {
	var questions []domain.PlacementQuestion
	err := c.load(ctx, "content:placement:questions", &questions, func() (any, error) {
		return c.loader.LoadPlacementQuestions(ctx)
	})
	return questions, err
}

// Invalidate drops a cached key.
func (c *ContentCache) Invalidate(ctx context.Context, key string) {
	_ = c.client.Del(ctx, key).Err()
}

// InvalidateActiveQuiz drops the cached active quiz so a newly activated one
// is served on the next play instead of after the TTL.
func (c *ContentCache) InvalidateActiveQuiz(ctx context.Context) {
	c.Invalidate(ctx, "content:quiz:active")
}

func (c *ContentCache) load(ctx context.Context, key string, dst any, fetch func() (any, error)) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, dst)
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return raw, nil
		}

		value, err := fetch()
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		// best-effort: a failed cache write only costs the next reader a load
		_ = c.client.Set(ctx, key, encoded, c.ttlWithJitter()).Err()
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), dst)
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
