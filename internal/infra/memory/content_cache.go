package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"langcenter-quiz-service/internal/domain"
)

// ContentLoader fetches quiz and placement content from a backing store.
type ContentLoader interface {
	LoadActiveQuiz(ctx context.Context) (domain.KahootQuiz, error)
	LoadQuiz(ctx context.Context, quizID string) (domain.KahootQuiz, error)
	LoadPlacementQuestions(ctx context.Context) ([]domain.PlacementQuestion, error)
}

// ContentCache caches quiz and placement content with TTL to avoid repeated
// store hits while plays and placement sessions are running.
type ContentCache struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedEntry
}

type cachedEntry struct {
	value     any
	expiresAt time.Time
}

func NewContentCache(loader ContentLoader, ttl time.Duration) *ContentCache {
	return &ContentCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEntry),
	}
}

// ActiveQuiz returns the currently playable quiz.
func (c *ContentCache) ActiveQuiz(ctx context.Context) (domain.KahootQuiz, error) {
	value, err := c.load(ctx, "quiz:active", func() (any, error) {
		return c.loader.LoadActiveQuiz(ctx)
	})
	if err != nil {
		return domain.KahootQuiz{}, err
	}
	return value.(domain.KahootQuiz), nil
}

// GetQuiz returns a quiz by ID.
func (c *ContentCache) GetQuiz(ctx context.Context, quizID string) (domain.KahootQuiz, error) {
	value, err := c.load(ctx, "quiz:"+quizID, func() (any, error) {
		return c.loader.LoadQuiz(ctx, quizID)
	})
	if err != nil {
		return domain.KahootQuiz{}, err
	}
	return value.(domain.KahootQuiz), nil
}

// ActiveQuestions returns the active placement question set.
func (c *ContentCache) ActiveQuestions(ctx context.Context) ([]domain.PlacementQuestion, error) {
	value, err := c.load(ctx, "placement:questions", func() (any, error) {
		return c.loader.LoadPlacementQuestions(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.([]domain.PlacementQuestion), nil
}

// Invalidate drops a cached key.
func (c *ContentCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
}

// InvalidateActiveQuiz drops the cached active quiz so a newly activated one
// is served on the next play instead of after the TTL.
func (c *ContentCache) InvalidateActiveQuiz(_ context.Context) {
	c.Invalidate("quiz:active")
}

func (c *ContentCache) load(ctx context.Context, key string, fetch func() (any, error)) (any, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.value, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.value, nil
		}
		c.mu.RUnlock()

		value, err := fetch()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedEntry{value: value, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticContentLoader serves content from in-memory values (tests/demos).
type StaticContentLoader struct {
	Quizzes   map[string]domain.KahootQuiz
	Questions []domain.PlacementQuestion
}

func (l *StaticContentLoader) LoadActiveQuiz(_ context.Context) (domain.KahootQuiz, error) {
	for _, quiz := range l.Quizzes {
		if quiz.IsActive {
			return quiz, nil
		}
	}
	return domain.KahootQuiz{}, domain.ErrNoActiveQuiz
}

func (l *StaticContentLoader) LoadQuiz(_ context.Context, quizID string) (domain.KahootQuiz, error) {
	if quiz, ok := l.Quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.KahootQuiz{}, domain.ErrQuizNotFound
}

func (l *StaticContentLoader) LoadPlacementQuestions(_ context.Context) ([]domain.PlacementQuestion, error) {
	return l.Questions, nil
}
