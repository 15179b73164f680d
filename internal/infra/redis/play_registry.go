package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"langcenter-quiz-service/internal/app"
)

// PlayRegistry is a Redis-aware implementation of app.PlayRegistry.
// Notes:
//   - Plays themselves stay in process memory: their timers and broadcast
//     channels cannot move across instances, and partial plays are meant to
//     be discarded on termination.
//   - Redis only marks play liveness, which gives operators visibility and
//     could route cross-instance lookups later.
type PlayRegistry struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	plays  map[string]*app.LivePlay
}

func NewPlayRegistry(client *redis.Client, ttl time.Duration) *PlayRegistry {
	return &PlayRegistry{
		client: client,
		ttl:    ttl,
		plays:  make(map[string]*app.LivePlay),
	}
}

func (r *PlayRegistry) Put(play *app.LivePlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays[play.ID()] = play
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(play.ID()), "1", r.ttl).Err()
}

func (r *PlayRegistry) Get(playID string) (*app.LivePlay, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	play, ok := r.plays[playID]
	return play, ok
}

func (r *PlayRegistry) Delete(playID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.plays, playID)
	_ = r.client.Del(context.Background(), r.key(playID)).Err()
}

func (r *PlayRegistry) key(playID string) string {
	return "quiz:play:" + playID
}
