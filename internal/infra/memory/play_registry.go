package memory

import (
	"sync"

	"langcenter-quiz-service/internal/app"
)

// PlayRegistry is an in-memory implementation of app.PlayRegistry. Plays are
// ephemeral; nothing here survives a restart.
type PlayRegistry struct {
	mu    sync.RWMutex
	plays map[string]*app.LivePlay
}

func NewPlayRegistry() *PlayRegistry {
	return &PlayRegistry{plays: make(map[string]*app.LivePlay)}
}

func (r *PlayRegistry) Put(play *app.LivePlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays[play.ID()] = play
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
}
