package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/store"
)

// Gateway is an in-memory implementation of store.Gateway. Records are kept
// as decoded JSON documents so filtering and patching work the same way as
// in the Postgres JSONB implementation. Useful for tests and demos.
type Gateway struct {
	mu    sync.RWMutex
	data  map[store.Entity]map[string]map[string]any
	order map[store.Entity][]string
}

func NewGateway() *Gateway {
	return &Gateway{
		data:  make(map[store.Entity]map[string]map[string]any),
		order: make(map[store.Entity][]string),
	}
}

func (g *Gateway) Create(_ context.Context, entity store.Entity, record any) error {
	doc, err := toDoc(record)
	if err != nil {
		return err
	}
	id, _ := doc["id"].(string)
	if id == "" {
		return fmt.Errorf("create %s: record has no id", entity)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data[entity] == nil {
		g.data[entity] = make(map[string]map[string]any)
	}
	if _, exists := g.data[entity][id]; !exists {
		g.order[entity] = append(g.order[entity], id)
	}
	g.data[entity][id] = doc
	return nil
}

func (g *Gateway) GetByID(_ context.Context, entity store.Entity, id string, dst any) error {
	// Marshal inside the lock: Update mutates documents in place.
	g.mu.RLock()
	doc, ok := g.data[entity][id]
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(doc)
	}
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("get %s/%s: %w", entity, id, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (g *Gateway) Query(_ context.Context, entity store.Entity, q store.Query, dst any) error {
	// Snapshot matches while the lock is held; sort keys are JSON scalars, so
	// copying them by value is enough.
	type hit struct {
		raw []byte
		key any
	}

	g.mu.RLock()
	hits := make([]hit, 0, len(g.order[entity]))
	for _, id := range g.order[entity] {
		doc := g.data[entity][id]
		if !matches(doc, q.Filters) {
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			g.mu.RUnlock()
			return err
		}
		hits = append(hits, hit{raw: raw, key: doc[q.OrderBy]})
	}
	g.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(hits, func(i, j int) bool {
			c := compare(hits[i].key, hits[j].key)
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}

	docs := make([]json.RawMessage, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, json.RawMessage(h.raw))
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (g *Gateway) Update(_ context.Context, entity store.Entity, id string, patch map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.data[entity][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", entity, id, domain.ErrNotFound)
	}
	for k, v := range normalize(patch) {
		doc[k] = v
	}
	return nil
}

func (g *Gateway) Delete(_ context.Context, entity store.Entity, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.data[entity][id]; !ok {
		return fmt.Errorf("delete %s/%s: %w", entity, id, domain.ErrNotFound)
	}
	delete(g.data[entity], id)
	ids := g.order[entity]
	for i, existing := range ids {
		if existing == id {
			g.order[entity] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// BookSlot implements store.SlotBooker: slot check-and-set plus submission
// update under one lock, so readers never see a half-booked pair.
func (g *Gateway) BookSlot(_ context.Context, slotID, submissionID, date, timeOfDay string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot, ok := g.data[store.EntityOralSlots][slotID]
	if !ok {
		return fmt.Errorf("book slot %s: %w", slotID, domain.ErrNotFound)
	}
	if booked, _ := slot["isBooked"].(bool); booked {
		return domain.ErrSlotAlreadyBooked
	}
	submission, ok := g.data[store.EntitySubmissions][submissionID]
	if !ok {
		return fmt.Errorf("book slot: submission %s: %w", submissionID, domain.ErrNotFound)
	}

	slot["isBooked"] = true
	slot["bookedBy"] = submissionID
	submission["oralStatus"] = string(domain.OralBooked)
	submission["oralDate"] = date
	submission["oralTime"] = timeOfDay
	return nil
}

// ActivateQuiz implements store.QuizActivator: all flags flip under one lock.
func (g *Gateway) ActivateQuiz(_ context.Context, quizID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.data[store.EntityQuizzes][quizID]; !ok {
		return fmt.Errorf("activate quiz %s: %w", quizID, domain.ErrNotFound)
	}
	for id, quiz := range g.data[store.EntityQuizzes] {
		quiz["isActive"] = id == quizID
	}
	return nil
}

func toDoc(record any) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// normalize round-trips patch values through JSON so comparisons against
// stored documents see the same scalar types.
func normalize(patch map[string]any) map[string]any {
	raw, err := json.Marshal(patch)
	if err != nil {
		return patch
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return patch
	}
	return out
}

func matches(doc map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		value := doc[f.Field]
		want := normalizeValue(f.Value)
		switch f.Op {
		case store.OpEq:
			if compare(value, want) != 0 {
				return false
			}
		case store.OpGte:
			if compare(value, want) < 0 {
				return false
			}
		case store.OpLte:
			if compare(value, want) > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// compare orders JSON scalars: numbers numerically, strings lexically,
// booleans false<true. Mismatched types compare unequal (non-zero).
func compare(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case nil:
		if b == nil {
			return 0
		}
	}
	return 1
}
