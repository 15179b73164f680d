package store

import "context"

// Entity names a persisted record collection.
type Entity string

const (
	EntitySubmissions  Entity = "placement_submissions"
	EntityOralSlots    Entity = "oral_test_slots"
	EntityQuizzes      Entity = "kahoot_quizzes"
	EntityParticipants Entity = "kahoot_participants"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
)

// Filter restricts a Query to records whose field compares true against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a filtered, ordered, bounded read. A zero Limit means no cap.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Gateway is the generic CRUD surface over the backing store. Records travel
// as JSON-marshalable values; implementations must return domain.ErrNotFound
// for missing IDs and wrap infrastructure failures in domain.ErrTransient or
// domain.ErrPermission so callers can decide whether retrying is safe.
type Gateway interface {
	Create(ctx context.Context, entity Entity, record any) error
	GetByID(ctx context.Context, entity Entity, id string, dst any) error
	Query(ctx context.Context, entity Entity, q Query, dst any) error
	Update(ctx context.Context, entity Entity, id string, patch map[string]any) error
	Delete(ctx context.Context, entity Entity, id string) error
}

// SlotBooker is an optional gateway capability: implementations that can bind
// a slot to a submission atomically (check-and-set plus submission update in
// one transaction) should provide it. Services type-assert and fall back to
// read-verify-write with rollback when it is absent.
type SlotBooker interface {
	BookSlot(ctx context.Context, slotID, submissionID, date, timeOfDay string) error
}

// QuizActivator is an optional gateway capability: flip exactly one quiz to
// active and clear every other in a single statement, closing the transient
// dual-active window of the two-phase fallback.
type QuizActivator interface {
	ActivateQuiz(ctx context.Context, quizID string) error
}
