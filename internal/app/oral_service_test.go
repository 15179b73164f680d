package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"langcenter-quiz-service/internal/app"
	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/infra/memory"
	"langcenter-quiz-service/internal/store"
)

func seedOralFixtures(t *testing.T, gateway store.Gateway, today time.Time) {
	t.Helper()
	ctx := context.Background()

	slots := []domain.OralTestSlot{
		{ID: "slot-past", Date: today.AddDate(0, 0, -1).Format("2006-01-02"), Time: "10:00"},
		{ID: "slot-b", Date: today.AddDate(0, 0, 1).Format("2006-01-02"), Time: "11:00"},
		{ID: "slot-a", Date: today.AddDate(0, 0, 1).Format("2006-01-02"), Time: "09:00"},
		{ID: "slot-c", Date: today.AddDate(0, 0, 2).Format("2006-01-02"), Time: "08:00"},
		{ID: "slot-taken", Date: today.AddDate(0, 0, 1).Format("2006-01-02"), Time: "08:00", IsBooked: true, BookedBy: "other"},
	}
	for _, slot := range slots {
		if err := gateway.Create(ctx, store.EntityOralSlots, slot); err != nil {
			t.Fatalf("seed slot: %v", err)
		}
	}

	submission := domain.PlacementSubmission{
		ID: "sub-1", SessionID: "FT-TST-000001", FullName: "Test User", Phone: "5551234",
		Score: 72, CEFRLevel: domain.LevelB2, SubmittedAt: today, OralStatus: domain.OralNone,
	}
	if err := gateway.Create(ctx, store.EntitySubmissions, submission); err != nil {
		t.Fatalf("seed submission: %v", err)
	}
}

func TestListAvailableSlotsFiltersAndOrders(t *testing.T) {
	today := time.Date(2025, 8, 22, 12, 0, 0, 0, time.UTC)
	gateway := memory.NewGateway()
	seedOralFixtures(t, gateway, today)
	service := app.NewOralServiceWithClock(gateway, func() time.Time { return today })

	slots, err := service.ListAvailableSlots(context.Background())
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	var ids []string
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	want := []string{"slot-a", "slot-b", "slot-c"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestBookSlotUpdatesBothRecords(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2025, 8, 22, 12, 0, 0, 0, time.UTC)
	gateway := memory.NewGateway()
	seedOralFixtures(t, gateway, today)
	service := app.NewOralServiceWithClock(gateway, func() time.Time { return today })

	slot, submission, err := service.BookSlot(ctx, "sub-1", "slot-a")
	if err != nil {
		t.Fatalf("book slot: %v", err)
	}
	if !slot.IsBooked || slot.BookedBy != "sub-1" {
		t.Fatalf("slot not bound to submission: %+v", slot)
	}
	if submission.OralStatus != domain.OralBooked || submission.OralDate != slot.Date || submission.OralTime != slot.Time {
		t.Fatalf("submission not updated: %+v", submission)
	}

	storedSlot, _ := store.Get[domain.OralTestSlot](ctx, gateway, store.EntityOralSlots, "slot-a")
	if !storedSlot.IsBooked || storedSlot.BookedBy != "sub-1" {
		t.Fatalf("persisted slot not booked: %+v", storedSlot)
	}
	storedSub, _ := store.Get[domain.PlacementSubmission](ctx, gateway, store.EntitySubmissions, "sub-1")
	if storedSub.OralStatus != domain.OralBooked {
		t.Fatalf("persisted submission status %s, want booked", storedSub.OralStatus)
	}
}

func TestBookSlotConflictLeavesFirstBookingIntact(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2025, 8, 22, 12, 0, 0, 0, time.UTC)
	gateway := memory.NewGateway()
	seedOralFixtures(t, gateway, today)
	_ = gateway.Create(ctx, store.EntitySubmissions, domain.PlacementSubmission{
		ID: "sub-2", FullName: "Second User", Phone: "5550000", OralStatus: domain.OralNone,
	})
	service := app.NewOralServiceWithClock(gateway, func() time.Time { return today })

	if _, _, err := service.BookSlot(ctx, "sub-1", "slot-a"); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, _, err := service.BookSlot(ctx, "sub-2", "slot-a"); !errors.Is(err, domain.ErrSlotAlreadyBooked) {
		t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
	}

	slot, _ := store.Get[domain.OralTestSlot](ctx, gateway, store.EntityOralSlots, "slot-a")
	if slot.BookedBy != "sub-1" {
		t.Fatalf("first booking lost: %+v", slot)
	}
}

func TestBookSlotTwoPhaseRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2025, 8, 22, 12, 0, 0, 0, time.UTC)
	inner := memory.NewGateway()
	seedOralFixtures(t, inner, today)
	// plainGateway hides the atomic capabilities, forcing the two-phase path;
	// the second update (the submission) fails once.
	gateway := &plainGateway{inner: inner, failOn: string(store.EntitySubmissions)}
	service := app.NewOralServiceWithClock(gateway, func() time.Time { return today })

	if _, _, err := service.BookSlot(ctx, "sub-1", "slot-a"); err == nil {
		t.Fatalf("expected booking to fail")
	}

	// The slot must have been released again.
	slot, err := store.Get[domain.OralTestSlot](ctx, inner, store.EntityOralSlots, "slot-a")
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if slot.IsBooked || slot.BookedBy != "" {
		t.Fatalf("slot left half-booked after rollback: %+v", slot)
	}
}

func TestCompleteOralTestTransitions(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2025, 8, 22, 12, 0, 0, 0, time.UTC)
	gateway := memory.NewGateway()
	seedOralFixtures(t, gateway, today)
	service := app.NewOralServiceWithClock(gateway, func() time.Time { return today })

	// none -> completed is out of order.
	if _, err := service.CompleteOralTest(ctx, "sub-1", 85); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from none, got %v", err)
	}

	if _, _, err := service.BookSlot(ctx, "sub-1", "slot-a"); err != nil {
		t.Fatalf("book slot: %v", err)
	}
	submission, err := service.CompleteOralTest(ctx, "sub-1", 85)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if submission.OralStatus != domain.OralCompleted || submission.OralScore == nil || *submission.OralScore != 85 {
		t.Fatalf("unexpected submission after completion: %+v", submission)
	}

	// completed -> completed is also out of order.
	if _, err := service.CompleteOralTest(ctx, "sub-1", 90); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from completed, got %v", err)
	}
}

// plainGateway exposes only the generic CRUD surface (no capability
// interfaces) and can fail updates for one entity to exercise rollback.
type plainGateway struct {
	inner  store.Gateway
	failOn string
}

func (g *plainGateway) Create(ctx context.Context, entity store.Entity, record any) error {
	return g.inner.Create(ctx, entity, record)
}

func (g *plainGateway) GetByID(ctx context.Context, entity store.Entity, id string, dst any) error {
	return g.inner.GetByID(ctx, entity, id, dst)
}

func (g *plainGateway) Query(ctx context.Context, entity store.Entity, q store.Query, dst any) error {
	return g.inner.Query(ctx, entity, q, dst)
}

func (g *plainGateway) Update(ctx context.Context, entity store.Entity, id string, patch map[string]any) error {
	if g.failOn == string(entity) {
		g.failOn = ""
		return fmt.Errorf("simulated outage: %w", domain.ErrTransient)
	}
	return g.inner.Update(ctx, entity, id, patch)
}

func (g *plainGateway) Delete(ctx context.Context, entity store.Entity, id string) error {
	return g.inner.Delete(ctx, entity, id)
}
