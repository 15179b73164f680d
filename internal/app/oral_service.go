package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"langcenter-quiz-service/internal/domain"
	"langcenter-quiz-service/internal/store"
)

// OralService books and completes follow-up oral interviews for placement
// submissions.
type OralService struct {
	gateway store.Gateway
	now     func() time.Time
}

func NewOralService(gateway store.Gateway) *OralService {
	return &OralService{gateway: gateway, now: time.Now}
}

// NewOralServiceWithClock is test-only for deterministic "today" boundaries.
func NewOralServiceWithClock(gateway store.Gateway, now func() time.Time) *OralService {
	return &OralService{gateway: gateway, now: now}
}

// ListAvailableSlots returns unbooked slots from today onward, ordered by
// date then time.
func (s *OralService) ListAvailableSlots(ctx context.Context) ([]domain.OralTestSlot, error) {
	today := s.now().Format("2006-01-02")
	slots, err := store.Find[domain.OralTestSlot](ctx, s.gateway, store.EntityOralSlots, store.Query{
		Filters: []store.Filter{
			{Field: "isBooked", Op: store.OpEq, Value: false},
			{Field: "date", Op: store.OpGte, Value: today},
		},
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].Time < slots[j].Time
	})
	return slots, nil
}

// BookSlot binds a slot to a submission: the slot becomes booked and the
// submission moves to the booked status carrying the slot's date and time.
// Both writes land or neither does. A slot already booked at commit time
// fails with domain.ErrSlotAlreadyBooked; the caller re-fetches and retries.
func (s *OralService) BookSlot(ctx context.Context, submissionID, slotID string) (domain.OralTestSlot, domain.PlacementSubmission, error) {
	slot, err := store.Get[domain.OralTestSlot](ctx, s.gateway, store.EntityOralSlots, slotID)
	if err != nil {
		return domain.OralTestSlot{}, domain.PlacementSubmission{}, err
	}
	if slot.IsBooked {
		return domain.OralTestSlot{}, domain.PlacementSubmission{}, domain.ErrSlotAlreadyBooked
	}

	submission, err := store.Get[domain.PlacementSubmission](ctx, s.gateway, store.EntitySubmissions, submissionID)
	if err != nil {
		return domain.OralTestSlot{}, domain.PlacementSubmission{}, err
	}
	if submission.OralStatus != domain.OralNone {
		return domain.OralTestSlot{}, domain.PlacementSubmission{}, domain.ErrInvalidTransition
	}

	if booker, ok := s.gateway.(store.SlotBooker); ok {
		if err := booker.BookSlot(ctx, slotID, submissionID, slot.Date, slot.Time); err != nil {
			return domain.OralTestSlot{}, domain.PlacementSubmission{}, err
		}
	} else if err := s.bookTwoPhase(ctx, slotID, submissionID, slot); err != nil {
		return domain.OralTestSlot{}, domain.PlacementSubmission{}, err
	}

	slot.IsBooked = true
	slot.BookedBy = submissionID
	submission.OralStatus = domain.OralBooked
	submission.OralDate = slot.Date
	submission.OralTime = slot.Time
	return slot, submission, nil
}

// bookTwoPhase is the fallback for gateways without an atomic booking
// capability: optimistic check-and-set on the slot, then the submission
// update, rolling the slot back if the second write fails.
func (s *OralService) bookTwoPhase(ctx context.Context, slotID, submissionID string, slot domain.OralTestSlot) error {
	err := s.gateway.Update(ctx, store.EntityOralSlots, slotID, map[string]any{
		"isBooked": true,
		"bookedBy": submissionID,
	})
	if err != nil {
		return err
	}

	err = s.gateway.Update(ctx, store.EntitySubmissions, submissionID, map[string]any{
		"oralStatus": string(domain.OralBooked),
		"oralDate":   slot.Date,
		"oralTime":   slot.Time,
	})
	if err != nil {
		// Release the slot so no partially-booked state stays observable.
		rollbackErr := s.gateway.Update(ctx, store.EntityOralSlots, slotID, map[string]any{
			"isBooked": false,
			"bookedBy": "",
		})
		if rollbackErr != nil {
			return fmt.Errorf("book slot rollback failed: %v: %w", rollbackErr, err)
		}
		return err
	}
	return nil
}

// CompleteOralTest records the interview score. Valid only from the booked
// status; anything else is an out-of-order transition.
func (s *OralService) CompleteOralTest(ctx context.Context, submissionID string, score int) (domain.PlacementSubmission, error) {
	submission, err := store.Get[domain.PlacementSubmission](ctx, s.gateway, store.EntitySubmissions, submissionID)
	if err != nil {
		return domain.PlacementSubmission{}, err
	}
	if submission.OralStatus != domain.OralBooked {
		return domain.PlacementSubmission{}, domain.ErrInvalidTransition
	}

	err = s.gateway.Update(ctx, store.EntitySubmissions, submissionID, map[string]any{
		"oralStatus": string(domain.OralCompleted),
		"oralScore":  score,
	})
	if err != nil {
		return domain.PlacementSubmission{}, err
	}

	submission.OralStatus = domain.OralCompleted
	submission.OralScore = &score
	return submission, nil
}
