package domain

import "errors"

var (
	// ErrNoQuestions is returned when a scoring run receives an empty
	// question set; the caller must guard, never score against zero weight.
	ErrNoQuestions = errors.New("question set is empty")
	// ErrInvalidState is returned when a session operation is attempted from
	// a state that does not permit it (e.g. answering after finalization).
	ErrInvalidState = errors.New("operation not allowed in current session state")
	// ErrInvalidTransition is returned when an oral-test status change is
	// attempted out of order.
	ErrInvalidTransition = errors.New("oral test status transition not allowed")
	// ErrSlotAlreadyBooked signals an optimistic-concurrency conflict on a
	// slot; the caller should re-fetch available slots and retry.
	ErrSlotAlreadyBooked = errors.New("oral test slot already booked")
	// ErrAlreadyAnswered is returned when a live-quiz question receives a
	// second answer; the first one stands.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoActiveQuiz indicates no quiz is currently activated for play.
	ErrNoActiveQuiz = errors.New("no active quiz")
	// ErrPlayNotFound is returned when a live play has ended or never existed.
	ErrPlayNotFound = errors.New("live play not found")
	// ErrNotFound indicates the requested record does not exist in the store.
	ErrNotFound = errors.New("record not found")
	// ErrTransient marks retry-safe persistence failures.
	ErrTransient = errors.New("transient persistence failure")
	// ErrPermission marks persistence failures that retrying cannot fix.
	ErrPermission = errors.New("permission denied by persistence layer")
)
