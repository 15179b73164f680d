package app

import (
	"errors"
	"testing"
	"time"

	"langcenter-quiz-service/internal/domain"
)

func fastPlayConfig() PlayConfig {
	return PlayConfig{TickInterval: 5 * time.Millisecond, RevealDelay: 5 * time.Millisecond}
}

func twoQuestionQuiz() domain.KahootQuiz {
	return domain.KahootQuiz{
		ID:       "quiz-1",
		Title:    "Trivia",
		IsActive: true,
		Questions: []domain.KahootQuestion{
			{ID: "q1", Question: "first", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1, TimeLimitSeconds: 30},
			{ID: "q2", Question: "second", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2, TimeLimitSeconds: 30},
		},
	}
}

func waitForEvent(t *testing.T, ch <-chan PlayEvent, eventType string) PlayEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %q", eventType)
			}
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func TestLivePlayAnswerRevealAdvanceResult(t *testing.T) {
	play := newLivePlay("play-1", twoQuestionQuiz(), "Alice", fastPlayConfig())
	ch, cancel := play.Subscribe()
	defer cancel()
	play.Begin()

	first := waitForEvent(t, ch, "question")
	if first.QuestionIndex != 0 || first.TotalQuestions != 2 {
		t.Fatalf("unexpected first question event: %+v", first)
	}

	if err := play.Answer(1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	reveal := waitForEvent(t, ch, "reveal")
	if !reveal.Correct || reveal.Awarded < 1000 || reveal.Awarded > 1500 {
		t.Fatalf("unexpected reveal: %+v", reveal)
	}

	second := waitForEvent(t, ch, "question")
	if second.QuestionIndex != 1 {
		t.Fatalf("expected advance to question 1, got %+v", second)
	}
	if second.TimeLeft != 30 {
		t.Fatalf("time left should reset to the question limit, got %d", second.TimeLeft)
	}

	if err := play.Answer(0); err != nil { // wrong
		t.Fatalf("answer: %v", err)
	}
	result := waitForEvent(t, ch, "result")
	if result.Attempt == nil {
		t.Fatalf("result event missing attempt")
	}
	if got := len(result.Attempt.Answers); got != 2 {
		t.Fatalf("expected 2 recorded answers, got %d", got)
	}
	if result.Attempt.RunningScore != reveal.RunningScore {
		t.Fatalf("final score %d != score after only correct answer %d", result.Attempt.RunningScore, reveal.RunningScore)
	}
	if play.Phase() != PhaseResult {
		t.Fatalf("expected result phase, got %s", play.Phase())
	}
}

func TestLivePlayTimeoutAutoSubmitsSentinel(t *testing.T) {
	quiz := twoQuestionQuiz()
	quiz.Questions = quiz.Questions[:1]
	quiz.Questions[0].TimeLimitSeconds = 2

	play := newLivePlay("play-1", quiz, "Alice", fastPlayConfig())
	ch, cancel := play.Subscribe()
	defer cancel()
	play.Begin()

	reveal := waitForEvent(t, ch, "reveal")
	if reveal.Correct || reveal.Awarded != 0 {
		t.Fatalf("timeout must score zero: %+v", reveal)
	}

	result := waitForEvent(t, ch, "result")
	if result.Attempt.Answers[0].SelectedIndex != domain.TimeoutSentinel {
		t.Fatalf("expected sentinel answer, got %+v", result.Attempt.Answers[0])
	}
	if result.Attempt.Answers[0].IsCorrect {
		t.Fatalf("sentinel answer marked correct")
	}
}

func TestLivePlayRejectsSecondAnswer(t *testing.T) {
	play := newLivePlay("play-1", twoQuestionQuiz(), "Alice", fastPlayConfig())
	play.Begin()

	if err := play.Answer(1); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	err := play.Answer(2)
	if !errors.Is(err, domain.ErrAlreadyAnswered) && !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second answer should be rejected, got %v", err)
	}

	attempt := play.Attempt()
	if len(attempt.Answers) != 1 || attempt.Answers[0].SelectedIndex != 1 {
		t.Fatalf("first answer must stand: %+v", attempt.Answers)
	}
}

func TestLivePlayRejectsOutOfRangeOption(t *testing.T) {
	play := newLivePlay("play-1", twoQuestionQuiz(), "Alice", fastPlayConfig())
	play.Begin()

	if err := play.Answer(4); err == nil {
		t.Fatalf("expected out-of-range option to fail")
	}
	if err := play.Answer(-1); err == nil {
		t.Fatalf("the sentinel is reserved for timeouts, not manual answers")
	}
}

func TestLivePlayAbandonClosesSubscribers(t *testing.T) {
	play := newLivePlay("play-1", twoQuestionQuiz(), "Alice", fastPlayConfig())
	ch, cancel := play.Subscribe()
	defer cancel()
	play.Begin()

	play.Abandon()
	if play.Phase() != PhaseAbandoned {
		t.Fatalf("expected abandoned phase, got %s", play.Phase())
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return // channel closed as expected
			}
		case <-deadline:
			t.Fatalf("subscriber channel not closed after abandon")
		}
	}
}
