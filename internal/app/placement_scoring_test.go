package app

import (
	"errors"
	"fmt"
	"testing"

	"langcenter-quiz-service/internal/domain"
)

func TestComputeScoreWeighted(t *testing.T) {
	questions := []domain.PlacementQuestion{
		{ID: "q1", CorrectIndex: 0, Weight: 1},
		{ID: "q2", CorrectIndex: 1, Weight: 2},
		{ID: "q3", CorrectIndex: 2, Weight: 1},
	}
	result, err := ComputeScore(questions, map[string]int{
		"q1": 0, // correct
		"q2": 0, // wrong
		// q3 unanswered
	})
	if err != nil {
		t.Fatalf("compute score: %v", err)
	}
	if result.RawPoints != 1 || result.MaxPoints != 4 {
		t.Fatalf("expected 1/4 points, got %v/%v", result.RawPoints, result.MaxPoints)
	}
	if result.PercentScore != 25 {
		t.Fatalf("expected 25%%, got %d", result.PercentScore)
	}
}

func TestComputeScoreEmptyQuestionSet(t *testing.T) {
	_, err := ComputeScore(nil, map[string]int{})
	if !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestComputeScoreMonotonic(t *testing.T) {
	questions := make([]domain.PlacementQuestion, 6)
	for i := range questions {
		questions[i] = domain.PlacementQuestion{
			ID:           fmt.Sprintf("q%d", i),
			CorrectIndex: 1,
			Weight:       float64(i%3 + 1),
		}
	}

	answers := map[string]int{}
	previous := 0
	for i := range questions {
		answers[questions[i].ID] = 1
		result, err := ComputeScore(questions, answers)
		if err != nil {
			t.Fatalf("compute score: %v", err)
		}
		if result.PercentScore < previous {
			t.Fatalf("adding a correct answer dropped score from %d to %d", previous, result.PercentScore)
		}
		previous = result.PercentScore
	}
	if previous != 100 {
		t.Fatalf("all correct should be 100%%, got %d", previous)
	}
}

func TestClassifyCEFRBoundaries(t *testing.T) {
	cases := []struct {
		percent int
		want    domain.CEFRLevel
	}{
		{100, domain.LevelC2},
		{90, domain.LevelC2},
		{89, domain.LevelC1},
		{80, domain.LevelC1},
		{79, domain.LevelB2},
		{65, domain.LevelB2},
		{64, domain.LevelB1},
		{50, domain.LevelB1},
		{49, domain.LevelA2},
		{30, domain.LevelA2},
		{29, domain.LevelA1},
		{0, domain.LevelA1},
	}
	for _, tc := range cases {
		if got := ClassifyCEFR(tc.percent); got != tc.want {
			t.Errorf("ClassifyCEFR(%d) = %s, want %s", tc.percent, got, tc.want)
		}
	}
}

func TestPlacementScenarioFourOfFive(t *testing.T) {
	questions := make([]domain.PlacementQuestion, 5)
	answers := map[string]int{}
	for i := range questions {
		questions[i] = domain.PlacementQuestion{ID: fmt.Sprintf("q%d", i), CorrectIndex: 0, Weight: 1}
		answers[questions[i].ID] = 0
	}
	answers["q4"] = 1 // one wrong

	result, err := ComputeScore(questions, answers)
	if err != nil {
		t.Fatalf("compute score: %v", err)
	}
	if result.PercentScore != 80 {
		t.Fatalf("expected 80%%, got %d", result.PercentScore)
	}
	if level := ClassifyCEFR(result.PercentScore); level != domain.LevelC1 {
		t.Fatalf("expected C1, got %s", level)
	}
}
