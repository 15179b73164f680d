package app

import (
	"math"

	"langcenter-quiz-service/internal/domain"
)

// ComputeScore grades a set of recorded answers against the full question
// set. Unanswered questions score zero but still contribute their weight to
// the maximum, so skipping never inflates the percentage. An empty question
// set is a caller bug and returns domain.ErrNoQuestions rather than a silent
// zero score.
func ComputeScore(questions []domain.PlacementQuestion, answers map[string]int) (domain.PlacementResult, error) {
	if len(questions) == 0 {
		return domain.PlacementResult{}, domain.ErrNoQuestions
	}

	var raw, max float64
	for _, q := range questions {
		max += q.Weight
		if selected, ok := answers[q.ID]; ok && selected == q.CorrectIndex {
			raw += q.Weight
		}
	}

	return domain.PlacementResult{
		RawPoints:    raw,
		MaxPoints:    max,
		PercentScore: int(math.Round(100 * raw / max)),
	}, nil
}

// ClassifyCEFR maps a percentage score to a CEFR band. Thresholds are
// inclusive lower bounds, checked highest first.
func ClassifyCEFR(percent int) domain.CEFRLevel {
	switch {
	case percent >= 90:
		return domain.LevelC2
	case percent >= 80:
		return domain.LevelC1
	case percent >= 65:
		return domain.LevelB2
	case percent >= 50:
		return domain.LevelB1
	case percent >= 30:
		return domain.LevelA2
	default:
		return domain.LevelA1
	}
}
