package app

import "langcenter-quiz-service/internal/domain"

const (
	baseAnswerPoints = 1000
	maxSpeedBonus    = 500
)

// ScoreAnswer computes the points for one live-quiz answer. Wrong answers and
// the timeout sentinel score zero; a correct answer earns the base plus a
// speed bonus proportional to the time left, so the result is always within
// [1000, 1500] and never decreases as more time remains.
func ScoreAnswer(question domain.KahootQuestion, selectedIndex, timeLeftSeconds int) int {
	if selectedIndex != question.CorrectIndex {
		return 0
	}
	if timeLeftSeconds < 0 {
		timeLeftSeconds = 0
	}
	if timeLeftSeconds > question.TimeLimitSeconds {
		timeLeftSeconds = question.TimeLimitSeconds
	}
	bonus := timeLeftSeconds * maxSpeedBonus / question.TimeLimitSeconds
	return baseAnswerPoints + bonus
}
