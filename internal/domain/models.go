package domain

import "time"

// CEFRLevel is one of the six proficiency bands of the Common European
// Framework of Reference for Languages.
type CEFRLevel string

const (
	LevelA1 CEFRLevel = "A1"
	LevelA2 CEFRLevel = "A2"
	LevelB1 CEFRLevel = "B1"
	LevelB2 CEFRLevel = "B2"
	LevelC1 CEFRLevel = "C1"
	LevelC2 CEFRLevel = "C2"
)

// OralStatus tracks the follow-up oral interview of a placement submission.
// Transitions are one-directional: none -> booked -> completed.
type OralStatus string

const (
	OralNone      OralStatus = "none"
	OralBooked    OralStatus = "booked"
	OralCompleted OralStatus = "completed"
)

// PlacementQuestion is a weighted multiple-choice question of the written
// placement test. Immutable once a session has started.
type PlacementQuestion struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options" validate:"min=2"`
	CorrectIndex int      `json:"correctIndex"`
	Weight       float64  `json:"weight" validate:"gt=0"`
	IsActive     bool     `json:"isActive"`
}

// PlacementResult is the outcome of scoring one placement attempt.
type PlacementResult struct {
	RawPoints    float64 `json:"rawPoints"`
	MaxPoints    float64 `json:"maxPoints"`
	PercentScore int     `json:"percentScore"`
}

// PlacementSubmission is the durable record of a finished placement test.
// Written once at finalization; afterwards only the oral-test fields change.
type PlacementSubmission struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId"`
	FullName    string     `json:"fullName"`
	Phone       string     `json:"phone"`
	Score       int        `json:"score"`
	CEFRLevel   CEFRLevel  `json:"cefrLevel"`
	SubmittedAt time.Time  `json:"submittedAt"`
	OralStatus  OralStatus `json:"oralStatus"`
	OralDate    string     `json:"oralDate,omitempty"`
	OralTime    string     `json:"oralTime,omitempty"`
	OralScore   *int       `json:"oralScore,omitempty"`
}

// OralTestSlot is a bookable interview appointment. IsBooked and BookedBy
// change together or not at all.
type OralTestSlot struct {
	ID       string `json:"id"`
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HH:MM
	IsBooked bool   `json:"isBooked"`
	BookedBy string `json:"bookedBy,omitempty"`
}

// KahootQuestion is a timed four-option question of the live quiz.
type KahootQuestion struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	Options          []string `json:"options" validate:"len=4"`
	CorrectIndex     int      `json:"correctIndex" validate:"gte=0,lte=3"`
	TimeLimitSeconds int      `json:"timeLimitSeconds" validate:"gt=0"`
}

// KahootQuiz is an ordered question set playable by the public.
// At most one quiz is active system-wide at any time.
type KahootQuiz struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Questions []KahootQuestion `json:"questions" validate:"min=1,dive"`
	IsActive  bool             `json:"isActive"`
}

// TimeoutSentinel is the selected-index value recorded when a question's
// countdown reaches zero. It never matches a correct index.
const TimeoutSentinel = -1

// AnswerRecord captures how one live-quiz question was answered.
// SelectedIndex is TimeoutSentinel when the countdown expired unanswered.
type AnswerRecord struct {
	QuestionID       string `json:"questionId"`
	SelectedIndex    int    `json:"selectedIndex"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	IsCorrect        bool   `json:"isCorrect"`
}

// KahootPlayAttempt is the ephemeral state of one live play. It lives only in
// process memory and is converted into a KahootParticipant on completion;
// abandonment simply discards it.
type KahootPlayAttempt struct {
	QuizID               string         `json:"quizId"`
	PlayerName           string         `json:"playerName"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	Answers              []AnswerRecord `json:"answers"`
	RunningScore         int            `json:"runningScore"`
}

// KahootParticipant is the append-only completion record feeding the
// leaderboards. Never mutated after creation.
type KahootParticipant struct {
	ID               string    `json:"id"`
	QuizID           string    `json:"quizId"`
	Name             string    `json:"name"`
	Score            int       `json:"score"`
	CorrectAnswers   int       `json:"correctAnswers"`
	TotalQuestions   int       `json:"totalQuestions"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	CompletedAt      time.Time `json:"completedAt"`
}

// LeaderboardSize bounds both ranking windows.
const LeaderboardSize = 10

// Leaderboard is a derived view: two score-descending rankings capped at
// LeaderboardSize entries each.
type Leaderboard struct {
	Daily     []KahootParticipant `json:"daily"`
	AllTime   []KahootParticipant `json:"allTime"`
	UpdatedAt time.Time           `json:"updatedAt"`
}
