package domain

import "time"

type FeedbackKind string

const (
	FeedbackLike    FeedbackKind = "like"
	FeedbackDislike FeedbackKind = "dislike"
)

func ParseFeedbackKind(raw string) (FeedbackKind, bool) {
	switch FeedbackKind(raw) {
	case FeedbackLike:
		return FeedbackLike, true
	case FeedbackDislike:
		return FeedbackDislike, true
	default:
		return "", false
	}
}

// BlockedAnswer is keyed by the answer text itself: every item whose answer
// equals AnswerText is excluded from all later index builds.
type BlockedAnswer struct {
	AnswerText     string    `json:"answer"`
	OriginQuestion string    `json:"question"`
	Timestamp      time.Time `json:"timestamp"`
	Permanent      bool      `json:"blocked_permanently"`
}

type FeedbackRecord struct {
	Timestamp time.Time    `json:"timestamp"`
	Question  string       `json:"question"`
	Answer    string       `json:"answer"`
	Kind      FeedbackKind `json:"feedback"`
}

type LearningStats struct {
	TotalFeedback     int64 `json:"total_feedback"`
	Likes             int64 `json:"likes"`
	Dislikes          int64 `json:"dislikes"`
	BlockedAnswers    int64 `json:"blocked_answers"`
	ImprovedResponses int64 `json:"improved_responses"`
}

// FeedbackEvent is published after a feedback record has been persisted.
type FeedbackEvent struct {
	ID         string         `json:"id"`
	Record     FeedbackRecord `json:"record"`
	Blocked    bool           `json:"blocked"`
	ItemsAfter int            `json:"items_after"`
}

// FeedbackReceipt is returned after a feedback call has been persisted.
type FeedbackReceipt struct {
	Stats          LearningStats `json:"learning_stats"`
	BlockedAnswers int           `json:"blocked_answers"`
	TotalFeedback  int           `json:"total_feedback"`
}

// EngineStats flattens learning counters and corpus sizes into one document.
// IndexBuiltAt is zero until the first build.
type EngineStats struct {
	LearningStats
	CorpusStats
	IndexBuiltAt time.Time `json:"index_built_at,omitzero"`
}
