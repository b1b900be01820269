package ports

import (
	"context"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// SearchService answers a free-text query. It never fails; every fault is
// reported through the outcome's method.
type SearchService interface {
	Search(ctx context.Context, text string) domain.SearchOutcome
}

// FeedbackService records user feedback and applies it to the corpus.
type FeedbackService interface {
	Record(ctx context.Context, question, answer string, kind domain.FeedbackKind) (domain.FeedbackReceipt, error)
}

// StatsReader exposes learning counters together with corpus sizes.
type StatsReader interface {
	Stats() domain.EngineStats
}

// CorpusReloader re-reads knowledge sources and rebuilds the index.
type CorpusReloader interface {
	Reload(ctx context.Context) error
}
