package ports

import (
	"context"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/knowledge"
)

// KnowledgeSource reads the raw knowledge records. Malformed records are
// the loader's concern; an error here means the source itself is unreadable.
type KnowledgeSource interface {
	LoadDirect(ctx context.Context) ([]knowledge.DirectRecord, error)
	LoadInstructions(ctx context.Context) ([]knowledge.InstructionRecord, error)
}

// BlobStore persists whole documents by key. Get returns domain.ErrNotFound
// for a key that was never written.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// AnswerGenerator produces free text for a question. context may be empty.
type AnswerGenerator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// FeedbackPublisher announces persisted feedback.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, event domain.FeedbackEvent) error
}

// FeedbackSubscriber consumes announced feedback.
type FeedbackSubscriber interface {
	SubscribeFeedback(ctx context.Context, handler func(context.Context, domain.FeedbackEvent) error) error
}

// FeedbackArchive stores feedback events for offline analysis.
type FeedbackArchive interface {
	ArchiveFeedback(ctx context.Context, event domain.FeedbackEvent) error
}

// EngineMetrics receives engine-level observations.
type EngineMetrics interface {
	ObserveSearch(method domain.Method, seconds float64)
	ObserveGeneration(status string)
	ObserveFeedback(kind domain.FeedbackKind)
	ObserveRebuild(seconds float64, corpus domain.CorpusStats)
}
