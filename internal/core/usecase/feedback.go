package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

const (
	BlocklistKey   = "blocklist"
	FeedbackLogKey = "feedback"
)

type learningCounters struct {
	total    atomic.Int64
	likes    atomic.Int64
	dislikes atomic.Int64
	blocked  atomic.Int64
	improved atomic.Int64
}

func (c *learningCounters) snapshot() domain.LearningStats {
	return domain.LearningStats{
		TotalFeedback:     c.total.Load(),
		Likes:             c.likes.Load(),
		Dislikes:          c.dislikes.Load(),
		BlockedAnswers:    c.blocked.Load(),
		ImprovedResponses: c.improved.Load(),
	}
}

// FeedbackUseCase records likes and dislikes. A dislike blocks the answer
// text and rebuilds the corpus before the call returns.
type FeedbackUseCase struct {
	engine    *Engine
	store     ports.BlobStore
	publisher ports.FeedbackPublisher
	metrics   ports.EngineMetrics
	now       func() time.Time

	mu       sync.Mutex
	log      []domain.FeedbackRecord
	counters learningCounters
}

func NewFeedbackUseCase(
	engine *Engine,
	store ports.BlobStore,
	publisher ports.FeedbackPublisher,
	metrics ports.EngineMetrics,
) *FeedbackUseCase {
	return &FeedbackUseCase{
		engine:    engine,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Restore loads the persisted blocklist and feedback log. Missing documents
// are treated as empty. Counters are not restored.
func (uc *FeedbackUseCase) Restore(ctx context.Context) error {
	var blocked []domain.BlockedAnswer
	if err := uc.loadDocument(ctx, BlocklistKey, &blocked); err != nil {
		return err
	}
	var records []domain.FeedbackRecord
	if err := uc.loadDocument(ctx, FeedbackLogKey, &records); err != nil {
		return err
	}

	uc.mu.Lock()
	uc.log = records
	uc.mu.Unlock()
	uc.engine.RestoreBlocklist(blocked)
	return nil
}

func (uc *FeedbackUseCase) loadDocument(ctx context.Context, key string, out any) error {
	raw, err := uc.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "load "+key, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrPersistence, "decode "+key, err)
	}
	return nil
}

// Record appends a feedback record and persists both documents. Only a
// persistence failure is returned as an error; a failed rebuild keeps the
// previous corpus in service.
//
// On a persistence failure the log entry and counters are rolled back so a
// retry is not double counted. A dislike's block stays applied in memory.
func (uc *FeedbackUseCase) Record(ctx context.Context, question, answer string, kind domain.FeedbackKind) (domain.FeedbackReceipt, error) {
	if _, ok := domain.ParseFeedbackKind(string(kind)); !ok {
		return domain.FeedbackReceipt{}, domain.WrapError(domain.ErrInvalidInput, "record feedback", fmt.Errorf("unknown feedback kind %q", kind))
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	record := domain.FeedbackRecord{
		Timestamp: uc.now().UTC(),
		Question:  question,
		Answer:    answer,
		Kind:      kind,
	}
	uc.log = append(uc.log, record)

	blocked, improved := false, false
	if kind == domain.FeedbackDislike {
		blocked = true
		entry := domain.BlockedAnswer{
			AnswerText:     answer,
			OriginQuestion: question,
			Timestamp:      record.Timestamp,
			Permanent:      true,
		}
		report, err := uc.engine.BlockAndRebuild(context.WithoutCancel(ctx), entry)
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "rebuild_failed", "error", err)
		case report.Removed() > 0:
			improved = true
		}
	}

	blocklist := uc.engine.Blocklist()
	if err := uc.persist(ctx, blocklist); err != nil {
		uc.log = uc.log[:len(uc.log)-1]
		return domain.FeedbackReceipt{}, err
	}

	uc.counters.total.Add(1)
	if blocked {
		uc.counters.dislikes.Add(1)
		uc.counters.blocked.Add(1)
	} else {
		uc.counters.likes.Add(1)
	}
	if improved {
		uc.counters.improved.Add(1)
	}
	if uc.metrics != nil {
		uc.metrics.ObserveFeedback(kind)
	}

	receipt := domain.FeedbackReceipt{
		Stats:          uc.counters.snapshot(),
		BlockedAnswers: len(blocklist),
		TotalFeedback:  len(uc.log),
	}
	slog.InfoContext(ctx, "feedback_recorded",
		"feedback", kind,
		"blocked", blocked,
		"total_feedback", receipt.TotalFeedback,
		"blocked_answers", receipt.BlockedAnswers,
	)
	uc.publish(ctx, record, blocked)
	return receipt, nil
}

func (uc *FeedbackUseCase) persist(ctx context.Context, blocklist []domain.BlockedAnswer) error {
	if blocklist == nil {
		blocklist = []domain.BlockedAnswer{}
	}
	docs := []struct {
		key   string
		value any
	}{
		{BlocklistKey, blocklist},
		{FeedbackLogKey, uc.log},
	}
	for _, doc := range docs {
		raw, err := json.MarshalIndent(doc.value, "", "  ")
		if err != nil {
			return domain.WrapError(domain.ErrPersistence, "encode "+doc.key, err)
		}
		if err := uc.store.Put(ctx, doc.key, raw); err != nil {
			return domain.WrapError(domain.ErrPersistence, "save "+doc.key, err)
		}
	}
	return nil
}

func (uc *FeedbackUseCase) publish(ctx context.Context, record domain.FeedbackRecord, blocked bool) {
	if uc.publisher == nil {
		return
	}
	event := domain.FeedbackEvent{
		ID:         uuid.NewString(),
		Record:     record,
		Blocked:    blocked,
		ItemsAfter: uc.engine.Corpus().Stats.AvailableItems,
	}
	if err := uc.publisher.PublishFeedback(ctx, event); err != nil {
		slog.WarnContext(ctx, "feedback_publish_failed", "event_id", event.ID, "error", err)
	}
}

func (uc *FeedbackUseCase) Stats() domain.EngineStats {
	corpus := uc.engine.Corpus()
	return domain.EngineStats{
		LearningStats: uc.counters.snapshot(),
		CorpusStats:   corpus.Stats,
		IndexBuiltAt:  corpus.BuiltAt,
	}
}
