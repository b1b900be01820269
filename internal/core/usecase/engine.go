package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/knowledge"
	"github.com/kirillkom/campus-assistant/internal/core/lexical"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

// LexicalSearcher is satisfied by *lexical.Index.
type LexicalSearcher interface {
	Query(text string) domain.SearchResult
	Len() int
}

// InstructionSearcher is satisfied by *InstructionMatcher.
type InstructionSearcher interface {
	Match(text string) domain.SearchResult
	Len() int
}

// Corpus is one immutable generation of the served knowledge. A query holds
// on to a single Corpus for its whole decision.
type Corpus struct {
	Lexical      LexicalSearcher
	Instructions InstructionSearcher
	Stats        domain.CorpusStats
	BuiltAt      time.Time
}

// AnalyzedItems counts indexed questions plus instruction pairs.
func (c *Corpus) AnalyzedItems() int {
	return c.Lexical.Len() + c.Instructions.Len()
}

type CorpusProvider interface {
	Corpus() *Corpus
}

type RebuildReport struct {
	Before   domain.CorpusStats
	After    domain.CorpusStats
	Duration time.Duration
}

// Removed is how many items and pairs the rebuild dropped from service.
func (r RebuildReport) Removed() int {
	before := r.Before.AvailableItems + r.Before.InstructionPairs
	after := r.After.AvailableItems + r.After.InstructionPairs
	return max(0, before-after)
}

// Engine owns the served corpus. Queries read the current generation under
// a shared lock; rebuilds assemble the next generation off-lock and swap it
// in under the exclusive lock. Rebuilds never run concurrently.
type Engine struct {
	source    ports.KnowledgeSource
	loader    *knowledge.Loader
	tokenizer lexical.Tokenizer
	opts      lexical.Options
	metrics   ports.EngineMetrics

	mu     sync.RWMutex
	corpus *Corpus
	index  *lexical.Index

	// guarded by rebuildMu
	rebuildMu    sync.Mutex
	direct       []knowledge.DirectRecord
	instructions []knowledge.InstructionRecord
	blocked      []domain.BlockedAnswer
}

func NewEngine(
	source ports.KnowledgeSource,
	loader *knowledge.Loader,
	tokenizer lexical.Tokenizer,
	opts lexical.Options,
	metrics ports.EngineMetrics,
) *Engine {
	return &Engine{
		source:    source,
		loader:    loader,
		tokenizer: tokenizer,
		opts:      opts,
		metrics:   metrics,
		corpus: &Corpus{
			Lexical:      (*lexical.Index)(nil),
			Instructions: (*InstructionMatcher)(nil),
		},
	}
}

func (e *Engine) Corpus() *Corpus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.corpus
}

// ExportIndex writes the current lexical index snapshot.
func (e *Engine) ExportIndex(w io.Writer) error {
	e.mu.RLock()
	idx := e.index
	e.mu.RUnlock()
	if idx == nil {
		return errors.New("index has not been built")
	}
	return idx.Encode(w)
}

// Reload re-reads the knowledge source and rebuilds with the current
// blocklist.
func (e *Engine) Reload(ctx context.Context) error {
	if e.source == nil {
		return errors.New("knowledge source is not configured")
	}
	direct, err := e.source.LoadDirect(ctx)
	if err != nil {
		return fmt.Errorf("load direct records: %w", err)
	}
	instructions, err := e.source.LoadInstructions(ctx)
	if err != nil {
		return fmt.Errorf("load instruction records: %w", err)
	}

	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	e.direct = direct
	e.instructions = instructions
	_, err = e.rebuildLocked(ctx)
	return err
}

// RestoreBlocklist replaces the blocklist without rebuilding. It is used at
// boot, before the first Reload.
func (e *Engine) RestoreBlocklist(entries []domain.BlockedAnswer) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	e.blocked = slices.Clone(entries)
}

func (e *Engine) Blocklist() []domain.BlockedAnswer {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	return slices.Clone(e.blocked)
}

// BlockAndRebuild adds entry to the blocklist and rebuilds synchronously.
// The entry stays on the blocklist even when the rebuild fails.
func (e *Engine) BlockAndRebuild(ctx context.Context, entry domain.BlockedAnswer) (RebuildReport, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	e.blocked = append(e.blocked, entry)
	return e.rebuildLocked(ctx)
}

func (e *Engine) rebuildLocked(ctx context.Context) (RebuildReport, error) {
	start := time.Now()
	res := e.loader.Load(e.direct, e.instructions, e.blocked)

	idx, err := lexical.Build(ctx, res.Items, e.tokenizer, e.opts)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("build lexical index: %w", err)
	}
	matcher, err := NewInstructionMatcher(ctx, res.Pairs, e.tokenizer)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("build instruction matcher: %w", err)
	}

	next := &Corpus{
		Lexical:      idx,
		Instructions: matcher,
		Stats: domain.CorpusStats{
			AvailableItems:    len(res.Items),
			TotalOriginalData: res.Total,
			InstructionPairs:  len(res.Pairs),
		},
		BuiltAt: time.Now().UTC(),
	}

	e.mu.Lock()
	prev := e.corpus
	e.corpus = next
	e.index = idx
	e.mu.Unlock()

	report := RebuildReport{Before: prev.Stats, After: next.Stats, Duration: time.Since(start)}
	if e.metrics != nil {
		e.metrics.ObserveRebuild(report.Duration.Seconds(), next.Stats)
	}
	slog.Info("index_rebuilt",
		"available_data", next.Stats.AvailableItems,
		"total_original_data", next.Stats.TotalOriginalData,
		"instruction_pairs", next.Stats.InstructionPairs,
		"vocabulary", idx.VocabularySize(),
		"skipped_direct", res.SkippedDirect,
		"skipped_instructions", res.SkippedInstructions,
		"blocked_items", res.BlockedItems,
		"blocked_pairs", res.BlockedPairs,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}
