package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

const (
	HighConfidence   = 0.70
	MediumConfidence = 0.25

	// contextFloor is the score a retriever needs for its answer to be
	// passed to generation as context.
	contextFloor = 0.10

	blendBoost        = 0.20
	primaryConfidence = 0.80
)

const (
	OfflineGuidance   = "I found some information but I'm not fully confident about the answer. Please rephrase your question or ask about specific topics like admissions, fees, programs, or facilities at Green University."
	SearchErrorAnswer = "An error occurred during search. Please try again."
)

const (
	GenerationOK      = "ok"
	GenerationTimeout = "timeout"
	GenerationError   = "error"
)

type SearchOptions struct {
	Offline           bool
	GenerationTimeout time.Duration
}

// SearchUseCase arbitrates between the lexical index, the instruction
// matcher and the generator.
type SearchUseCase struct {
	corpus    CorpusProvider
	generator ports.AnswerGenerator
	opts      SearchOptions
	metrics   ports.EngineMetrics
	now       func() time.Time
}

func NewSearchUseCase(
	corpus CorpusProvider,
	generator ports.AnswerGenerator,
	opts SearchOptions,
	metrics ports.EngineMetrics,
) *SearchUseCase {
	return &SearchUseCase{
		corpus:    corpus,
		generator: generator,
		opts:      opts,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Online reports whether generation is available to the arbiter.
func (uc *SearchUseCase) Online() bool {
	return !uc.opts.Offline && uc.generator != nil
}

// Search never fails. A panic anywhere in the decision becomes a
// search_error outcome.
func (uc *SearchUseCase) Search(ctx context.Context, text string) (out domain.SearchOutcome) {
	start := uc.now()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "search_panic", "panic", fmt.Sprint(r))
			out = domain.SearchOutcome{
				Answer: SearchErrorAnswer,
				Method: domain.MethodSearchError,
				Source: domain.OutcomeSourceError,
			}
		}
		out.ProcessingTime = roundSeconds(uc.now().Sub(start))
		if uc.metrics != nil {
			uc.metrics.ObserveSearch(out.Method, uc.now().Sub(start).Seconds())
		}
		slog.DebugContext(ctx, "search_completed",
			"method", out.Method,
			"confidence", out.Confidence,
			"analyzed_items", out.AnalyzedItems,
		)
	}()
	return uc.decide(ctx, text)
}

func (uc *SearchUseCase) decide(ctx context.Context, text string) domain.SearchOutcome {
	corpus := uc.corpus.Corpus()
	instruction := corpus.Instructions.Match(text)
	indexed := corpus.Lexical.Query(text)

	best := indexed
	if instruction.Confidence > indexed.Confidence {
		best = instruction
	}

	out := domain.SearchOutcome{AnalyzedItems: corpus.AnalyzedItems()}
	switch {
	case best.Confidence >= HighConfidence:
		out.Answer = best.Answer
		out.Method = best.Method.HighConfidence()
		out.Confidence = best.Confidence
		out.Source = string(out.Method)
		return out

	case best.Confidence >= MediumConfidence:
		if uc.Online() {
			if answer, ok := uc.generate(ctx, text, blendContext(indexed, instruction)); ok {
				out.Answer = answer
				out.Method = domain.MethodEnhancedMultiSource
				out.Confidence = math.Min(best.Confidence+blendBoost, 1)
				out.Source = domain.OutcomeSourceMultiSourceHybrid
				return out
			}
		}
		out.Answer = best.Answer
		out.Method = domain.MethodMediumConfidenceOffline
		out.Confidence = best.Confidence
		out.Source = domain.OutcomeSourceMediumOffline
		return out

	default:
		if uc.Online() {
			if answer, ok := uc.generate(ctx, text, ""); ok {
				out.Answer = answer
				out.Method = domain.MethodLlamaPrimary
				out.Confidence = primaryConfidence
				out.Source = domain.OutcomeSourceLlamaFallback
				return out
			}
		}
		out.Answer = OfflineGuidance
		out.Method = domain.MethodEnhancedOfflineFallback
		out.Confidence = best.Confidence
		out.Source = domain.OutcomeSourceFallback
		return out
	}
}

func blendContext(indexed, instruction domain.SearchResult) string {
	parts := make([]string, 0, 2)
	if indexed.Confidence > contextFloor {
		parts = append(parts, "JSON Data: "+indexed.Answer)
	}
	if instruction.Confidence > contextFloor {
		parts = append(parts, "Instruction Data: "+instruction.Answer)
	}
	return strings.Join(parts, "\n")
}

type generation struct {
	answer string
	err    error
}

// generate bounds the generator call by the configured timeout. A generator
// that ignores its context is abandoned when the deadline passes.
func (uc *SearchUseCase) generate(ctx context.Context, question, kbContext string) (string, bool) {
	genCtx, cancel := uc.generationContext(ctx)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{err: fmt.Errorf("generator panic: %v", r)}
			}
		}()
		answer, err := uc.generator.Generate(genCtx, question, kbContext)
		done <- generation{answer: answer, err: err}
	}()

	var res generation
	select {
	case res = <-done:
	case <-genCtx.Done():
		res.err = genCtx.Err()
	}
	if res.err == nil && strings.TrimSpace(res.answer) == "" {
		res.err = errors.New("generator returned an empty answer")
	}

	status := GenerationOK
	switch {
	case res.err == nil:
	case errors.Is(res.err, context.DeadlineExceeded):
		status = GenerationTimeout
	default:
		status = GenerationError
	}
	if uc.metrics != nil {
		uc.metrics.ObserveGeneration(status)
	}
	if res.err != nil {
		slog.WarnContext(ctx, "generation_unavailable", "status", status, "error", res.err)
		return "", false
	}
	return res.answer, true
}

func (uc *SearchUseCase) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.opts.GenerationTimeout > 0 {
		return context.WithTimeout(ctx, uc.opts.GenerationTimeout)
	}
	return context.WithCancel(ctx)
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
