package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/lexical"
)

type tokenizedPair struct {
	pair   domain.InstructionPair
	tokens map[string]struct{}
}

// InstructionMatcher scores a query against instruction texts by token
// overlap. Instruction tokens are computed once, when the matcher is built.
type InstructionMatcher struct {
	tokenizer lexical.Tokenizer
	pairs     []tokenizedPair
}

func NewInstructionMatcher(ctx context.Context, pairs []domain.InstructionPair, tokenizer lexical.Tokenizer) (*InstructionMatcher, error) {
	if tokenizer == nil {
		return nil, errors.New("instruction matcher: tokenizer is nil")
	}
	texts := make([]string, len(pairs))
	for i, p := range pairs {
		texts[i] = p.Instruction
	}
	tokens, err := tokenizer.TokenizeAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("tokenize instructions: %w", err)
	}

	m := &InstructionMatcher{
		tokenizer: tokenizer,
		pairs:     make([]tokenizedPair, len(pairs)),
	}
	for i, p := range pairs {
		m.pairs[i] = tokenizedPair{pair: p, tokens: tokenSet(tokens[i])}
	}
	return m, nil
}

func (m *InstructionMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Match returns the pair with the highest overlap
// |Q ∩ I| / max(|Q|, |I|). The first pair wins on equal scores.
func (m *InstructionMatcher) Match(text string) domain.SearchResult {
	if m.Len() == 0 {
		return domain.SearchResult{Method: domain.MethodNoInstructionData}
	}

	best := domain.SearchResult{Method: domain.MethodNoMatch}
	query := tokenSet(m.tokenizer.Tokens(text))
	if len(query) == 0 {
		return best
	}
	for _, p := range m.pairs {
		if len(p.tokens) == 0 {
			continue
		}
		score := overlap(query, p.tokens)
		if score > best.Confidence {
			best = domain.SearchResult{
				Answer:      p.pair.Output,
				Confidence:  score,
				Method:      domain.MethodInstructionMatch,
				Instruction: p.pair.Instruction,
			}
		}
	}
	return best
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(large))
}
