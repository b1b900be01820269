// Package textnorm turns free text into the deterministic token form shared
// by index builds and queries.
package textnorm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/panjf2000/ants/v2"
)

const (
	maxLemmaPasses = 4
	batchSize      = 256
)

// Lemmatizer maps a word to its dictionary base form. Unknown words are
// returned unchanged.
type Lemmatizer interface {
	Lemma(word string) string
}

type Normalizer struct {
	lemmatizer Lemmatizer
	stopWords  map[string]struct{}
	workers    int
}

// New builds a Normalizer backed by the golem English dictionary.
func New(extraStopWords []string, workers int) (*Normalizer, error) {
	lemmatizer, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load english lemmatizer: %w", err)
	}
	return NewWithLemmatizer(lemmatizer, extraStopWords, workers), nil
}

// NewWithLemmatizer is used by tests and by callers that bring their own
// dictionary. A nil lemmatizer leaves tokens as they are.
func NewWithLemmatizer(lemmatizer Lemmatizer, extraStopWords []string, workers int) *Normalizer {
	stop := make(map[string]struct{}, len(englishStopWords)+len(domainStopWords)+len(extraStopWords))
	for _, group := range [][]string{englishStopWords, domainStopWords, extraStopWords} {
		for _, w := range group {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				stop[w] = struct{}{}
			}
		}
	}
	if workers <= 0 {
		workers = 1
	}
	return &Normalizer{
		lemmatizer: lemmatizer,
		stopWords:  stop,
		workers:    workers,
	}
}

// Normalize returns the space-joined token form of text.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokens lower-cases text, strips everything but letters, digits and
// whitespace, drops stop words and lemmatizes what is left.
func (n *Normalizer) Tokens(text string) []string {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	fields := strings.Fields(b.String())
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if n.isStopWord(field) {
			continue
		}
		lemma := n.lemma(field)
		if n.isStopWord(lemma) {
			continue
		}
		out = append(out, lemma)
	}
	return out
}

// TokenizeAll tokenizes texts on a worker pool. The result is index-aligned
// with texts.
func (n *Normalizer) TokenizeAll(ctx context.Context, texts []string) ([][]string, error) {
	out := make([][]string, len(texts))
	if n.workers <= 1 || len(texts) <= batchSize {
		for i, text := range texts {
			out[i] = n.Tokens(text)
		}
		return out, nil
	}

	pool, err := ants.NewPool(n.workers)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		from, to := start, min(start+batchSize, len(texts))
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			for i := from; i < to; i++ {
				out[i] = n.Tokens(texts[i])
			}
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit tokenizer batch: %w", submitErr)
		}
	}
	wg.Wait()
	return out, nil
}

func (n *Normalizer) isStopWord(token string) bool {
	_, ok := n.stopWords[token]
	return ok
}

// lemma follows the dictionary to a fixed point so that normalizing an
// already normalized string is a no-op.
func (n *Normalizer) lemma(token string) string {
	if n.lemmatizer == nil {
		return token
	}
	current := token
	for i := 0; i < maxLemmaPasses; i++ {
		next := cleanLemma(n.lemmatizer.Lemma(current))
		if next == "" || next == current {
			return current
		}
		current = next
	}
	return current
}

// cleanLemma rejects dictionary forms that would not survive another
// normalization pass unchanged (multi-word or punctuated lemmas).
func cleanLemma(lemma string) string {
	lemma = strings.ToLower(lemma)
	for _, r := range lemma {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return ""
		}
	}
	return lemma
}
