// Package lexical implements the TF-IDF question index. An Index is
// immutable once built; rebuilding means building a new one.
package lexical

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

const (
	DefaultMinNGram    = 1
	DefaultMaxNGram    = 3
	DefaultMaxFeatures = 10000
	DefaultMinDF       = 1
	DefaultMaxDF       = 0.95
	MatchThreshold     = 0.25

	minTokenRunes = 2
)

// Tokenizer is satisfied by textnorm.Normalizer.
type Tokenizer interface {
	Tokens(text string) []string
	TokenizeAll(ctx context.Context, texts []string) ([][]string, error)
}

type Options struct {
	MinNGram    int     `json:"min_ngram"`
	MaxNGram    int     `json:"max_ngram"`
	MaxFeatures int     `json:"max_features"`
	MinDF       int     `json:"min_df"`
	MaxDF       float64 `json:"max_df"`
	Threshold   float64 `json:"threshold"`
}

func DefaultOptions() Options {
	return Options{
		MinNGram:    DefaultMinNGram,
		MaxNGram:    DefaultMaxNGram,
		MaxFeatures: DefaultMaxFeatures,
		MinDF:       DefaultMinDF,
		MaxDF:       DefaultMaxDF,
		Threshold:   MatchThreshold,
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.MinNGram <= 0 {
		o.MinNGram = def.MinNGram
	}
	if o.MaxNGram < o.MinNGram {
		o.MaxNGram = o.MinNGram
	}
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = def.MaxFeatures
	}
	if o.MinDF <= 0 {
		o.MinDF = def.MinDF
	}
	if o.MaxDF <= 0 || o.MaxDF > 1 {
		o.MaxDF = def.MaxDF
	}
	if o.Threshold <= 0 {
		o.Threshold = def.Threshold
	}
	return o
}

// Accepts reports whether score clears the match threshold (inclusive).
func (o Options) Accepts(score float64) bool {
	return score >= o.Threshold
}

type sparseRow struct {
	Indices []int     `json:"i"`
	Values  []float64 `json:"v"`
}

type posting struct {
	doc    int
	weight float64
}

type Index struct {
	opts      Options
	tokenizer Tokenizer

	vocabulary map[string]int
	terms      []string
	idf        []float64
	rows       []sparseRow
	postings   [][]posting
	answers    []string
}

// Build computes vocabulary and weights from scratch over the questions of
// items. An empty item set yields an index that answers no_data.
func Build(ctx context.Context, items []domain.KnowledgeItem, tokenizer Tokenizer, opts Options) (*Index, error) {
	if tokenizer == nil {
		return nil, errors.New("lexical: tokenizer is nil")
	}
	opts = opts.normalize()
	idx := &Index{
		opts:       opts,
		tokenizer:  tokenizer,
		vocabulary: map[string]int{},
	}
	if len(items) == 0 {
		return idx, nil
	}

	questions := make([]string, len(items))
	idx.answers = make([]string, len(items))
	for i, item := range items {
		questions[i] = item.Question
		idx.answers[i] = item.Answer
	}

	tokens, err := tokenizer.TokenizeAll(ctx, questions)
	if err != nil {
		return nil, fmt.Errorf("tokenize questions: %w", err)
	}

	docTF := make([]map[string]int, len(tokens))
	df := make(map[string]int)
	corpusTF := make(map[string]int)
	for i, docTokens := range tokens {
		tf := termCounts(docTokens, opts)
		docTF[i] = tf
		for term, count := range tf {
			df[term]++
			corpusTF[term] += count
		}
	}

	idx.terms = selectVocabulary(df, corpusTF, len(items), opts)
	idx.idf = make([]float64, len(idx.terms))
	n := float64(len(items))
	for id, term := range idx.terms {
		idx.vocabulary[term] = id
		idx.idf[id] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	idx.rows = make([]sparseRow, len(items))
	for i, tf := range docTF {
		idx.rows[i] = idx.weigh(tf)
	}
	idx.buildPostings()
	return idx, nil
}

// selectVocabulary applies the document-frequency window and the feature
// cap, then orders the survivors lexicographically.
func selectVocabulary(df, corpusTF map[string]int, docs int, opts Options) []string {
	maxDocs := math.Max(1, opts.MaxDF*float64(docs))
	kept := make([]string, 0, len(df))
	for term, count := range df {
		if count < opts.MinDF || float64(count) > maxDocs {
			continue
		}
		kept = append(kept, term)
	}

	if len(kept) > opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if corpusTF[kept[i]] != corpusTF[kept[j]] {
				return corpusTF[kept[i]] > corpusTF[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:opts.MaxFeatures]
	}
	sort.Strings(kept)
	return kept
}

func termCounts(tokens []string, opts Options) map[string]int {
	filtered := tokens[:0:0]
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) >= minTokenRunes {
			filtered = append(filtered, tok)
		}
	}
	counts := make(map[string]int, len(filtered)*opts.MaxNGram)
	for n := opts.MinNGram; n <= opts.MaxNGram; n++ {
		for start := 0; start+n <= len(filtered); start++ {
			counts[strings.Join(filtered[start:start+n], " ")]++
		}
	}
	return counts
}

// weigh maps raw counts to an L2-normalized tf-idf row over the vocabulary.
func (idx *Index) weigh(tf map[string]int) sparseRow {
	ids := make([]int, 0, len(tf))
	for term := range tf {
		if id, ok := idx.vocabulary[term]; ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	row := sparseRow{Indices: ids, Values: make([]float64, len(ids))}
	var norm float64
	for i, id := range ids {
		w := float64(tf[idx.terms[id]]) * idx.idf[id]
		row.Values[i] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range row.Values {
			row.Values[i] /= norm
		}
	}
	return row
}

func (idx *Index) buildPostings() {
	idx.postings = make([][]posting, len(idx.terms))
	for doc, row := range idx.rows {
		for i, id := range row.Indices {
			idx.postings[id] = append(idx.postings[id], posting{doc: doc, weight: row.Values[i]})
		}
	}
}

// Len is the number of indexed questions.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.answers)
}

func (idx *Index) VocabularySize() int {
	if idx == nil {
		return 0
	}
	return len(idx.terms)
}

// Similarities returns the cosine similarity of text against every indexed
// question.
func (idx *Index) Similarities(text string) []float64 {
	query := idx.weigh(termCounts(idx.tokenizer.Tokens(text), idx.opts))
	scores := make([]float64, len(idx.answers))
	for i, id := range query.Indices {
		qw := query.Values[i]
		for _, p := range idx.postings[id] {
			scores[p.doc] += qw * p.weight
		}
	}
	return scores
}

// Query returns the best answer when its similarity clears the threshold.
// It never panics; a failing transform is reported as processing_error.
func (idx *Index) Query(text string) (result domain.SearchResult) {
	if idx == nil || idx.vocabulary == nil {
		return domain.SearchResult{Method: domain.MethodVectorizerNotTrained}
	}
	if len(idx.answers) == 0 {
		return domain.SearchResult{Method: domain.MethodNoData}
	}

	defer func() {
		if r := recover(); r != nil {
			result = domain.SearchResult{Method: domain.MethodProcessingError}
		}
	}()

	scores := idx.Similarities(text)
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	if !idx.opts.Accepts(scores[best]) {
		return domain.SearchResult{Method: domain.MethodNoMatch}
	}
	return domain.SearchResult{
		Answer:     idx.answers[best],
		Confidence: scores[best],
		Method:     domain.MethodJSONSearch,
	}
}
