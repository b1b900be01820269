package lexical

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/textnorm"
)

func newTokenizer() *textnorm.Normalizer {
	return textnorm.NewWithLemmatizer(nil, nil, 1)
}

func items(pairs ...string) []domain.KnowledgeItem {
	out := make([]domain.KnowledgeItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.KnowledgeItem{Question: pairs[i], Answer: pairs[i+1]})
	}
	return out
}

func TestQuerySingleItemExactMatch(t *testing.T) {
	idx, err := Build(context.Background(), items("What is the tuition fee?", "Tuition is 50000 BDT"), newTokenizer(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	res := idx.Query("tuition fee?")
	if res.Method != domain.MethodJSONSearch {
		t.Fatalf("expected json_search, got %s", res.Method)
	}
	if res.Answer != "Tuition is 50000 BDT" || res.Confidence < 0.99 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestQueryReturnsNoMatchForUnrelatedText(t *testing.T) {
	idx, err := Build(context.Background(), items("What is the tuition fee?", "Tuition is 50000 BDT"), newTokenizer(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	res := idx.Query("asdkjqwe random nonsense")
	if res.Method != domain.MethodNoMatch || res.Confidence != 0 || res.Answer != "" {
		t.Fatalf("expected empty no_match, got %+v", res)
	}
}

func TestQueryEmptyCorpusAndUntrained(t *testing.T) {
	idx, err := Build(context.Background(), nil, newTokenizer(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res := idx.Query("anything"); res.Method != domain.MethodNoData {
		t.Fatalf("expected no_data, got %s", res.Method)
	}

	var untrained *Index
	if res := untrained.Query("anything"); res.Method != domain.MethodVectorizerNotTrained {
		t.Fatalf("expected vectorizer_not_trained, got %s", res.Method)
	}
}

type panickingTokenizer struct{ *textnorm.Normalizer }

func (panickingTokenizer) Tokens(string) []string { panic("boom") }

func TestQueryRecoversTransformPanic(t *testing.T) {
	base := newTokenizer()
	idx, err := Build(context.Background(), items("library hours", "9 to 5"), base, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	idx.tokenizer = panickingTokenizer{base}

	if res := idx.Query("library"); res.Method != domain.MethodProcessingError {
		t.Fatalf("expected processing_error, got %s", res.Method)
	}
}

func TestSelfMatchDominates(t *testing.T) {
	corpus := items(
		"What is the tuition fee for CSE?", "a1",
		"Where is the central library located?", "a2",
		"How can I apply for admission?", "a3",
		"Is there a hostel for female students?", "a4",
		"What scholarships are available for merit students?", "a5",
	)
	idx, err := Build(context.Background(), corpus, newTokenizer(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for i, item := range corpus {
		scores := idx.Similarities(item.Question)
		for j, s := range scores {
			if s > scores[i]+1e-12 {
				t.Fatalf("question %d scored %f against %d, above self score %f", i, s, j, scores[i])
			}
		}
		if res := idx.Query(item.Question); res.Answer != item.Answer {
			t.Fatalf("expected self match %q, got %+v", item.Answer, res)
		}
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	corpus := items(
		"tuition fee payment deadline", "fees",
		"library opening hours", "library",
	)
	idx, err := Build(context.Background(), corpus, newTokenizer(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	score := idx.Similarities("tuition hostel")[0]
	if score <= 0 || score >= 1 {
		t.Fatalf("expected partial score, got %f", score)
	}

	opts := DefaultOptions()
	opts.Threshold = score
	idx.opts = opts
	if res := idx.Query("tuition hostel"); res.Method != domain.MethodJSONSearch {
		t.Fatalf("score equal to threshold must match, got %+v", res)
	}
	opts.Threshold = math.Nextafter(score, 1)
	idx.opts = opts
	if res := idx.Query("tuition hostel"); res.Method != domain.MethodNoMatch {
		t.Fatalf("score below threshold must not match, got %+v", res)
	}
}

func TestOptionsAcceptsBoundary(t *testing.T) {
	opts := DefaultOptions()
	if !opts.Accepts(0.25) {
		t.Fatalf("0.25 must be accepted")
	}
	if opts.Accepts(0.24999) {
		t.Fatalf("0.24999 must be rejected")
	}
}

func TestVocabularyPruning(t *testing.T) {
	corpus := items(
		"campus tuition", "a",
		"campus library", "b",
		"campus hostel", "c",
	)
	idx, err := Build(context.Background(), corpus, newTokenizer(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, ok := idx.vocabulary["campus"]; ok {
		t.Fatalf("term present in every document should be pruned")
	}
	if _, ok := idx.vocabulary["campus tuition"]; !ok {
		t.Fatalf("bigram should be kept")
	}

	capped := DefaultOptions()
	capped.MaxFeatures = 2
	small, err := Build(context.Background(), corpus, newTokenizer(), capped)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if small.VocabularySize() != 2 {
		t.Fatalf("expected 2 features, got %d", small.VocabularySize())
	}
}

func TestSingleCharacterTokensAreIgnored(t *testing.T) {
	idx, err := Build(context.Background(), items("form x", "a"), newTokenizer(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if idx.VocabularySize() != 1 {
		t.Fatalf("expected only 'form' in vocabulary, got %v", idx.terms)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	corpus := items(
		"What is the tuition fee for CSE?", "a1",
		"Where is the central library located?", "a2",
		"How can I apply for admission?", "a3",
	)
	idx, err := Build(context.Background(), corpus, newTokenizer(), DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var buf bytes.Buffer
	if err := idx.Encode(&buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"version":1`) {
		t.Fatalf("expected version in snapshot: %s", buf.String())
	}
	restored, err := Decode(&buf, newTokenizer())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	for _, q := range []string{"tuition fee", "library location", "apply admission"} {
		if a, b := idx.Query(q), restored.Query(q); a != b {
			t.Fatalf("query %q differs after round trip: %+v vs %+v", q, a, b)
		}
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"version":99}`), newTokenizer())
	if err == nil {
		t.Fatalf("expected version error")
	}
}
