// Package knowledge turns raw source records into the corpus served by the
// engine. Loading never fails: bad records are skipped and counted.
package knowledge

import (
	"strings"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// DirectRecord is one entry of the curated Q/A source.
type DirectRecord struct {
	Question           string   `json:"question" yaml:"question"`
	Answer             string   `json:"answer" yaml:"answer"`
	Keywords           []string `json:"keywords" yaml:"keywords"`
	Categories         []string `json:"categories" yaml:"categories"`
	ConfidenceScore    *float64 `json:"confidence_score,omitempty" yaml:"confidence_score,omitempty"`
	QuestionVariations []string `json:"question_variations" yaml:"question_variations"`
}

// InstructionRecord is one line of the instruction/response source.
type InstructionRecord struct {
	Instruction string `json:"instruction"`
	Output      string `json:"output"`
	LineNumber  int    `json:"-"`
}

type Result struct {
	Items []domain.KnowledgeItem
	Pairs []domain.InstructionPair

	// Total is the item count before the blocklist filter.
	Total int

	SkippedDirect       int
	SkippedInstructions int
	BlockedItems        int
	BlockedPairs        int
}

type Loader struct {
	rules Rules
}

func NewLoader(rules Rules) *Loader {
	return &Loader{rules: rules}
}

// Load converts both record shapes and drops everything whose answer is on
// the blocklist. It is called again, with the same records, on every rebuild.
func (l *Loader) Load(direct []DirectRecord, instructions []InstructionRecord, blocked []domain.BlockedAnswer) Result {
	var res Result
	all := make([]domain.KnowledgeItem, 0, len(direct)+len(instructions))
	pairs := make([]domain.InstructionPair, 0, len(instructions))

	for _, rec := range direct {
		if isBlank(rec.Question) || isBlank(rec.Answer) {
			res.SkippedDirect++
			continue
		}
		all = append(all, l.fromDirect(rec))
	}

	for _, rec := range instructions {
		if isBlank(rec.Instruction) || isBlank(rec.Output) {
			res.SkippedInstructions++
			continue
		}
		pairs = append(pairs, domain.InstructionPair{
			Instruction: rec.Instruction,
			Output:      rec.Output,
			LineNumber:  rec.LineNumber,
		})
		all = append(all, l.fromInstruction(rec))
	}
	res.Total = len(all)

	blockedSet := BlockedSet(blocked)
	res.Items = make([]domain.KnowledgeItem, 0, len(all))
	for _, item := range all {
		if _, ok := blockedSet[item.Answer]; ok {
			res.BlockedItems++
			continue
		}
		res.Items = append(res.Items, item)
	}
	res.Pairs = make([]domain.InstructionPair, 0, len(pairs))
	for _, pair := range pairs {
		if _, ok := blockedSet[pair.Output]; ok {
			res.BlockedPairs++
			continue
		}
		res.Pairs = append(res.Pairs, pair)
	}
	return res
}

func (l *Loader) fromDirect(rec DirectRecord) domain.KnowledgeItem {
	confidence := domain.DefaultDirectConfidence
	if rec.ConfidenceScore != nil {
		confidence = *rec.ConfidenceScore
	}
	categories := nonNil(rec.Categories)
	if len(categories) == 0 {
		categories = []string{l.rules.CategorizeKeywords(rec.Keywords)}
	}
	return domain.KnowledgeItem{
		Question:           rec.Question,
		Answer:             rec.Answer,
		Keywords:           nonNil(rec.Keywords),
		Categories:         categories,
		Source:             domain.SourceDirect,
		ConfidenceScore:    confidence,
		QuestionVariations: rec.QuestionVariations,
	}
}

func (l *Loader) fromInstruction(rec InstructionRecord) domain.KnowledgeItem {
	return domain.KnowledgeItem{
		Question:        rec.Instruction,
		Answer:          rec.Output,
		Keywords:        l.rules.ExtractKeywords(rec.Instruction),
		Categories:      []string{l.rules.CategorizeInstruction(rec.Instruction)},
		Source:          domain.SourceInstructionDerived,
		ConfidenceScore: domain.InstructionDerivedConfidence,
	}
}

// BlockedSet indexes the blocklist by answer text.
func BlockedSet(blocked []domain.BlockedAnswer) map[string]struct{} {
	set := make(map[string]struct{}, len(blocked))
	for _, b := range blocked {
		set[b.AnswerText] = struct{}{}
	}
	return set
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
