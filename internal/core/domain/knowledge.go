package domain

type ItemSource string

const (
	SourceDirect             ItemSource = "direct"
	SourceInstructionDerived ItemSource = "instruction_derived"
)

const (
	DefaultDirectConfidence      = 1.0
	InstructionDerivedConfidence = 0.8
)

// KnowledgeItem is one question/answer entry of the unified corpus.
// The first category is the canonical one.
type KnowledgeItem struct {
	Question           string     `json:"question"`
	Answer             string     `json:"answer"`
	Keywords           []string   `json:"keywords"`
	Categories         []string   `json:"categories"`
	Source             ItemSource `json:"source"`
	ConfidenceScore    float64    `json:"confidence_score"`
	QuestionVariations []string   `json:"question_variations,omitempty"`
}

func (i KnowledgeItem) Category() string {
	if len(i.Categories) == 0 {
		return ""
	}
	return i.Categories[0]
}

// InstructionPair is a verbatim instruction/response record. LineNumber is
// provenance only.
type InstructionPair struct {
	Instruction string `json:"instruction"`
	Output      string `json:"output"`
	LineNumber  int    `json:"line_number"`
}
