package domain

// Method tags the path that produced a search result or outcome.
type Method string

const (
	MethodJSONSearch           Method = "json_search"
	MethodInstructionMatch     Method = "instruction_match"
	MethodNoMatch              Method = "no_match"
	MethodNoData               Method = "no_data"
	MethodNoInstructionData    Method = "no_instruction_data"
	MethodVectorizerNotTrained Method = "vectorizer_not_trained"
	MethodProcessingError      Method = "processing_error"

	MethodHighConfidenceJSON        Method = "high_confidence_json_search"
	MethodHighConfidenceInstruction Method = "high_confidence_instruction_match"
	MethodEnhancedMultiSource       Method = "enhanced_multi_source_llama"
	MethodMediumConfidenceOffline   Method = "medium_confidence_offline"
	MethodLlamaPrimary              Method = "llama_primary_multi_search"
	MethodEnhancedOfflineFallback   Method = "enhanced_offline_fallback"
	MethodSearchError               Method = "search_error"
)

// HighConfidence returns the arbiter tag for a retrieval method that cleared
// the high-confidence bar.
func (m Method) HighConfidence() Method {
	switch m {
	case MethodJSONSearch:
		return MethodHighConfidenceJSON
	case MethodInstructionMatch:
		return MethodHighConfidenceInstruction
	default:
		return Method("high_confidence_" + string(m))
	}
}

const (
	OutcomeSourceMultiSourceHybrid = "multi_source_llama_hybrid"
	OutcomeSourceMediumOffline     = "medium_confidence_offline"
	OutcomeSourceLlamaFallback     = "llama_fallback_enhanced"
	OutcomeSourceFallback          = "fallback_response"
	OutcomeSourceError             = "error_fallback"
)

// SearchResult is the output of a single retriever.
type SearchResult struct {
	Answer      string  `json:"answer"`
	Confidence  float64 `json:"confidence"`
	Method      Method  `json:"method"`
	Instruction string  `json:"instruction,omitempty"`
}

// SearchOutcome is the arbiter's final answer.
type SearchOutcome struct {
	Answer         string  `json:"answer"`
	Method         Method  `json:"method"`
	Confidence     float64 `json:"confidence"`
	AnalyzedItems  int     `json:"analyzed_items"`
	ProcessingTime float64 `json:"processing_time"`
	Source         string  `json:"source"`
}

type CorpusStats struct {
	AvailableItems    int `json:"available_data"`
	TotalOriginalData int `json:"total_original_data"`
	InstructionPairs  int `json:"instruction_pairs"`
}
