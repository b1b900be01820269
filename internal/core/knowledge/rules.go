package knowledge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryRule assigns Category when any of Terms matches.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Terms    []string `yaml:"terms"`
}

type Vocabularies struct {
	Academic   []string `yaml:"academic"`
	Department []string `yaml:"department"`
	Facility   []string `yaml:"facility"`
}

func (v Vocabularies) ordered() [][]string {
	return [][]string{v.Academic, v.Department, v.Facility}
}

// Rules is the business data driving auto-categorization and keyword
// extraction. Rule lists are evaluated in order and the first hit wins.
type Rules struct {
	InstructionCategories []CategoryRule `yaml:"instruction_categories"`
	InstructionDefault    string         `yaml:"instruction_default"`
	KeywordCategories     []CategoryRule `yaml:"keyword_categories"`
	KeywordDefault        string         `yaml:"keyword_default"`
	Vocabularies          Vocabularies   `yaml:"vocabularies"`
	StopWords             []string       `yaml:"stop_words"`
}

func DefaultRules() Rules {
	return Rules{
		InstructionCategories: []CategoryRule{
			{Category: "fees_financial", Terms: []string{"fee", "tuition", "cost", "price", "payment"}},
			{Category: "admission_requirements", Terms: []string{"admission", "requirement", "apply", "enrollment", "deadline"}},
			{Category: "academic_programs", Terms: []string{"program", "course", "department", "cse", "bba", "engineering"}},
			{Category: "contact_information", Terms: []string{"contact", "phone", "email", "address", "location"}},
			{Category: "campus_facilities", Terms: []string{"facility", "library", "lab", "hostel", "cafeteria", "wifi"}},
			{Category: "scholarships_aid", Terms: []string{"scholarship", "merit", "financial aid"}},
			{Category: "student_activities", Terms: []string{"club", "society", "extracurricular", "sports"}},
		},
		InstructionDefault: "general_inquiry",
		KeywordCategories: []CategoryRule{
			{Category: "fees", Terms: []string{"fee", "tuition", "cost", "price"}},
			{Category: "admission", Terms: []string{"admission", "requirement", "apply", "enrollment"}},
			{Category: "programs", Terms: []string{"program", "course", "department", "cse", "bba"}},
			{Category: "contact", Terms: []string{"contact", "phone", "email", "address"}},
		},
		KeywordDefault: "general",
		Vocabularies: Vocabularies{
			Academic:   []string{"admission", "fee", "tuition", "course", "program", "semester", "gpa", "grade", "exam", "credit"},
			Department: []string{"cse", "computer science", "engineering", "bba", "business", "english", "law", "textile"},
			Facility:   []string{"library", "lab", "hostel", "cafeteria", "wifi", "sports", "club"},
		},
	}
}

// LoadRules overlays the YAML file at path on DefaultRules. An empty path
// returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}
	return rules, nil
}

// CategorizeInstruction returns the first rule whose term occurs as a
// substring of the lower-cased instruction.
func (r Rules) CategorizeInstruction(instruction string) string {
	lower := strings.ToLower(instruction)
	for _, rule := range r.InstructionCategories {
		for _, term := range rule.Terms {
			if strings.Contains(lower, term) {
				return rule.Category
			}
		}
	}
	return r.InstructionDefault
}

// CategorizeKeywords matches whole keywords, case-insensitively.
func (r Rules) CategorizeKeywords(keywords []string) string {
	lowered := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		lowered[strings.ToLower(kw)] = struct{}{}
	}
	for _, rule := range r.KeywordCategories {
		for _, term := range rule.Terms {
			if _, ok := lowered[term]; ok {
				return rule.Category
			}
		}
	}
	return r.KeywordDefault
}

// ExtractKeywords returns vocabulary terms found in text, in vocabulary order
// and without duplicates.
func (r Rules) ExtractKeywords(text string) []string {
	if text == "" {
		return []string{}
	}
	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	out := make([]string, 0, 4)
	for _, vocabulary := range r.Vocabularies.ordered() {
		for _, term := range vocabulary {
			if _, dup := seen[term]; dup {
				continue
			}
			if strings.Contains(lower, term) {
				seen[term] = struct{}{}
				out = append(out, term)
			}
		}
	}
	return out
}
