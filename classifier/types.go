package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Binary labels, indexed by predicted class
const (
	LabelNonDiscriminatory = "Non-Discriminatory"
	LabelDiscriminatory    = "Discriminatory"
)

// Category is a discrimination category scored by the multilabel model
type Category string

const (
	Gender      Category = "Gender"
	Race        Category = "Race"
	Sexuality   Category = "Sexuality"
	Disability  Category = "Disability"
	Religion    Category = "Religion"
	Unspecified Category = "Unspecified"
)

// NumCategories is the number of outputs the multilabel model must have
const NumCategories = 6

// categoryOrder matches the multilabel model's output positions
var categoryOrder = [NumCategories]Category{Gender, Race, Sexuality, Disability, Religion, Unspecified}

// Categories returns the categories in model output order
func Categories() []Category {
	out := make([]Category, NumCategories)
	copy(out, categoryOrder[:])
	return out
}

// BinaryLabel maps a predicted class to its label. Anything other than 1
// is non-discriminatory.
func BinaryLabel(class int) string {
	if class == 1 {
		return LabelDiscriminatory
	}
	return LabelNonDiscriminatory
}

// BinaryOutcome is the binary model's verdict for one sentence
type BinaryOutcome struct {
	Label          string `json:"label"`
	PredictedClass int    `json:"predicted_class"`
}

// CategoryScores holds one score in [0, 1] per category, in model output
// order. All six are always present together.
type CategoryScores [NumCategories]float64

// Get returns the score for category, or 0 for an unknown category
func (s CategoryScores) Get(category Category) float64 {
	for i, c := range categoryOrder {
		if c == category {
			return s[i]
		}
	}
	return 0
}

// Map returns the scores keyed by category name
func (s CategoryScores) Map() map[string]float64 {
	out := make(map[string]float64, NumCategories)
	for i, c := range categoryOrder {
		out[string(c)] = s[i]
	}
	return out
}

// MarshalJSON writes the scores as an object with keys in category order
func (s CategoryScores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range categoryOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(string(c)))
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(s[i], 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON requires exactly the six category keys
func (s *CategoryScores) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != NumCategories {
		return fmt.Errorf("expected %d category scores, got %d", NumCategories, len(raw))
	}
	for i, c := range categoryOrder {
		v, ok := raw[string(c)]
		if !ok {
			return fmt.Errorf("missing category score %q", c)
		}
		s[i] = v
	}
	return nil
}

// SentenceResult is the outcome for one sentence. MultilabelScores is nil
// unless the sentence was classified as discriminatory.
type SentenceResult struct {
	Sentence             string          `json:"sentence"`
	BinaryClassification BinaryOutcome   `json:"binary_classification"`
	MultilabelScores     *CategoryScores `json:"multilabel_scores"`
}

// ClassificationResult is the outcome for one submitted text. Sentence
// results are in the order the sentences appear in the text.
type ClassificationResult struct {
	TextInput       string           `json:"text_input"`
	SentenceResults []SentenceResult `json:"sentence_results"`
}

// Discriminatory reports whether any sentence was classified as discriminatory
func (r *ClassificationResult) Discriminatory() bool {
	for _, sr := range r.SentenceResults {
		if sr.BinaryClassification.PredictedClass == 1 {
			return true
		}
	}
	return false
}

// ModelInfo describes one loaded model
type ModelInfo struct {
	Role   string   `json:"role"`
	RepoID string   `json:"repo_id"`
	Labels []string `json:"labels"`
}
