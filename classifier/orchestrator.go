// Package classifier turns submitted text into sentence-level discrimination
// verdicts using a binary model and a multilabel regression model.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nlpinitiative/discrimination-classifier/inference"
	"github.com/nlpinitiative/discrimination-classifier/segment"
)

// Classifier produces a ClassificationResult for raw text
type Classifier interface {
	Classify(ctx context.Context, text string) (*ClassificationResult, error)
}

// Orchestrator runs the binary model on every sentence and the multilabel
// model on the sentences it flags. It holds no per-call state and can be
// shared by concurrent callers.
type Orchestrator struct {
	binary     *inference.Pair
	multilabel *inference.Pair
	segmenter  segment.Segmenter
}

// New checks that both pairs are loaded with the expected output sizes
func New(binary, multilabel *inference.Pair, seg segment.Segmenter) (*Orchestrator, error) {
	if err := checkPair(binary, "binary", 2); err != nil {
		return nil, err
	}
	if err := checkPair(multilabel, "multilabel", NumCategories); err != nil {
		return nil, err
	}
	if seg == nil {
		return nil, errors.New("segmenter is required")
	}
	return &Orchestrator{binary: binary, multilabel: multilabel, segmenter: seg}, nil
}

func checkPair(p *inference.Pair, role string, labels int) error {
	if p == nil || p.Tokenizer == nil || p.Model == nil {
		return fmt.Errorf("%w: %s model not loaded", inference.ErrModelUnavailable, role)
	}
	if n := p.Model.NumLabels(); n != labels {
		return fmt.Errorf("%w: %s model %s has %d outputs, expected %d",
			inference.ErrModelUnavailable, role, p.RepoID, n, labels)
	}
	return nil
}

// Models describes the loaded pairs
func (o *Orchestrator) Models() []ModelInfo {
	return []ModelInfo{
		{Role: "binary", RepoID: o.binary.RepoID, Labels: o.binary.Labels},
		{Role: "multilabel", RepoID: o.multilabel.RepoID, Labels: o.multilabel.Labels},
	}
}

// Classify segments text and classifies every sentence in order. The first
// tokenization or model failure aborts the call; no partial result is
// returned. Cancellation is observed between sentences.
func (o *Orchestrator) Classify(ctx context.Context, text string) (*ClassificationResult, error) {
	start := time.Now()
	sentences := o.segmenter.Segment(text)

	result := &ClassificationResult{
		TextInput:       text,
		SentenceResults: make([]SentenceResult, 0, len(sentences)),
	}

	for i, sentence := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sr, err := o.classifySentence(i, sentence)
		if err != nil {
			return nil, err
		}
		result.SentenceResults = append(result.SentenceResults, sr)
	}

	slog.Debug("[Orchestrator] Classified text",
		slog.Int("sentences", len(sentences)),
		slog.Bool("discriminatory", result.Discriminatory()),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (o *Orchestrator) classifySentence(index int, sentence string) (SentenceResult, error) {
	logits, err := forward(o.binary, sentence)
	if err != nil {
		return SentenceResult{}, &InferenceError{Index: index, Sentence: sentence, Stage: StageBinary, Err: err}
	}

	class := argmax(softmax(logits))
	sr := SentenceResult{
		Sentence: sentence,
		BinaryClassification: BinaryOutcome{
			Label:          BinaryLabel(class),
			PredictedClass: class,
		},
	}
	if class != 1 {
		return sr, nil
	}

	raw, err := forward(o.multilabel, sentence)
	if err != nil {
		return SentenceResult{}, &InferenceError{Index: index, Sentence: sentence, Stage: StageMultilabel, Err: err}
	}

	var scores CategoryScores
	for i := range scores {
		scores[i] = clamp(float64(raw[i]))
	}
	sr.MultilabelScores = &scores
	return sr, nil
}

// forward encodes sentence and runs the pair's model, rejecting outputs of
// the wrong size or with non-finite values.
func forward(p *inference.Pair, sentence string) ([]float32, error) {
	enc, err := p.Tokenizer.Encode(sentence)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	logits, err := p.Model.Forward(enc)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	if want := p.Model.NumLabels(); len(logits) != want {
		return nil, fmt.Errorf("model returned %d values, expected %d", len(logits), want)
	}
	for i, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("model returned non-finite value at position %d", i)
		}
	}
	return logits, nil
}

// softmax is computed in float64 after subtracting the maximum logit
func softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxLogit := float64(logits[0])
	for _, v := range logits[1:] {
		maxLogit = math.Max(maxLogit, float64(v))
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the first index holding the largest value
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func clamp(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
