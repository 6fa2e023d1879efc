package inference

import (
	"errors"
	"fmt"

	"github.com/daulet/tokenizers"
)

// Encoding is the numeric form of one piece of text, ready to be fed to a
// model as a batch of one.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TypeIDs       []int64
}

// Len returns the number of tokens in the encoding
func (e Encoding) Len() int {
	return len(e.InputIDs)
}

// Tokenizer converts text into an Encoding. Implementations must be safe for
// concurrent use.
type Tokenizer interface {
	Encode(text string) (Encoding, error)
	Close() error
}

type hfTokenizer struct {
	tk        *tokenizers.Tokenizer
	maxTokens int
}

// NewTokenizer loads a tokenizer.json file. Encodings longer than maxTokens
// are truncated.
func NewTokenizer(path string, maxTokens int) (Tokenizer, error) {
	if maxTokens < 2 {
		return nil, fmt.Errorf("max tokens must be at least 2, got %d", maxTokens)
	}
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &hfTokenizer{tk: tk, maxTokens: maxTokens}, nil
}

func (t *hfTokenizer) Encode(text string) (Encoding, error) {
	enc := t.tk.EncodeWithOptions(text, true,
		tokenizers.WithReturnAttentionMask(),
		tokenizers.WithReturnTypeIDs())
	if len(enc.IDs) == 0 {
		return Encoding{}, errors.New("tokenizer produced no tokens")
	}

	out := Encoding{
		InputIDs:      toInt64(enc.IDs),
		AttentionMask: toInt64(enc.AttentionMask),
		TypeIDs:       toInt64(enc.TypeIDs),
	}
	if len(out.AttentionMask) != len(out.InputIDs) {
		out.AttentionMask = ones(len(out.InputIDs))
	}
	if len(out.TypeIDs) != len(out.InputIDs) {
		out.TypeIDs = make([]int64, len(out.InputIDs))
	}
	return truncate(out, t.maxTokens), nil
}

func (t *hfTokenizer) Close() error {
	return t.tk.Close()
}

// truncate shortens enc to maxTokens, keeping the trailing special token so
// the sequence stays well formed for the model.
func truncate(enc Encoding, maxTokens int) Encoding {
	n := enc.Len()
	if n <= maxTokens {
		return enc
	}
	cut := func(s []int64) []int64 {
		out := make([]int64, maxTokens)
		copy(out, s[:maxTokens-1])
		out[maxTokens-1] = s[n-1]
		return out
	}
	return Encoding{
		InputIDs:      cut(enc.InputIDs),
		AttentionMask: cut(enc.AttentionMask),
		TypeIDs:       cut(enc.TypeIDs),
	}
}

func toInt64(values []uint32) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func ones(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
