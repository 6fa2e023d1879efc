// Package segment splits submitted text into sentences.
package segment

import (
	"fmt"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Segmenter splits text into ordered, non-empty sentences
type Segmenter interface {
	Segment(text string) []string
}

// Options configures a punkt segmenter
type Options struct {
	// StripMarkdown renders markdown input to plain text before splitting
	StripMarkdown bool
}

// PunktSegmenter uses the english punkt parameters bundled with the
// sentences package.
type PunktSegmenter struct {
	mu        sync.Mutex
	tokenizer *sentences.DefaultSentenceTokenizer
	opts      Options
}

// NewPunktSegmenter loads the english sentence boundary data
func NewPunktSegmenter(opts Options) (*PunktSegmenter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence tokenizer: %w", err)
	}
	return &PunktSegmenter{tokenizer: tokenizer, opts: opts}, nil
}

// Segment returns the trimmed sentences of text in order. Blank input
// yields no sentences. With markdown stripping enabled every block is
// segmented on its own, so a heading never merges into the next paragraph.
func (s *PunktSegmenter) Segment(text string) []string {
	blocks := []string{text}
	if s.opts.StripMarkdown {
		blocks = strings.Split(StripMarkdown(text), "\n")
	}

	var out []string
	for _, block := range blocks {
		out = append(out, s.split(block)...)
	}
	return out
}

func (s *PunktSegmenter) split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// The punkt tokenizer is not documented as safe for concurrent use
	s.mu.Lock()
	tokens := s.tokenizer.Tokenize(text)
	s.mu.Unlock()

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if sentence := strings.TrimSpace(tok.Text); sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}
