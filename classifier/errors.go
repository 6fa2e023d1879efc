package classifier

import (
	"errors"
	"fmt"
)

// ErrInference matches every failure raised while classifying a sentence
var ErrInference = errors.New("inference failed")

// Pipeline stages reported by InferenceError
const (
	StageBinary     = "binary"
	StageMultilabel = "multilabel"
)

// InferenceError reports which sentence and stage failed. A call that
// returns one has produced no result.
type InferenceError struct {
	Index    int
	Sentence string
	Stage    string
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: sentence %d (%s stage): %v", ErrInference, e.Index, e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() []error {
	return []error{ErrInference, e.Err}
}
