package inference

import (
	"errors"
	"fmt"

	onnxruntime "github.com/yalue/onnxruntime_go"
)

// Model input names understood by the ONNX wrapper
const (
	inputIDsName      = "input_ids"
	attentionMaskName = "attention_mask"
	typeIDsName       = "token_type_ids"
)

// Model runs a sequence classification forward pass. Forward returns one
// logit per label for the whole sequence.
type Model interface {
	Forward(enc Encoding) ([]float32, error)
	NumLabels() int
	Close() error
}

type onnxModel struct {
	session    *onnxruntime.DynamicAdvancedSession
	inputNames []string
	numLabels  int
	path       string
}

// NewONNXModel opens an ONNX sequence classification graph. The graph's
// inputs are discovered from the file; its first output must be logits of
// shape [batch, numLabels].
func NewONNXModel(path string, numLabels int) (Model, error) {
	if numLabels <= 0 {
		return nil, fmt.Errorf("model must have at least one label, got %d", numLabels)
	}

	inputs, outputs, err := onnxruntime.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model: %w", err)
	}
	if len(outputs) == 0 {
		return nil, errors.New("model declares no outputs")
	}

	inputNames := make([]string, 0, len(inputs))
	for _, in := range inputs {
		switch in.Name {
		case inputIDsName, attentionMaskName, typeIDsName:
			inputNames = append(inputNames, in.Name)
		default:
			return nil, fmt.Errorf("unsupported model input %q", in.Name)
		}
	}

	logits := outputs[0]
	if dims := logits.Dimensions; len(dims) > 0 {
		if last := dims[len(dims)-1]; last > 0 && last != int64(numLabels) {
			return nil, fmt.Errorf("model output %q has %d labels, config declares %d", logits.Name, last, numLabels)
		}
	}

	session, err := onnxruntime.NewDynamicAdvancedSession(path, inputNames, []string{logits.Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &onnxModel{
		session:    session,
		inputNames: inputNames,
		numLabels:  numLabels,
		path:       path,
	}, nil
}

// Forward allocates fresh tensors for every call, so one model can serve
// concurrent callers.
func (m *onnxModel) Forward(enc Encoding) ([]float32, error) {
	n := enc.Len()
	if n == 0 {
		return nil, errors.New("empty encoding")
	}

	shape := onnxruntime.NewShape(1, int64(n))
	inputs := make([]onnxruntime.Value, 0, len(m.inputNames))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()

	for _, name := range m.inputNames {
		var data []int64
		switch name {
		case inputIDsName:
			data = enc.InputIDs
		case attentionMaskName:
			data = enc.AttentionMask
		case typeIDsName:
			data = enc.TypeIDs
		}
		if len(data) != n {
			return nil, fmt.Errorf("input %q has %d values, expected %d", name, len(data), n)
		}
		tensor, err := onnxruntime.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		inputs = append(inputs, tensor)
	}

	output, err := onnxruntime.NewEmptyTensor[float32](onnxruntime.NewShape(1, int64(m.numLabels)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer func() { _ = output.Destroy() }()

	if err := m.session.Run(inputs, []onnxruntime.Value{output}); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	logits := make([]float32, m.numLabels)
	copy(logits, output.GetData())
	return logits, nil
}

func (m *onnxModel) NumLabels() int {
	return m.numLabels
}

func (m *onnxModel) Close() error {
	if m.session == nil {
		return nil
	}
	if err := m.session.Destroy(); err != nil {
		return fmt.Errorf("failed to destroy session for %s: %w", m.path, err)
	}
	m.session = nil
	return nil
}
