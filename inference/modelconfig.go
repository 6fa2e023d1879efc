package inference

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ModelConfig is the subset of a transformers config.json the loader needs
type ModelConfig struct {
	ModelType   string            `json:"model_type"`
	NameOrPath  string            `json:"_name_or_path"`
	ID2Label    map[string]string `json:"id2label"`
	NumLabels   int               `json:"num_labels"`
	ProblemType string            `json:"problem_type"`
}

// ParseModelConfig decodes config.json content
func ParseModelConfig(data []byte) (*ModelConfig, error) {
	var cfg ModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse model config: %w", err)
	}
	return &cfg, nil
}

// Labels returns label names indexed by output position. Positions missing
// from id2label are named LABEL_<i>, matching the transformers default.
func (c *ModelConfig) Labels() ([]string, error) {
	count := c.NumLabels
	named := make(map[int]string, len(c.ID2Label))
	for key, label := range c.ID2Label {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("invalid id2label key %q", key)
		}
		named[id] = label
		if id+1 > count {
			count = id + 1
		}
	}
	if count == 0 {
		return nil, fmt.Errorf("model config declares no labels")
	}

	labels := make([]string, count)
	for i := range labels {
		if label, ok := named[i]; ok {
			labels[i] = label
		} else {
			labels[i] = "LABEL_" + strconv.Itoa(i)
		}
	}
	return labels, nil
}
