package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nlpinitiative/discrimination-classifier/hub"
)

const (
	configFile    = "config.json"
	tokenizerFile = "tokenizer.json"

	validationText = "Validation sentence."
)

// LoaderOptions configures how repositories are resolved into pairs
type LoaderOptions struct {
	Revision   string
	ModelFiles []string // ONNX file candidates, tried in order
	MaxTokens  int
}

// Pair is a loaded tokenizer and model for one repository. It is not
// modified after Load returns and may be shared by concurrent callers.
type Pair struct {
	RepoID    string
	Labels    []string
	Tokenizer Tokenizer
	Model     Model
}

// Close releases the model session and the tokenizer
func (p *Pair) Close() error {
	var errs []error
	if p.Model != nil {
		if err := p.Model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close model: %w", err))
		}
	}
	if p.Tokenizer != nil {
		if err := p.Tokenizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close tokenizer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Loader resolves repository ids into ready-to-use pairs
type Loader struct {
	hub  *hub.Client
	opts LoaderOptions

	newTokenizer func(path string, maxTokens int) (Tokenizer, error)
	newModel     func(path string, numLabels int) (Model, error)
}

// NewLoader creates a Loader that fetches artifacts through client
func NewLoader(client *hub.Client, opts LoaderOptions) *Loader {
	if opts.Revision == "" {
		opts.Revision = hub.DefaultRevision
	}
	if len(opts.ModelFiles) == 0 {
		opts.ModelFiles = []string{"onnx/model.onnx", "model.onnx"}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	return &Loader{
		hub:          client,
		opts:         opts,
		newTokenizer: NewTokenizer,
		newModel:     NewONNXModel,
	}
}

// Load fetches and constructs the pair for repoID. token, when non-empty,
// overrides the hub client's credential for this load. Every failure matches
// ErrModelUnavailable; a rejected token also matches ErrInvalidCredential.
func (l *Loader) Load(ctx context.Context, repoID, token string) (*Pair, error) {
	start := time.Now()
	client := l.hub.WithToken(token)
	slog.Info("[Loader] Loading model", slog.String("repo", repoID))

	cfgPath, err := client.Fetch(ctx, repoID, l.opts.Revision, configFile)
	if err != nil {
		return nil, unavailable(repoID, client.HasToken(), err)
	}
	// #nosec G304 - Path comes from the hub cache or an operator supplied directory
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, unavailable(repoID, false, err)
	}
	modelCfg, err := ParseModelConfig(data)
	if err != nil {
		return nil, unavailable(repoID, false, err)
	}
	labels, err := modelCfg.Labels()
	if err != nil {
		return nil, unavailable(repoID, false, err)
	}

	tokPath, err := l.fetchTokenizer(ctx, client, repoID, modelCfg)
	if err != nil {
		return nil, unavailable(repoID, client.HasToken(), err)
	}

	modelPath, err := l.fetchModel(ctx, client, repoID)
	if err != nil {
		return nil, unavailable(repoID, client.HasToken(), err)
	}

	tk, err := l.newTokenizer(tokPath, l.opts.MaxTokens)
	if err != nil {
		return nil, unavailable(repoID, false, err)
	}

	model, err := l.newModel(modelPath, len(labels))
	if err != nil {
		if closeErr := tk.Close(); closeErr != nil {
			slog.Warn("[Loader] Failed to close tokenizer during cleanup", slog.String("error", closeErr.Error()))
		}
		return nil, unavailable(repoID, false, err)
	}

	pair := &Pair{
		RepoID:    repoID,
		Labels:    labels,
		Tokenizer: tk,
		Model:     model,
	}

	if err := validate(pair); err != nil {
		if closeErr := pair.Close(); closeErr != nil {
			slog.Warn("[Loader] Failed to close pair during cleanup", slog.String("error", closeErr.Error()))
		}
		return nil, unavailable(repoID, false, fmt.Errorf("validation inference failed: %w", err))
	}

	slog.Info("[Loader] Model ready",
		slog.String("repo", repoID),
		slog.String("model_type", modelCfg.ModelType),
		slog.Int("labels", len(labels)),
		slog.Duration("elapsed", time.Since(start)))
	return pair, nil
}

// fetchTokenizer falls back to the base model's tokenizer when the
// fine-tuned repository does not ship one.
func (l *Loader) fetchTokenizer(ctx context.Context, client *hub.Client, repoID string, cfg *ModelConfig) (string, error) {
	path, err := client.Fetch(ctx, repoID, l.opts.Revision, tokenizerFile)
	if err == nil {
		return path, nil
	}
	base := cfg.NameOrPath
	if !errors.Is(err, hub.ErrNotFound) || base == "" || base == repoID {
		return "", err
	}

	slog.Info("[Loader] Using base model tokenizer",
		slog.String("repo", repoID),
		slog.String("base", base))
	path, baseErr := client.Fetch(ctx, base, hub.DefaultRevision, tokenizerFile)
	if baseErr != nil {
		return "", fmt.Errorf("no tokenizer in %s or base %s: %w", repoID, base, baseErr)
	}
	return path, nil
}

func (l *Loader) fetchModel(ctx context.Context, client *hub.Client, repoID string) (string, error) {
	for _, name := range l.opts.ModelFiles {
		path, err := client.Fetch(ctx, repoID, l.opts.Revision, name)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, hub.ErrNotFound) {
			return "", err
		}
		slog.Debug("[Loader] Model file not present", slog.String("repo", repoID), slog.String("file", name))
	}
	return "", fmt.Errorf("%w: none of %v", hub.ErrNotFound, l.opts.ModelFiles)
}

// validate runs one forward pass so a broken graph fails at load time
func validate(p *Pair) error {
	enc, err := p.Tokenizer.Encode(validationText)
	if err != nil {
		return err
	}
	logits, err := p.Model.Forward(enc)
	if err != nil {
		return err
	}
	if len(logits) != len(p.Labels) {
		return fmt.Errorf("model returned %d logits for %d labels", len(logits), len(p.Labels))
	}
	return nil
}

func unavailable(repoID string, authenticated bool, err error) error {
	if authenticated && errors.Is(err, hub.ErrUnauthorized) {
		return fmt.Errorf("%w: %w: %s: %w", ErrModelUnavailable, ErrInvalidCredential, repoID, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrModelUnavailable, repoID, err)
}
