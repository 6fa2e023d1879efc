package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nlpinitiative/discrimination-classifier/cache"
	"github.com/nlpinitiative/discrimination-classifier/metrics"
)

const cacheKeyPrefix = "classify:"

// CachingClassifier serves repeated submissions from a cache. Cache failures
// are logged and fall through to the wrapped classifier.
type CachingClassifier struct {
	next  Classifier
	cache cache.Cache
	ttl   time.Duration
	scope string
}

// NewCachingClassifier wraps next. scope identifies the loaded models and
// their revision so results from different models never share a key.
func NewCachingClassifier(next Classifier, c cache.Cache, ttl time.Duration, scope ...string) *CachingClassifier {
	h := sha256.New()
	for _, s := range scope {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return &CachingClassifier{
		next:  next,
		cache: c,
		ttl:   ttl,
		scope: hex.EncodeToString(h.Sum(nil))[:16],
	}
}

// Classify returns a cached result for text when one exists
func (c *CachingClassifier) Classify(ctx context.Context, text string) (*ClassificationResult, error) {
	key := c.key(text)

	data, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("[ResultCache] Lookup failed", slog.String("error", err.Error()))
	case ok:
		var cached ClassificationResult
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("[ResultCache] Discarding undecodable entry")
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	result, err := c.next.Classify(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			slog.Warn("[ResultCache] Store failed", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

func (c *CachingClassifier) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + c.scope + ":" + hex.EncodeToString(sum[:])
}
