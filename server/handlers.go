package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/nlpinitiative/discrimination-classifier/classifier"
	"github.com/nlpinitiative/discrimination-classifier/history"
	"github.com/nlpinitiative/discrimination-classifier/logging"
	"github.com/nlpinitiative/discrimination-classifier/metrics"
)

const (
	sessionCookie     = "session_id"
	defaultHistoryTop = 50
)

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	ID             uuid.UUID                        `json:"id"`
	Result         *classifier.ClassificationResult `json:"result"`
	Discriminatory bool                             `json:"discriminatory"`
}

type historyResponse struct {
	Entries []history.Entry `json:"entries"`
	Total   int             `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow(r) {
		metrics.RateLimited.Inc()
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	text, err := s.readText(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID := s.session(w, r)

	start := time.Now()
	result, err := s.classifier.Classify(r.Context(), text)
	metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Classifications.WithLabelValues("error").Inc()
		s.classifyFailed(w, r, err)
		return
	}

	outcome := "clean"
	if result.Discriminatory() {
		outcome = "discriminatory"
	}
	metrics.Classifications.WithLabelValues(outcome).Inc()
	for _, sr := range result.SentenceResults {
		metrics.Sentences.WithLabelValues(sr.BinaryClassification.Label).Inc()
	}

	slog.Info("[Server] Classified submission",
		logging.TextAttr(s.config.Logging, text),
		slog.Int("sentences", len(result.SentenceResults)),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", time.Since(start)))

	resp := classifyResponse{Result: result, Discriminatory: result.Discriminatory()}
	entry, err := s.history.Append(r.Context(), sessionID, result)
	if err != nil {
		// The result is still returned; only the history write is lost
		slog.Warn("[Server] Failed to store history entry", slog.String("error", err.Error()))
		resp.ID = uuid.New()
	} else {
		resp.ID = entry.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) classifyFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Info("[Server] Classification cancelled", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	case errors.Is(err, classifier.ErrInference):
		slog.Error("[Server] Classification failed", slog.String("error", err.Error()))
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		writeError(w, http.StatusInternalServerError, "inference failed")
	default:
		slog.Error("[Server] Unexpected classification error", slog.String("error", err.Error()))
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readText decodes the request body, bounded so oversized submissions are
// rejected before they reach the models.
func (s *Server) readText(w http.ResponseWriter, r *http.Request) (string, error) {
	maxText := s.config.Server.MaxTextBytes
	// JSON escaping can grow text up to six-fold
	body := http.MaxBytesReader(w, r.Body, int64(maxText)*6+1024)

	var req classifyRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", errors.New("request body too large")
		}
		if errors.Is(err, io.EOF) {
			return "", errors.New("request body is empty")
		}
		return "", errors.New("invalid JSON body")
	}
	if len(req.Text) > maxText {
		return "", errors.New("text exceeds " + strconv.Itoa(maxText) + " bytes")
	}
	return req.Text, nil
}

// session returns the caller's session id, issuing a new cookie when the
// request carries none or an invalid one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)
	limit := queryInt(r, "limit", defaultHistoryTop)
	offset := queryInt(r, "offset", 0)

	entries, err := s.history.List(r.Context(), sessionID, limit, offset)
	if err != nil {
		slog.Error("[Server] Failed to list history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	total, err := s.history.Count(r.Context(), sessionID)
	if err != nil {
		slog.Error("[Server] Failed to count history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Entries: entries, Total: total})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)
	if err := s.history.Clear(r.Context(), sessionID); err != nil {
		slog.Error("[Server] Failed to clear history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": s.models})
}

// healthCheck provides a simple health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "Discrimination Classifier",
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("[Server] Failed to write response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
