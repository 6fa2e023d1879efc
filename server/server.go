package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nlpinitiative/discrimination-classifier/classifier"
	"github.com/nlpinitiative/discrimination-classifier/config"
	"github.com/nlpinitiative/discrimination-classifier/history"
)

// Deps are the components the HTTP layer serves
type Deps struct {
	Classifier classifier.Classifier
	History    history.Store
	Models     []classifier.ModelInfo
	UIFS       fs.FS // Embedded UI; nil serves Server.UIPath from disk
}

// Server exposes classification over HTTP
type Server struct {
	config     *config.Config
	classifier classifier.Classifier
	history    history.Store
	models     []classifier.ModelInfo
	uiFS       fs.FS
	limiter    *clientLimiter
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		config:     cfg,
		classifier: deps.Classifier,
		history:    deps.History,
		models:     deps.Models,
		uiFS:       deps.UIFS,
		router:     mux.NewRouter(),
	}
	if cfg.Server.RateLimitRPS > 0 {
		s.limiter = newClientLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, maxTrackedClients)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleListHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleClearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.PathPrefix("/").Handler(s.uiHandler())
}

// uiHandler serves the embedded UI when present, the UI directory otherwise
func (s *Server) uiHandler() http.Handler {
	if s.uiFS != nil {
		sub, err := fs.Sub(s.uiFS, "ui/dist")
		if err != nil {
			slog.Warn("[Server] Failed to open embedded UI, serving it unstripped", slog.String("error", err.Error()))
			return http.FileServer(http.FS(s.uiFS))
		}
		return http.FileServer(http.FS(sub))
	}
	return http.FileServer(http.Dir(s.config.Server.UIPath))
}

// Handler returns the full handler chain: panic reporting, CORS, routes
func (s *Server) Handler() http.Handler {
	reporter := sentryhttp.New(sentryhttp.Options{Repanic: true})
	return reporter.Handle(s.cors(s.router))
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Server.Port,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("[Server] Starting classifier service", slog.String("port", s.config.Server.Port))
	for _, m := range s.models {
		slog.Info("[Server] Serving model", slog.String("role", m.Role), slog.String("repo", m.RepoID))
	}
	if s.config.Database.Enabled {
		slog.Info("[Server] History stored in PostgreSQL")
	} else {
		slog.Info("[Server] History stored in memory")
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// cors adds CORS headers to every response and answers preflight requests
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Credentials", "false")
		} else {
			// Echo the origin so the session cookie is sent
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
