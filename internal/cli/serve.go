package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/diagramforge/diagramforge/pkg/compile"
	"github.com/diagramforge/diagramforge/pkg/config"
	apperrors "github.com/diagramforge/diagramforge/pkg/errors"
	"github.com/diagramforge/diagramforge/pkg/store"
)

const (
	serveShutdownTimeout = 5 * time.Second
	serveMaxBodyBytes    = 4 << 20 // 4 MiB of diagram markup is plenty
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr       string
	storeKind  string
	redisURL   string
	mongoURI   string
	mongoDB    string
	configPath string
}

// serveCommand creates the serve command exposing the compiler and a
// document store over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiler and a document store over HTTP",
		Long: `Serve starts an HTTP server with a stateless compile endpoint and a
CRUD document API backed by a pluggable store (memory, redis, or mongo).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&opts.storeKind, "store", "", "document store: memory (default), redis, mongo")
	cmd.Flags().StringVar(&opts.redisURL, "redis-url", "", "redis connection URL")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", "", "mongodb connection URI")
	cmd.Flags().StringVar(&opts.mongoDB, "mongo-db", "", "mongodb database name")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default: diagramforge.toml in the working directory)")

	return cmd
}

// runServe builds the server and blocks until the context is cancelled.
func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	cfg, err := c.loadConfig("", opts.configPath)
	if err != nil {
		return err
	}
	applyServeFlags(&cfg.Serve, opts)

	docs, err := newStore(ctx, cfg.Serve)
	if err != nil {
		return err
	}
	defer docs.Close(context.Background())

	srv := newServer(c.newCompiler(cfg, nil), docs, c.Logger)
	httpSrv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	c.Logger.Infof("Listening on %s (store: %s)", cfg.Serve.Addr, cfg.Serve.Store)
	if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// applyServeFlags overrides config values with explicitly set flags.
func applyServeFlags(cfg *config.ServeConfig, opts *serveOpts) {
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.storeKind != "" {
		cfg.Store = opts.storeKind
	}
	if opts.redisURL != "" {
		cfg.RedisURL = opts.redisURL
	}
	if opts.mongoURI != "" {
		cfg.MongoURI = opts.mongoURI
	}
	if opts.mongoDB != "" {
		cfg.MongoDB = opts.mongoDB
	}
}

// newStore selects the document store backend.
func newStore(ctx context.Context, cfg config.ServeConfig) (store.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis store requires --redis-url or serve.redis_url")
		}
		return store.NewRedisStore(ctx, cfg.RedisURL)
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongo store requires --mongo-uri or serve.mongo_uri")
		}
		return store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown store %q (must be memory, redis, or mongo)", cfg.Store)
	}
}

// server bundles the HTTP handler dependencies. The compiler is
// stateless and shared across requests.
type server struct {
	compiler *compile.Compiler
	docs     store.Store
	logger   *log.Logger
}

func newServer(compiler *compile.Compiler, docs store.Store, logger *log.Logger) *server {
	return &server{compiler: compiler, docs: docs, logger: logger}
}

// routes builds the chi router.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/compile", s.handleCompile)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleCreateDocument)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDocument)
				r.Put("/", s.handleUpdateDocument)
				r.Delete("/", s.handleDeleteDocument)
				r.Get("/svg", s.handleGetDocumentSVG)
			})
		})
	})
	return r
}

// logRequests logs one line per request at debug level.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), s.logger)))
		s.logger.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

// handleCompile compiles the request body and returns SVG. Includes are
// not resolvable over HTTP, so documents must be self-contained.
func (s *server) handleCompile(w http.ResponseWriter, r *http.Request) {
	logger := loggerFromContext(r.Context())
	source, err := io.ReadAll(io.LimitReader(r.Body, serveMaxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	svg, err := s.compiler.Compile(string(source), "")
	if err != nil {
		logger.Debug("Compile rejected", "err", err)
		s.writeCompileError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = io.WriteString(w, svg)
}

// documentRequest is the create/update payload.
type documentRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

func (s *server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, serveMaxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := apperrors.ValidateDocumentName(req.Name); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	svg, err := s.compiler.Compile(req.Source, "")
	if err != nil {
		s.writeCompileError(w, err)
		return
	}

	doc := store.New(req.Name, req.Source)
	doc.SVG = svg
	if err := s.docs.Put(r.Context(), doc); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func (s *server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	var req documentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, serveMaxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := apperrors.ValidateDocumentName(req.Name); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	svg, err := s.compiler.Compile(req.Source, "")
	if err != nil {
		s.writeCompileError(w, err)
		return
	}

	if req.Name != "" {
		doc.Name = req.Name
	}
	doc.Source = req.Source
	doc.SVG = svg
	doc.UpdatedAt = time.Now().UTC()
	if err := s.docs.Put(r.Context(), doc); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	err := s.docs.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetDocumentSVG(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = io.WriteString(w, doc.SVG)
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// writeCompileError maps compiler errors to 400 for document problems
// and 500 for everything else, preserving the stable error code.
func (s *server) writeCompileError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if apperrors.IsUserError(err) {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, errorResponse{
		Code:    string(apperrors.GetCode(err)),
		Message: apperrors.UserMessage(err),
	})
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Message: err.Error()})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Encode response failed", "err", err)
	}
}
