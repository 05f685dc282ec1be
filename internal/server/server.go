package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/truthinlistings/dashboard/docs/swagger"
	"github.com/truthinlistings/dashboard/internal/app"
	"github.com/truthinlistings/dashboard/internal/logging"
)

// maxUpload bounds a bulk CSV upload.
const maxUpload = 32 << 20

// Server is the HTTP + WebSocket surface of the dashboard.
type Server struct {
	cfg      Config
	app      *app.Application
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
	pages    map[string]*template.Template
}

// NewServer builds the router over an already constructed Application.
func NewServer(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: application is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = cfg.App.Config.ListenAddr
	}

	logger := cfg.Logger
	if logger == nil {
		logger = cfg.App.Logger.With(logging.Field{Key: "component", Value: "server"})
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		app:    cfg.App,
		router: chi.NewRouter(),
		logger: logger,
		pages:  pages,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.app.Config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: s.app.Config.WithCredentials,
		MaxAge:           86400,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/analyze", http.StatusSeeOther)
	})

	// Single listing
	r.Get("/analyze", s.handleAnalyzePage)
	r.Post("/analyze", s.handleAnalyzeSubmit)
	r.Post("/analyze/field", s.handleAnalyzeField)
	r.Post("/analyze/dismiss", s.handleAnalyzeDismiss)
	r.Post("/analyze/back", s.handleAnalyzeBack)
	r.Get("/analyze/report.pdf", s.handleReportPDF)

	// Bulk CSV
	r.Get("/bulk", s.handleBulkPage)
	r.Post("/bulk", s.handleBulkUpload)
	r.Post("/bulk/reset", s.handleBulkReset)

	// History
	r.Get("/history", s.handleHistoryPage)
	r.Post("/history/refresh", s.handleHistoryRefresh)
	r.Post("/history/close", s.handleHistoryClose)
	r.Get("/history/compare", s.handleHistoryCompare)
	r.Get("/history/{id}", s.handleHistoryDetail)

	// JSON and push
	r.Get("/api/session", s.handleSessionSnapshot)
	r.Get("/ws/session", s.handleSessionWS)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/backend/health", s.handleBackendHealth)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := s.app.Config.AllowedOrigins
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost && !isMultipart(r) {
		if bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxUpload)); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s,
		ReadTimeout: 15 * time.Second,
		// Analyses and PDF rendering hold the response open.
		WriteTimeout: 0,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
