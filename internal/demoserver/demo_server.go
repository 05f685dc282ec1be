package demoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/logging"
)

// Faults let a developer (or a test) make the mock misbehave on purpose.
type Faults struct {
	// FailHistorySave makes POST /api/history answer 500.
	FailHistorySave bool `json:"fail_history_save"`
	// AnalyzeStatus, when non-zero, is returned by POST /api/analyze with
	// an error envelope instead of a result.
	AnalyzeStatus int `json:"analyze_status"`
	// AnalyzeDelay is slept before answering POST /api/analyze.
	AnalyzeDelay time.Duration `json:"analyze_delay"`
}

type storedRecord struct {
	apiclient.HistoryRecord
	Listing apiclient.ListingInput
}

// DemoServer is an in-memory mock of the fraud analysis API.
type DemoServer struct {
	cfg    Config
	logger logging.Logger

	mu      sync.RWMutex
	history []storedRecord
	nextID  int
	faults  Faults
}

// NewDemoServer creates a mock API instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.Nop{}
	}
	s := &DemoServer{
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "mockapi"}),
		nextID: 1,
	}
	if cfg.SeedHistory {
		s.seed()
	}
	return s
}

// Handler returns the mock API routes.
func (s *DemoServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.livenessHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/analyze/status", s.statusHandler)
	mux.HandleFunc("POST /api/analyze", s.analyzeHandler)
	mux.HandleFunc("POST /api/analyze/bulk", s.bulkHandler)
	mux.HandleFunc("POST /api/history", s.saveHistoryHandler)
	mux.HandleFunc("GET /api/history", s.listHistoryHandler)
	mux.HandleFunc("GET /api/history/{id}", s.historyDetailHandler)

	// Control panel for fault injection
	mux.HandleFunc("GET /demo/control", s.controlPanelHandler)
	mux.HandleFunc("POST /demo/faults", s.setFaultsHandler)
	mux.HandleFunc("POST /demo/reset", s.resetHandler)

	return mux
}

// Start serves until ctx is canceled.
func (s *DemoServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mock fraud API listening",
		logging.Field{Key: "addr", Value: srv.Addr},
		logging.Field{Key: "control_panel", Value: fmt.Sprintf("http://localhost:%d/demo/control", s.cfg.Port)})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// SetFaults replaces the active fault configuration.
func (s *DemoServer) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

// HistoryLen reports how many analyses are stored.
func (s *DemoServer) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// ─── handlers ──────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (s *DemoServer) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "TruthInListings mock API is running"})
}

func (s *DemoServer) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	n := len(s.history)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"models_loaded":   true,
		"history_records": n,
		"time":            time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *DemoServer) statusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"modules": []string{"price_analysis", "text_analysis", "geo_analysis", "image_metadata"},
	})
}

type analyzeBody struct {
	ListingData *apiclient.ListingInput `json:"listing_data"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func validateListing(in *apiclient.ListingInput) []fieldError {
	if in == nil {
		return []fieldError{{Field: "listing_data", Message: "field required"}}
	}
	var errs []fieldError
	required := []struct{ name, value string }{
		{"title", in.Title}, {"description", in.Description}, {"city", in.City}, {"locality", in.Locality},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fieldError{Field: r.name, Message: "field required"})
		}
	}
	if in.Price < 0 {
		errs = append(errs, fieldError{Field: "price", Message: "must be non-negative"})
	}
	if in.AreaSqft < 0 {
		errs = append(errs, fieldError{Field: "area_sqft", Message: "must be non-negative"})
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		errs = append(errs, fieldError{Field: "latitude", Message: "must be between -90 and 90"})
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		errs = append(errs, fieldError{Field: "longitude", Message: "must be between -180 and 180"})
	}
	return errs
}

func (s *DemoServer) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	faults := s.faults
	s.mu.RUnlock()

	if faults.AnalyzeDelay > 0 {
		select {
		case <-time.After(faults.AnalyzeDelay):
		case <-r.Context().Done():
			return
		}
	}
	if faults.AnalyzeStatus != 0 {
		writeJSON(w, faults.AnalyzeStatus, map[string]string{"message": "Analysis engine is temporarily unavailable"})
		return
	}

	var body analyzeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}
	if errs := validateListing(body.ListingData); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"validation_errors": errs})
		return
	}

	result := scoreListing(*body.ListingData)
	s.logger.Info("scored listing",
		logging.Field{Key: "title", Value: body.ListingData.Title},
		logging.Field{Key: "fraud_probability", Value: result.FraudProbability})
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": result})
}

type saveBody struct {
	ListingData     *apiclient.ListingInput   `json:"listing_data"`
	AnalysisResults *apiclient.AnalysisResult `json:"analysis_results"`
}

func (s *DemoServer) saveHistoryHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fail := s.faults.FailHistorySave
	s.mu.RUnlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "history store unavailable"})
		return
	}

	var body saveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ListingData == nil || body.AnalysisResults == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "listing_data and analysis_results are required"})
		return
	}
	id := s.store(*body.ListingData, *body.AnalysisResults, time.Now().UTC())
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": "saved"})
}

func (s *DemoServer) store(in apiclient.ListingInput, res apiclient.AnalysisResult, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	price := in.Price
	s.history = append(s.history, storedRecord{
		HistoryRecord: apiclient.HistoryRecord{
			ID:               apiclient.RecordID(strconv.Itoa(id)),
			Timestamp:        at.Format(time.RFC3339),
			Title:            in.Title,
			Locality:         in.Locality,
			City:             in.City,
			FraudProbability: res.FraudProbability,
			FraudTypes:       append([]string{}, res.FraudTypes...),
			Price:            &price,
			Explanations:     append([]string{}, res.Explanations...),
			ModuleScores:     append(apiclient.ModuleScores{}, res.ModuleScores...),
		},
		Listing: in,
	})
	return id
}

type listEntry struct {
	ID               int      `json:"id"`
	Timestamp        string   `json:"timestamp"`
	Title            string   `json:"title"`
	Locality         string   `json:"locality"`
	City             string   `json:"city"`
	FraudProbability float64  `json:"fraud_probability"`
	FraudTypes       []string `json:"fraud_types"`
}

// listHistoryHandler returns newest first, in list form.
func (s *DemoServer) listHistoryHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]listEntry, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		h := s.history[i]
		id, _ := strconv.Atoi(h.ID.String())
		out = append(out, listEntry{
			ID:               id,
			Timestamp:        h.Timestamp,
			Title:            h.Title,
			Locality:         h.Locality,
			City:             h.City,
			FraudProbability: h.FraudProbability,
			FraudTypes:       h.FraudTypes,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *DemoServer) historyDetailHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.history {
		if h.ID.String() == id {
			writeJSON(w, http.StatusOK, h.HistoryRecord)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("History record %s not found", id)})
}

// ─── control panel ─────────────────────────────────────────────────────

func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := struct {
		Faults  Faults
		Records int
		Port    int
	}{s.faults, len(s.history), s.cfg.Port}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = controlPanel.Execute(w, data)
}

func (s *DemoServer) setFaultsHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	f := Faults{FailHistorySave: r.FormValue("fail_history_save") == "on"}
	if v := r.FormValue("analyze_status"); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil || (code != 0 && (code < 400 || code > 599)) {
			http.Error(w, "analyze_status must be 0 or an HTTP error code", http.StatusBadRequest)
			return
		}
		f.AnalyzeStatus = code
	}
	if v := r.FormValue("analyze_delay"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			http.Error(w, "invalid analyze_delay", http.StatusBadRequest)
			return
		}
		f.AnalyzeDelay = d
	}
	s.SetFaults(f)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "faults": f})
}

func (s *DemoServer) resetHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.history = nil
	s.nextID = 1
	s.faults = Faults{}
	s.mu.Unlock()
	if s.cfg.SeedHistory {
		s.seed()
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "History and faults reset"})
}

var controlPanel = template.Must(template.New("control").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Mock Fraud API Control Panel</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 720px; margin: 0 auto; padding: 20px; background: #0f172a; color: #e2e8f0; }
        h1 { border-bottom: 2px solid #3b82f6; padding-bottom: 10px; }
        .card { background: #1e293b; border-radius: 8px; padding: 20px; margin: 15px 0; }
        label { display: block; margin: 8px 0; }
        button { padding: 8px 16px; border: none; border-radius: 4px; cursor: pointer; background: #3b82f6; color: white; }
        .reset { background: #dc2626; }
    </style>
</head>
<body>
    <h1>Mock Fraud API</h1>
    <div class="card">
        <p>Stored analyses: <strong>{{.Records}}</strong></p>
        <p>Point the dashboard at <code>http://localhost:{{.Port}}</code>.</p>
    </div>
    <form class="card" method="post" action="/demo/faults">
        <h2>Faults</h2>
        <label><input type="checkbox" name="fail_history_save" {{if .Faults.FailHistorySave}}checked{{end}}> Fail history saves</label>
        <label>Analyze error status (0 = off) <input type="number" name="analyze_status" value="{{.Faults.AnalyzeStatus}}"></label>
        <label>Analyze delay <input type="text" name="analyze_delay" value="{{.Faults.AnalyzeDelay}}"></label>
        <button type="submit">Apply</button>
    </form>
    <form class="card" method="post" action="/demo/reset">
        <button class="reset" type="submit">Reset history and faults</button>
    </form>
</body>
</html>`))
