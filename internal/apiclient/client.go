package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"

	"github.com/truthinlistings/dashboard/internal/logging"
	"github.com/truthinlistings/dashboard/internal/webclient"
)

// Client is the typed fraud-API client. Every call is one request/response
// round trip; nothing is retried.
type Client struct {
	cfg     Config
	baseURL string
	wc      webclient.WebClient
	logger  logging.Logger

	detached sync.WaitGroup
}

// New returns a Client that sends requests through wc. If wc is nil a
// net/http transport is built from cfg.
func New(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = DefaultSaveTimeout
	}

	componentLogger := logger.With(logging.Field{Key: "component", Value: "apiclient"})
	if wc == nil {
		headers := map[string]string{"Accept": "application/json"}
		if cfg.APIKey != "" {
			headers["X-API-Key"] = cfg.APIKey
		}
		wc, err = webclient.NewNetHTTPClient(webclient.Config{
			Timeout:        cfg.Timeout,
			DefaultHeaders: headers,
		}, componentLogger, nil)
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
	}

	componentLogger.Info("created api client",
		logging.Field{Key: "base_url", Value: cfg.BaseURL},
		logging.Field{Key: "timeout", Value: cfg.Timeout.String()})

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		wc:      wc,
		logger:  componentLogger,
	}, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// HealthReport is the implementation-defined body of a health endpoint.
// Non-JSON bodies are wrapped as a JSON string.
type HealthReport struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Health calls the liveness endpoint GET /.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	return c.health(ctx, "health", "/")
}

// DetailedHealth calls GET /health.
func (c *Client) DetailedHealth(ctx context.Context) (*HealthReport, error) {
	return c.health(ctx, "detailed health", "/health")
}

// AnalysisStatus calls GET /api/analyze/status.
func (c *Client) AnalysisStatus(ctx context.Context) (*HealthReport, error) {
	return c.health(ctx, "analysis status", "/api/analyze/status")
}

func (c *Client) health(ctx context.Context, op, path string) (*HealthReport, error) {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	body := bytes.TrimSpace(resp.Body)
	if !json.Valid(body) {
		body, _ = json.Marshal(string(body))
	}
	return &HealthReport{Status: resp.StatusCode, Body: body}, nil
}

type analyzeRequest struct {
	ListingData ListingInput `json:"listing_data"`
}

// Analyze submits one listing. The response may be {data: result} or a
// bare result; either way it must satisfy the analysis schema.
func (c *Client) Analyze(ctx context.Context, listing ListingInput) (*AnalysisResult, error) {
	const op = "analyze"
	resp, err := c.postJSON(ctx, op, "/api/analyze", analyzeRequest{ListingData: listing})
	if err != nil {
		return nil, err
	}

	raw := unwrapData(resp.Body)
	if err := validateAnalysis(raw); err != nil {
		c.logger.Warn("analysis response rejected", logging.Err(err))
		return nil, decodeError(op, err)
	}
	var result AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, decodeError(op, err)
	}
	return &result, nil
}

// unwrapData returns the "data" member when body is an envelope object.
func unwrapData(body []byte) []byte {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	if data, ok := env["data"]; ok {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return trimmed
		}
	}
	return body
}

type saveHistoryRequest struct {
	ListingData     ListingInput   `json:"listing_data"`
	AnalysisResults AnalysisResult `json:"analysis_results"`
}

// SaveHistory persists a finished analysis. The response body is ignored.
func (c *Client) SaveHistory(ctx context.Context, listing ListingInput, result AnalysisResult) error {
	_, err := c.postJSON(ctx, "save history", "/api/history", saveHistoryRequest{
		ListingData:     listing,
		AnalysisResults: result,
	})
	return err
}

// ListHistory fetches every past analysis in list form.
func (c *Client) ListHistory(ctx context.Context) ([]HistoryRecord, error) {
	const op = "list history"
	resp, err := c.do(ctx, op, http.MethodGet, "/api/history", nil, nil)
	if err != nil {
		return nil, err
	}
	var records []HistoryRecord
	if err := json.Unmarshal(unwrapList(resp.Body), &records); err != nil {
		return nil, decodeError(op, err)
	}
	return records, nil
}

// unwrapList accepts a bare array or {data: [...]}.
func unwrapList(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 {
			return env.Data
		}
	}
	return body
}

// GetHistoryDetail fetches one record in detail form.
func (c *Client) GetHistoryDetail(ctx context.Context, id string) (*HistoryRecord, error) {
	const op = "get history detail"
	if strings.TrimSpace(id) == "" {
		return nil, &Error{Op: op, Kind: KindRequest, Message: "history record id is required"}
	}
	resp, err := c.do(ctx, op, http.MethodGet, "/api/history/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	var rec HistoryRecord
	if err := json.Unmarshal(unwrapData(resp.Body), &rec); err != nil {
		return nil, decodeError(op, err)
	}
	return &rec, nil
}

// AnalyzeBulk uploads a CSV file as the multipart field "file". The file is
// forwarded unmodified.
func (c *Client) AnalyzeBulk(ctx context.Context, filename string, file io.Reader) (*BulkResult, error) {
	const op = "analyze bulk"
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "text/csv")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Message: "could not prepare upload", Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Message: "could not read uploaded file", Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Message: "could not prepare upload", Err: err}
	}

	headers := http.Header{}
	headers.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(ctx, op, http.MethodPost, "/api/analyze/bulk", headers, buf.Bytes())
	if err != nil {
		return nil, err
	}

	if err := validateBulk(resp.Body); err != nil {
		c.logger.Warn("bulk response rejected", logging.Err(err))
		return nil, decodeError(op, err)
	}
	var result BulkResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, decodeError(op, err)
	}
	return &result, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any) (*webclient.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindDecode, Message: "could not encode request", Err: err}
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	return c.do(ctx, op, http.MethodPost, path, headers, body)
}

// do performs the round trip and turns every failure into an *Error.
func (c *Client) do(ctx context.Context, op, method, path string, headers http.Header, body []byte) (*webclient.Response, error) {
	if headers == nil {
		headers = http.Header{}
	}
	if c.cfg.WithCredentials {
		if cs := forwardedCookies(ctx); len(cs) > 0 {
			parts := make([]string, 0, len(cs))
			for _, ck := range cs {
				parts = append(parts, ck.Name+"="+ck.Value)
			}
			headers.Set("Cookie", strings.Join(parts, "; "))
		}
	}

	resp, err := c.wc.Do(ctx, &webclient.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return nil, transportError(op, c.baseURL, err)
	}
	if !resp.OK() {
		return nil, requestError(op, resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// Close releases the transport. Call Wait first to drain detached saves.
func (c *Client) Close() error {
	return c.wc.Close()
}

type cookieKey struct{}

// WithForwardedCookies attaches the dashboard user's cookies to ctx so a
// client configured WithCredentials sends them to the backend.
func WithForwardedCookies(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, cookieKey{}, cookies)
}

func forwardedCookies(ctx context.Context) []*http.Cookie {
	cs, _ := ctx.Value(cookieKey{}).([]*http.Cookie)
	return cs
}
