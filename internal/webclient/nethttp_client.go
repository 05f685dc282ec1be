package webclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/truthinlistings/dashboard/internal/logging"
)

// NetHTTPClient is the net/http backed WebClient. Requests and responses are
// logged the way a browser devtools console would show them.
type NetHTTPClient struct {
	client  *http.Client
	headers map[string]string
	logger  logging.Logger
}

// NewNetHTTPClient builds a client. If httpClient is nil one is created with
// cfg.Timeout (or DefaultTimeout).
func NewNetHTTPClient(cfg Config, logger logging.Logger, httpClient *http.Client) (*NetHTTPClient, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	componentLogger := logger.With(logging.Field{Key: "backend", Value: "nethttp"})

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	componentLogger.Debug("created nethttp webclient",
		logging.Field{Key: "timeout", Value: httpClient.Timeout.String()})

	return &NetHTTPClient{
		client:  httpClient,
		headers: cfg.DefaultHeaders,
		logger:  componentLogger,
	}, nil
}

// Do implements the generic request execution using net/http.
func (nhc *NetHTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	nhc.logger.Debug("api request",
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "url", Value: req.URL})

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range nhc.headers {
		httpReq.Header.Set(k, v)
	}
	for k, vs := range req.Headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := nhc.client.Do(httpReq)
	if err != nil {
		nhc.logger.Warn("no response from server",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: req.URL},
			logging.Err(err))
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		nhc.logger.Warn("failed to read response body",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: req.URL},
			logging.Err(err))
		return nil, fmt.Errorf("read body: %w", err)
	}

	out := &Response{
		Request:    req,
		Body:       body,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now(),
		Elapsed:    time.Since(start),
	}

	fields := []logging.Field{
		{Key: "status", Value: resp.StatusCode},
		{Key: "method", Value: method},
		{Key: "url", Value: req.URL},
		{Key: "elapsed_ms", Value: out.Elapsed.Milliseconds()},
	}
	if out.OK() {
		nhc.logger.Info("api response", fields...)
	} else {
		nhc.logger.Warn("api error response", append(fields, logging.Field{Key: "body", Value: truncate(body, 512)})...)
	}
	return out, nil
}

// Get is a convenience method for simple GET requests
func (nhc *NetHTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	return nhc.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

func (nhc *NetHTTPClient) Close() error {
	nhc.client.CloseIdleConnections()
	return nil
}

// HTTPClient returns the underlying *http.Client
func (nhc *NetHTTPClient) HTTPClient() *http.Client {
	return nhc.client
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
