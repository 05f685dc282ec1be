package webclient

import (
	"net/http"
	"time"
)

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
	Elapsed    time.Duration
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
