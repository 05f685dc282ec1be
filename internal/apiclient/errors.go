package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a failed API call.
type Kind int

const (
	// KindTransport: no response arrived (refused, DNS, timeout).
	KindTransport Kind = iota + 1
	// KindRequest: the server answered with a non-2xx status.
	KindRequest
	// KindDecode: a 2xx body could not be decoded or failed validation.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRequest:
		return "request"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation except the detached history
// save. Message is already suitable for showing to a user.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the text a view should display for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// IsTransport reports whether err means the backend could not be reached.
func IsTransport(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindTransport
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Message          json.RawMessage   `json:"message"`
	Detail           json.RawMessage   `json:"detail"`
	ValidationErrors []validationError `json:"validation_errors"`
}

// messageFromBody extracts a human message from an error body, trying the
// message field, then detail, then the joined validation_errors.
func messageFromBody(body []byte) (string, bool) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	if s := rawString(env.Message); s != "" {
		return s, true
	}
	if s := detailString(env.Detail); s != "" {
		return s, true
	}
	if len(env.ValidationErrors) > 0 {
		parts := make([]string, 0, len(env.ValidationErrors))
		for _, v := range env.ValidationErrors {
			parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
		}
		return strings.Join(parts, ", "), true
	}
	return "", false
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// detailString handles both a plain string and the list form
// [{"loc": [...], "msg": "..."}] some frameworks emit.
func detailString(raw json.RawMessage) string {
	if s := rawString(raw); s != "" {
		return s
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if len(it.Loc) == 0 {
			parts = append(parts, it.Msg)
			continue
		}
		loc := make([]string, len(it.Loc))
		for i, l := range it.Loc {
			loc[i] = FormatValue(l)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(loc, "."), it.Msg))
	}
	return strings.Join(parts, ", ")
}

func requestError(op string, status int, body []byte) *Error {
	msg, ok := messageFromBody(body)
	if !ok {
		msg = fmt.Sprintf("Analysis service error (HTTP %d). Please try again.", status)
	}
	return &Error{Op: op, Kind: KindRequest, Status: status, Message: msg}
}

func transportError(op, baseURL string, err error) *Error {
	msg := fmt.Sprintf("Connection error: backend unreachable at %s. Check that the analysis API is running.", baseURL)
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = fmt.Sprintf("Connection error: backend at %s timed out.", baseURL)
	}
	return &Error{Op: op, Kind: KindTransport, Message: msg, Err: err}
}

func decodeError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindDecode, Message: "Unexpected response from analysis service.", Err: err}
}
