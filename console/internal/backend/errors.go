package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned for every failed gateway call: non-2xx responses and
// transport failures alike. StatusCode is 0 when no response was received.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is an APIError for a rejected or
// missing bearer token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// IsTransport reports whether err failed before any response arrived.
func IsTransport(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 0
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type detailItem struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

func newAPIError(code int, status string, body []byte) *APIError {
	return &APIError{StatusCode: code, Message: errorMessage(code, status, body)}
}

// errorMessage picks the human readable text of a failed response:
// detail, then message, then error, then the status line, then "HTTP <code>".
func errorMessage(code int, status string, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if msg := detailMessage(eb.Detail); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(eb.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(eb.Error); msg != "" {
			return msg
		}
	}
	if status = strings.TrimSpace(status); status != "" {
		return status
	}
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("HTTP %d", code)
}

// detailMessage accepts either a plain string or a list of validation
// entries carrying msg/message fields.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []detailItem
	if err := json.Unmarshal(raw, &items); err == nil {
		var msgs []string
		for _, it := range items {
			msg := it.Msg
			if msg == "" {
				msg = it.Message
			}
			if msg = strings.TrimSpace(msg); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
