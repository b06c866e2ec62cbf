package upstream

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

// Error is a non-2xx reply from an upstream service.
type Error struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Message)
}

// IsStatus reports whether err is an upstream reply with the given status.
func IsStatus(err error, status int) bool {
	var upErr *Error
	return errors.As(err, &upErr) && upErr.StatusCode == status
}

// StatusCode returns the HTTP status the proxy should reply with for err:
// the upstream status when the upstream answered, 500 otherwise.
func StatusCode(err error) int {
	var upErr *Error
	if errors.As(err, &upErr) && upErr.StatusCode > 0 {
		return upErr.StatusCode
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode
	}

	return http.StatusInternalServerError
}

// Message returns the most specific human readable message carried by err.
func Message(err error) string {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Message
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	return err.Error()
}

// newError builds an Error from an upstream reply. LiteLLM and JupyterHub
// disagree on where the message lives, so a few known paths are tried.
func newError(service string, status int, body []byte) *Error {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "detail.error", "detail", "message", "error"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
				msg = v.String()
				break
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Service: service, StatusCode: status, Message: msg}
}
