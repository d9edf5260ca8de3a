package client

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kylinctl/kylinctl/internal/apperrors"
)

const userDisabledMessage = "User is disabled"

// HTTPError is a failed response from the server. It unwraps to the
// matching sentinel in apperrors.
type HTTPError struct {
	Method  string
	URL     string
	Status  int
	Code    string
	Message string
	// Confused is set when the error body could not be decoded.
	Confused bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Message)
}

func (e *HTTPError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Confused {
		errs = append(errs, apperrors.ErrConfusedResponse)
	}
	return errs
}

func (e *HTTPError) sentinel() error {
	switch {
	case e.Status == http.StatusUnauthorized && strings.Contains(e.Message, userDisabledMessage):
		return apperrors.ErrUserDisabled
	case e.Status == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	default:
		return apperrors.ErrKylin
	}
}

// errorBody covers the v1 ({exception,url}) and enveloped ({code,msg})
// error shapes.
type errorBody struct {
	Code      string `json:"code"`
	Msg       string `json:"msg"`
	Exception string `json:"exception"`
}

func newHTTPError(method, target string, status int, data []byte) *HTTPError {
	e := &HTTPError{Method: method, URL: target, Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || (body.Msg == "" && body.Exception == "") {
		e.Confused = true
		e.Message = truncate(strings.TrimSpace(string(data)), 512)
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = body.Code
	e.Message = body.Msg
	if e.Message == "" {
		e.Message = body.Exception
	}
	return e
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
