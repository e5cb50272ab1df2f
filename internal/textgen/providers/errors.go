package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the service answers with no text.
var ErrEmptyResponse = errors.New("empty response")

var transientStatuses = []string{
	"429", "500", "503", "504",
	"RESOURCE_EXHAUSTED", "INTERNAL", "UNAVAILABLE", "DEADLINE_EXCEEDED",
}

// IsTransient reports whether err is worth another attempt: rate limiting,
// server-side failures, timeouts and empty responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse) {
		return true
	}

	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return transientCode(gerr.Code) || transientStatus(gerr.Status)
	}
	var gperr *genai.APIError
	if errors.As(err, &gperr) {
		return transientCode(gperr.Code) || transientStatus(gperr.Status)
	}
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return transientCode(aerr.StatusCode)
	}

	return transientStatus(err.Error())
}

func transientCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func transientStatus(msg string) bool {
	for _, s := range transientStatuses {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
