package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/mediafetch/internal/shared"
	"github.com/desertthunder/mediafetch/internal/tasks"
)

const (
	msgInternal    = "An unexpected server error occurred. Please try again later."
	msgRateLimited = "Too many requests. Please slow down and try again."
	msgMissingURL  = "URL is missing."
	msgNotFound    = "File not found."

	msgShuttingDown = "The server is shutting down. Please try again shortly."
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage is the text placed in an error body. Internal errors are never echoed.
func clientMessage(status int, err error) string {
	switch {
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		return tasks.UserMessage(err)
	case errors.Is(err, shared.ErrShuttingDown):
		return msgShuttingDown
	case status == http.StatusTooManyRequests:
		return msgRateLimited
	case status >= http.StatusInternalServerError:
		return msgInternal
	default:
		return err.Error()
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: clientMessage(status, err)})
}
