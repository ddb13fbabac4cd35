package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
)

// AttemptError records one failed route.
type AttemptError struct {
	Route models.RouteCandidate
	Err   error
}

// FallbackError is returned when every route candidate failed.
//
// Error() is the classified, user-safe message; the raw failures stay in Attempts.
type FallbackError struct {
	Attempts []AttemptError
	Category Category
}

func (e *FallbackError) Error() string { return e.Category.Message() }

// Last is the final attempt's raw error.
func (e *FallbackError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Unwrap exposes [shared.ErrUpstreamUnavailable] and the last raw error to errors.Is/As.
func (e *FallbackError) Unwrap() []error {
	errs := []error{shared.ErrUpstreamUnavailable}
	if last := e.Last(); last != nil {
		errs = append(errs, last)
	}
	return errs
}

// Detail joins every attempt's route and raw error for server-side logs.
func (e *FallbackError) Detail() string {
	parts := make([]string, 0, len(e.Attempts))
	for i, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("#%d %s: %v", i+1, a.Route, a.Err))
	}
	return strings.Join(parts, "; ")
}

// RunWithFallback calls op with each candidate in order and returns the first success.
//
// If every candidate fails the result is a [*FallbackError] classified from the last
// failure. Cancellation of ctx stops the loop and returns ctx.Err().
func RunWithFallback[T any](
	ctx context.Context,
	logger *log.Logger,
	candidates []models.RouteCandidate,
	op func(context.Context, models.RouteCandidate) (T, error),
) (T, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, shared.ErrNoCandidates
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	failures := make([]AttemptError, 0, len(candidates))
	for i, route := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx, route)
		if err == nil {
			logger.Debug("attempt succeeded", "route", route.String(), "attempt", i+1)
			return result, nil
		}

		failures = append(failures, AttemptError{Route: route, Err: err})
		logger.Warn("attempt failed", "route", route.String(), "attempt", i+1, "of", len(candidates), "err", err)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
	}

	last := failures[len(failures)-1].Err
	return zero, &FallbackError{Attempts: failures, Category: Categorize(last.Error())}
}

// UserMessage converts any pipeline error into text fit for a client.
func UserMessage(err error) string {
	var fe *FallbackError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return fe.Error()
	case errors.Is(err, context.Canceled):
		return "The download was cancelled."
	default:
		return Classify(err.Error())
	}
}
