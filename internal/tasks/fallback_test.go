package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
)

func candidates(proxies ...string) []models.RouteCandidate {
	out := []models.RouteCandidate{}
	for _, p := range proxies {
		out = append(out, models.RouteCandidate{Proxy: p})
	}
	return out
}

func TestRunWithFallback(t *testing.T) {
	logger := shared.DiscardLogger()

	t.Run("first success makes exactly one attempt", func(t *testing.T) {
		var seen []models.RouteCandidate
		got, err := RunWithFallback(context.Background(), logger, candidates("", "p1", "p2"),
			func(_ context.Context, c models.RouteCandidate) (string, error) {
				seen = append(seen, c)
				return "ok", nil
			})
		if err != nil || got != "ok" {
			t.Fatalf("got %q, %v", got, err)
		}
		if len(seen) != 1 || !seen[0].IsDirect() {
			t.Errorf("expected a single direct attempt, got %v", seen)
		}
	})

	t.Run("all failures try each candidate once in order and classify the last", func(t *testing.T) {
		routes := candidates("", "p1", "p2")
		raw := map[string]string{
			"":   "HTTP Error 429: Too Many Requests",
			"p1": "Video unavailable",
			"p2": "ERROR: Private video",
		}

		var seen []string
		_, err := RunWithFallback(context.Background(), logger, routes,
			func(_ context.Context, c models.RouteCandidate) (int, error) {
				seen = append(seen, c.Proxy)
				return 0, errors.New(raw[c.Proxy])
			})

		if strings.Join(seen, ",") != ",p1,p2" {
			t.Errorf("attempt order = %q", strings.Join(seen, ","))
		}

		var fe *FallbackError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FallbackError, got %T", err)
		}
		if err.Error() != MsgPrivate {
			t.Errorf("message = %q, want %q", err.Error(), MsgPrivate)
		}
		if len(fe.Attempts) != 3 {
			t.Errorf("expected 3 recorded attempts, got %d", len(fe.Attempts))
		}
		if !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Error("expected ErrUpstreamUnavailable in chain")
		}
		if fe.Last().Error() != "ERROR: Private video" {
			t.Errorf("last = %v", fe.Last())
		}
		if !strings.Contains(fe.Detail(), "#2 p1: Video unavailable") {
			t.Errorf("detail = %q", fe.Detail())
		}
	})

	t.Run("two bad proxies then direct succeeds on the third attempt", func(t *testing.T) {
		routes := candidates("http://bad1:1", "http://bad2:2", "")
		attempts := 0
		got, err := RunWithFallback(context.Background(), logger, routes,
			func(_ context.Context, c models.RouteCandidate) (string, error) {
				attempts++
				if !c.IsDirect() {
					return "", fmt.Errorf("proxy %s refused connection", c)
				}
				return "media.mp4", nil
			})
		if err != nil || got != "media.mp4" {
			t.Fatalf("got %q, %v", got, err)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := RunWithFallback(context.Background(), logger, nil,
			func(context.Context, models.RouteCandidate) (int, error) { return 1, nil })
		if !errors.Is(err, shared.ErrNoCandidates) {
			t.Errorf("expected ErrNoCandidates, got %v", err)
		}
	})

	t.Run("cancellation stops further attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		_, err := RunWithFallback(ctx, logger, candidates("", "p1", "p2"),
			func(ctx context.Context, _ models.RouteCandidate) (int, error) {
				attempts++
				cancel()
				return 0, ctx.Err()
			})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("nil logger is tolerated", func(t *testing.T) {
		_, err := RunWithFallback(context.Background(), nil, candidates(""),
			func(context.Context, models.RouteCandidate) (int, error) { return 0, errors.New("boom") })
		if err == nil || err.Error() != MsgInvalid {
			t.Errorf("expected generic message, got %v", err)
		}
	})
}

func TestUserMessage(t *testing.T) {
	fe := &FallbackError{Attempts: []AttemptError{{Err: errors.New("x")}}, Category: CategoryGeoRestricted}

	tc := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "fallback", err: fmt.Errorf("wrapped: %w", fe), want: MsgGeoRestricted},
		{name: "cancelled", err: context.Canceled, want: "The download was cancelled."},
		{name: "raw", err: errors.New("Too Many Requests"), want: MsgRateLimited},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
