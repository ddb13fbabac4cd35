// package routes builds the ordered list of egress routes tried for every extractor call
package routes

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/desertthunder/mediafetch/internal/models"
	"github.com/desertthunder/mediafetch/internal/shared"
)

// Selector yields route candidates: direct first, then the configured proxies in a fresh random order.
type Selector struct {
	proxies []string

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a [Selector].
type Option func(*Selector)

// WithRand fixes the shuffle source, for reproducible ordering in tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) { s.rnd = r }
}

// NewSelector copies the proxy list out of cfg, dropping blanks and duplicates.
func NewSelector(cfg shared.NetworkConfig, opts ...Option) *Selector {
	seen := make(map[string]bool, len(cfg.Proxies))
	proxies := make([]string, 0, len(cfg.Proxies))
	for _, p := range cfg.Proxies {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		proxies = append(proxies, p)
	}

	s := &Selector{proxies: proxies}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidates returns direct followed by every proxy, reshuffled on each call.
func (s *Selector) Candidates() []models.RouteCandidate {
	shuffled := append([]string(nil), s.proxies...)
	s.shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	out := make([]models.RouteCandidate, 0, len(shuffled)+1)
	out = append(out, models.Direct())
	for _, p := range shuffled {
		out = append(out, models.RouteCandidate{Proxy: p})
	}
	return out
}

// Len is the number of configured proxies.
func (s *Selector) Len() int { return len(s.proxies) }

// Describe lists the candidates in configuration order with credentials redacted.
func (s *Selector) Describe() []string {
	out := []string{models.Direct().String()}
	for _, p := range s.proxies {
		out = append(out, models.RedactProxy(p))
	}
	return out
}

func (s *Selector) shuffle(n int, swap func(i, j int)) {
	if s.rnd == nil {
		rand.Shuffle(n, swap)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(n, swap)
}
