package ratelimit

import (
	"net/http"
	"sort"
	"strings"
)

// Scope identifies a group of endpoints that share one token bucket.
type Scope string

const (
	// ScopeAPI covers JSON metadata calls (listings, folder and file mutations).
	ScopeAPI Scope = "api"

	// ScopeTransfer covers byte transfers: uploads, downloads and thumbnail fetches.
	ScopeTransfer Scope = "transfer"
)

// EndpointRule maps an API path pattern to its scope.
type EndpointRule struct {
	// Pattern is matched with strings.Contains so path parameters need no escaping.
	Pattern string

	// Suffix restricts the match to paths ending in Pattern. Collection
	// endpoints use it so nested routes under them are not caught.
	Suffix bool

	// Method is the HTTP method to match, or "" for any method.
	Method string

	Scope Scope
}

func (r EndpointRule) specificity() int {
	score := len(r.Pattern)
	if r.Suffix {
		score += 500
	}
	if r.Method != "" {
		score += 1000
	}
	return score
}

func (r EndpointRule) matches(path string) bool {
	if r.Suffix {
		return strings.HasSuffix(path, r.Pattern)
	}
	return strings.Contains(path, r.Pattern)
}

// Registry routes requests to per-scope limiters.
type Registry struct {
	rules        []EndpointRule
	limiters     map[Scope]*RateLimiter
	defaultScope Scope
}

// NewRegistry creates a registry whose API scope refills at apiRate with
// burst apiBurst. Transfers get four times the API rate.
func NewRegistry(apiRate, apiBurst float64) *Registry {
	r := &Registry{
		rules: []EndpointRule{
			{Pattern: "/download", Method: http.MethodGet, Scope: ScopeTransfer},
			{Pattern: "/transfers/download_multiple/", Method: http.MethodPost, Scope: ScopeTransfer},
			{Pattern: "/transfers/", Method: http.MethodPost, Suffix: true, Scope: ScopeTransfer},
		},
		limiters: map[Scope]*RateLimiter{
			ScopeAPI:      NewRateLimiter(apiRate, apiBurst),
			ScopeTransfer: NewRateLimiter(apiRate*4, apiBurst),
		},
		defaultScope: ScopeAPI,
	}
	sort.SliceStable(r.rules, func(i, j int) bool {
		return r.rules[i].specificity() > r.rules[j].specificity()
	})
	return r
}

// ResolveScope returns the scope for a request.
func (r *Registry) ResolveScope(method, path string) Scope {
	for _, rule := range r.rules {
		if rule.Method != "" && !strings.EqualFold(rule.Method, method) {
			continue
		}
		if rule.matches(path) {
			return rule.Scope
		}
	}
	return r.defaultScope
}

// Limiter returns the limiter for scope, falling back to the default scope.
func (r *Registry) Limiter(scope Scope) *RateLimiter {
	if l, ok := r.limiters[scope]; ok {
		return l
	}
	return r.limiters[r.defaultScope]
}

// For resolves the scope of a request and returns its limiter.
func (r *Registry) For(method, path string) *RateLimiter {
	return r.Limiter(r.ResolveScope(method, path))
}
