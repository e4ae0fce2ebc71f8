package ratelimit

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Scope identifies a group of endpoints sharing one request budget.
type Scope string

const (
	// ScopeList is the paginated file-list endpoint.
	ScopeList Scope = "file-list"

	// ScopeControl is start/cancel/pause download requests.
	ScopeControl Scope = "download-control"

	// ScopeProbe is the latency probe.
	ScopeProbe Scope = "probe"
)

// ScopeConfig holds the rate limit configuration for a single scope.
type ScopeConfig struct {
	Scope         Scope
	RatePerSec    float64
	BurstCapacity float64
}

// EndpointRule maps an API endpoint pattern to its scope.
type EndpointRule struct {
	// Pattern is matched with strings.Contains so path parameters need no
	// placeholders.
	Pattern string

	// Method is the HTTP method to match, or "" for any method.
	Method string

	Scope Scope
}

// specificity returns a score for rule precedence. Higher = more specific.
func (r EndpointRule) specificity() int {
	score := len(r.Pattern)
	if r.Method != "" {
		score += 1000 // Method-specific rules always win over method-agnostic
	}
	return score
}

// Registry maps endpoints to scopes and scopes to their budgets.
type Registry struct {
	// rules sorted by specificity descending (most specific first)
	rules        []EndpointRule
	scopeConfigs map[Scope]ScopeConfig
	defaultScope Scope
}

// NewRegistry returns the registry of the file-list backend endpoints.
func NewRegistry() *Registry {
	r := &Registry{
		defaultScope: ScopeList,
		scopeConfigs: map[Scope]ScopeConfig{
			ScopeList:    {Scope: ScopeList, RatePerSec: ListRatePerSec, BurstCapacity: ListBurstCapacity},
			ScopeControl: {Scope: ScopeControl, RatePerSec: ControlRatePerSec, BurstCapacity: ControlBurstCapacity},
			ScopeProbe:   {Scope: ScopeProbe, RatePerSec: ProbeRatePerSec, BurstCapacity: ProbeBurstCapacity},
		},
	}

	r.rules = []EndpointRule{
		{Pattern: "/files", Method: http.MethodGet, Scope: ScopeList},
		{Pattern: "/file/", Method: http.MethodPost, Scope: ScopeControl},
		{Pattern: "/ping", Method: http.MethodGet, Scope: ScopeProbe},
	}

	sort.Slice(r.rules, func(i, j int) bool {
		return r.rules[i].specificity() > r.rules[j].specificity()
	})

	return r
}

// ResolveScope returns the most specific scope matching method and path, or
// the default scope.
func (r *Registry) ResolveScope(method, path string) Scope {
	for _, rule := range r.rules {
		if !strings.Contains(path, rule.Pattern) {
			continue
		}
		if rule.Method != "" && !strings.EqualFold(rule.Method, method) {
			continue
		}
		return rule.Scope
	}
	return r.defaultScope
}

// GetScopeConfig returns the configuration for a scope, or the default
// scope's when unknown.
func (r *Registry) GetScopeConfig(scope Scope) ScopeConfig {
	if cfg, ok := r.scopeConfigs[scope]; ok {
		return cfg
	}
	return r.scopeConfigs[r.defaultScope]
}

// AllScopes returns all configured scope names.
func (r *Registry) AllScopes() []Scope {
	scopes := make([]Scope, 0, len(r.scopeConfigs))
	for s := range r.scopeConfigs {
		scopes = append(scopes, s)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes
}

// NewLimiters returns one limiter per configured scope.
func (r *Registry) NewLimiters() map[Scope]*RateLimiter {
	limiters := make(map[Scope]*RateLimiter, len(r.scopeConfigs))
	for s, cfg := range r.scopeConfigs {
		limiters[s] = NewScopeLimiter(cfg)
	}
	return limiters
}

// ScopeDisplayString returns a human-readable description of the scope for logging.
func (r *Registry) ScopeDisplayString(scope Scope) string {
	cfg, ok := r.scopeConfigs[scope]
	if !ok {
		return string(scope) + " (unknown scope)"
	}
	return fmt.Sprintf("%s (%.2f/sec, burst %.0f)", scope, cfg.RatePerSec, cfg.BurstCapacity)
}
