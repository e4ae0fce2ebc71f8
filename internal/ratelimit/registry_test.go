package ratelimit

import (
	"strings"
	"testing"
)

func TestResolveScope(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		method string
		path   string
		want   Scope
	}{
		{"GET", "/telegram/1/chat/-100/files?cursor=abc", ScopeList},
		{"POST", "/file/start-download", ScopeControl},
		{"POST", "/file/start-download-multiple", ScopeControl},
		{"POST", "/file/toggle-pause-download", ScopeControl},
		{"GET", "/telegram/1/ping", ScopeProbe},
		{"GET", "/unknown", ScopeList},
		{"POST", "/telegram/1/chat/-100/files", ScopeList},
	}
	for _, tt := range tests {
		if got := r.ResolveScope(tt.method, tt.path); got != tt.want {
			t.Errorf("ResolveScope(%s %s) = %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestGetScopeConfig(t *testing.T) {
	r := NewRegistry()

	cfg := r.GetScopeConfig(ScopeControl)
	if cfg.RatePerSec != ControlRatePerSec || cfg.BurstCapacity != ControlBurstCapacity {
		t.Errorf("unexpected control config: %+v", cfg)
	}
	if got := r.GetScopeConfig("nope"); got.Scope != ScopeList {
		t.Errorf("unknown scope should fall back to default, got %s", got.Scope)
	}
}

func TestNewLimiters(t *testing.T) {
	r := NewRegistry()
	limiters := r.NewLimiters()

	if len(limiters) != len(r.AllScopes()) {
		t.Fatalf("expected one limiter per scope, got %d", len(limiters))
	}
	if tokens := limiters[ScopeList].GetCurrentTokens(); tokens < ListBurstCapacity-0.1 {
		t.Errorf("list limiter should start full, got %.2f", tokens)
	}
}

func TestScopeDisplayString(t *testing.T) {
	r := NewRegistry()
	if s := r.ScopeDisplayString(ScopeProbe); !strings.HasPrefix(s, "probe (") {
		t.Errorf("unexpected display string %q", s)
	}
	if s := r.ScopeDisplayString("x"); !strings.Contains(s, "unknown") {
		t.Errorf("unexpected display string %q", s)
	}
}
