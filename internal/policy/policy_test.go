package policy

import (
	"testing"
	"time"

	"github.com/echomind/echomind/internal/protocol"
)

func TestAccessLevelFallbacks(t *testing.T) {
	p := Default()

	// Explicit entry
	if got := p.AccessLevelFor("Therapist", CategoryMedical); got != AccessRead {
		t.Errorf("Therapist/medical: got %q, want read", got)
	}
	// Unknown agent falls back to wildcard
	if got := p.AccessLevelFor("Stranger", CategoryGeneral); got != AccessRead {
		t.Errorf("Stranger/general: got %q, want read", got)
	}
	// Unknown agent, category denied by wildcard
	if got := p.AccessLevelFor("Stranger", CategoryMedical); got != AccessNone {
		t.Errorf("Stranger/medical: got %q, want none", got)
	}
}

func TestUnknownAgentAndCategoryResolvesToNone(t *testing.T) {
	p := New(
		map[string]map[Category]AccessLevel{
			Wildcard: {CategoryGeneral: AccessRead},
		},
		map[string]Scope{},
	)
	if got := p.AccessLevelFor("Ghost", CategoryMedical); got != AccessNone {
		t.Errorf("got %q, want none", got)
	}
	if p.CheckAccess("Ghost", CategoryMedical, protocol.OpRead) {
		t.Error("expected read denied for unlisted agent and category")
	}
}

func TestCheckAccessOperations(t *testing.T) {
	p := Default()

	tests := []struct {
		agent    string
		category Category
		op       protocol.Operation
		want     bool
	}{
		{"EchoMind", CategoryGeneral, protocol.OpRead, true},
		{"EchoMind", CategoryGeneral, protocol.OpWrite, true},
		{"EchoMind", CategoryGeneral, protocol.OpDelete, false},
		{"EchoMind", CategoryMedical, protocol.OpRead, false},
		{"Bridge", CategoryMedical, protocol.OpRead, false},
		{"Therapist", CategoryTherapeutic, protocol.OpUpdate, true},
		{protocol.MemoryService, CategoryMedical, protocol.OpDelete, true},
		{"EchoMind", CategoryGeneral, protocol.Operation("purge"), false},
		{protocol.MemoryService, CategoryGeneral, protocol.Operation("purge"), true},
	}
	for _, tt := range tests {
		if got := p.CheckAccess(tt.agent, tt.category, tt.op); got != tt.want {
			t.Errorf("CheckAccess(%s, %s, %s) = %v, want %v", tt.agent, tt.category, tt.op, got, tt.want)
		}
	}
}

// Granting read implies the grant survives at every higher level.
func TestCheckAccessMonotonicInLevel(t *testing.T) {
	levels := []AccessLevel{AccessRead, AccessWrite, AccessAdmin}
	for i, base := range levels {
		p := New(
			map[string]map[Category]AccessLevel{"A": {CategoryGeneral: base}},
			map[string]Scope{},
		)
		if !p.CheckAccess("A", CategoryGeneral, protocol.OpRead) {
			t.Errorf("read denied at level %q", base)
		}
		for _, higher := range levels[i:] {
			ph := New(
				map[string]map[Category]AccessLevel{"A": {CategoryGeneral: higher}},
				map[string]Scope{},
			)
			if !ph.CheckAccess("A", CategoryGeneral, protocol.OpRead) {
				t.Errorf("read granted at %q but denied at higher level %q", base, higher)
			}
		}
	}
}

func TestScopeCutoff(t *testing.T) {
	p := Default()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cutoff, ok := p.ScopeCutoff("Bridge", now)
	if !ok {
		t.Fatal("expected bounded scope for Bridge")
	}
	if want := now.AddDate(0, 0, -30); !cutoff.Equal(want) {
		t.Errorf("Bridge cutoff: got %v, want %v", cutoff, want)
	}

	if _, ok := p.ScopeCutoff("Therapist", now); ok {
		t.Error("Therapist has scope all; expected no cutoff")
	}

	cutoff, ok = p.ScopeCutoff("Stranger", now)
	if !ok {
		t.Fatal("expected bounded scope via wildcard")
	}
	if want := now.Add(-24 * time.Hour); !cutoff.Equal(want) {
		t.Errorf("wildcard cutoff: got %v, want %v", cutoff, want)
	}
}
