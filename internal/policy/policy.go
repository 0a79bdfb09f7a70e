// Package policy enforces which agents may touch which categories of a
// user's stored memory, and how far back in time they may look.
package policy

import (
	"time"

	"github.com/echomind/echomind/internal/protocol"
)

// AccessLevel is an ordered permission: none < read < write < admin.
type AccessLevel string

const (
	AccessNone  AccessLevel = "none"
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
	AccessAdmin AccessLevel = "admin"
)

// Category is the unit of memory access control.
type Category string

const (
	CategoryGeneral     Category = "general"
	CategoryEmotional   Category = "emotional"
	CategoryPersonal    Category = "personal"
	CategoryMedical     Category = "medical"
	CategoryTherapeutic Category = "therapeutic"
	CategorySystem      Category = "system"
	CategorySession     Category = "session"
)

// Scope bounds how far back an agent may read.
type Scope string

const (
	ScopeCurrentSession Scope = "current_session" // last 24h
	ScopeRecent         Scope = "recent"          // last 30 days
	ScopeHistorical     Scope = "historical"      // last 365 days
	ScopeAll            Scope = "all"             // unbounded
)

// Wildcard is the fallback key for agents without an explicit table entry.
const Wildcard = "*"

// Policy holds the per-agent access tables. It is loaded once at
// construction and never mutated afterwards; concurrent lookups are safe.
type Policy struct {
	levels map[string]map[Category]AccessLevel
	scopes map[string]Scope
}

// New builds a policy from explicit tables. The maps are copied so the
// caller cannot mutate the policy after construction.
func New(levels map[string]map[Category]AccessLevel, scopes map[string]Scope) *Policy {
	p := &Policy{
		levels: make(map[string]map[Category]AccessLevel, len(levels)),
		scopes: make(map[string]Scope, len(scopes)),
	}
	for agent, table := range levels {
		copied := make(map[Category]AccessLevel, len(table))
		for cat, lvl := range table {
			copied[cat] = lvl
		}
		p.levels[agent] = copied
	}
	for agent, scope := range scopes {
		p.scopes[agent] = scope
	}
	return p
}

// Default returns the built-in access tables for the core agents.
func Default() *Policy {
	return New(
		map[string]map[Category]AccessLevel{
			"EchoMind": {
				CategoryGeneral:     AccessWrite,
				CategoryEmotional:   AccessWrite,
				CategoryPersonal:    AccessRead,
				CategoryMedical:     AccessNone,
				CategoryTherapeutic: AccessRead,
				CategorySystem:      AccessRead,
				CategorySession:     AccessWrite,
			},
			"Therapist": {
				CategoryGeneral:     AccessWrite,
				CategoryEmotional:   AccessWrite,
				CategoryPersonal:    AccessRead,
				CategoryMedical:     AccessRead,
				CategoryTherapeutic: AccessWrite,
				CategorySystem:      AccessRead,
				CategorySession:     AccessWrite,
			},
			"Bridge": {
				CategoryGeneral:     AccessRead,
				CategoryEmotional:   AccessRead,
				CategoryPersonal:    AccessRead,
				CategoryMedical:     AccessNone,
				CategoryTherapeutic: AccessNone,
				CategorySystem:      AccessRead,
				CategorySession:     AccessWrite,
			},
			protocol.MemoryService: {
				CategoryGeneral:     AccessAdmin,
				CategoryEmotional:   AccessAdmin,
				CategoryPersonal:    AccessAdmin,
				CategoryMedical:     AccessAdmin,
				CategoryTherapeutic: AccessAdmin,
				CategorySystem:      AccessAdmin,
				CategorySession:     AccessAdmin,
			},
			Wildcard: {
				CategoryGeneral:     AccessRead,
				CategoryEmotional:   AccessRead,
				CategoryPersonal:    AccessNone,
				CategoryMedical:     AccessNone,
				CategoryTherapeutic: AccessNone,
				CategorySystem:      AccessRead,
				CategorySession:     AccessWrite,
			},
		},
		map[string]Scope{
			"EchoMind":             ScopeAll,
			"Therapist":            ScopeAll,
			"Bridge":               ScopeRecent,
			protocol.MemoryService: ScopeAll,
			Wildcard:               ScopeCurrentSession,
		},
	)
}

// AccessLevelFor returns the agent's level for a category, falling back to
// the wildcard table and finally to none.
func (p *Policy) AccessLevelFor(agent string, category Category) AccessLevel {
	table, ok := p.levels[agent]
	if !ok {
		table = p.levels[Wildcard]
	}
	if lvl, ok := table[category]; ok {
		return lvl
	}
	return AccessNone
}

// ScopeFor returns the agent's time scope, falling back to the wildcard
// entry and finally to current_session.
func (p *Policy) ScopeFor(agent string) Scope {
	if scope, ok := p.scopes[agent]; ok {
		return scope
	}
	if scope, ok := p.scopes[Wildcard]; ok {
		return scope
	}
	return ScopeCurrentSession
}

// CheckAccess reports whether the agent may perform the operation on the
// category. Unknown operations require admin, so they deny by default.
func (p *Policy) CheckAccess(agent string, category Category, op protocol.Operation) bool {
	level := p.AccessLevelFor(agent, category)
	switch op {
	case protocol.OpRead:
		return level == AccessRead || level == AccessWrite || level == AccessAdmin
	case protocol.OpWrite, protocol.OpUpdate:
		return level == AccessWrite || level == AccessAdmin
	case protocol.OpDelete:
		return level == AccessAdmin
	default:
		return level == AccessAdmin
	}
}

// ScopeCutoff returns the earliest timestamp the agent may read, relative
// to now. The second return is false when the scope is unbounded.
func (p *Policy) ScopeCutoff(agent string, now time.Time) (time.Time, bool) {
	switch p.ScopeFor(agent) {
	case ScopeCurrentSession:
		return now.Add(-24 * time.Hour), true
	case ScopeRecent:
		return now.AddDate(0, 0, -30), true
	case ScopeHistorical:
		return now.AddDate(0, 0, -365), true
	default:
		return time.Time{}, false
	}
}
