package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Scope partitions the resource tree by relationship to the current user.
type Scope string

const (
	ScopeMine   Scope = "mine"
	ScopeShared Scope = "shared"
	ScopeSent   Scope = "sent"
)

// RootLabel is the breadcrumb label of the scope root.
func (s Scope) RootLabel() string {
	switch s {
	case ScopeShared:
		return "Shared with me"
	case ScopeSent:
		return "Sent"
	default:
		return "My Files"
	}
}

// ParseScope parses a scope name; empty means ScopeMine.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeMine:
		return ScopeMine, nil
	case ScopeShared:
		return ScopeShared, nil
	case ScopeSent:
		return ScopeSent, nil
	}
	return "", fmt.Errorf("unknown scope %q (want mine, shared or sent)", s)
}

// Breadcrumb is one step of the path from the scope root to the current folder.
// The root sentinel has a nil ID.
type Breadcrumb struct {
	ID   *int64
	Name string
}

// IsRoot reports whether b is the root sentinel.
func (b Breadcrumb) IsRoot() bool {
	return b.ID == nil
}

// RootBreadcrumb returns the root sentinel for a scope.
func RootBreadcrumb(scope Scope) Breadcrumb {
	return Breadcrumb{Name: scope.RootLabel()}
}

// MoveOption is a flattened folder tree entry offered as a move target.
type MoveOption struct {
	ID    *int64
	Name  string
	Depth int
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
