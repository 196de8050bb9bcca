package parammapper

import (
	"sort"
	"strings"
)

// FilterKind selects how a Filter treats its action set
type FilterKind int

const (
	// Always applies the rule to every action
	Always FilterKind = iota
	// OnlyActions applies the rule to the listed actions
	OnlyActions
	// ExceptActions applies the rule to every action but the listed ones
	ExceptActions
)

func (k FilterKind) String() string {
	switch k {
	case OnlyActions:
		return "only"
	case ExceptActions:
		return "except"
	default:
		return "always"
	}
}

// Filter restricts which handler actions a rule applies to.
// The zero value is the Always filter.
type Filter struct {
	kind    FilterKind
	actions map[string]struct{}
}

// AlwaysFilter returns a filter that matches every action
func AlwaysFilter() Filter {
	return Filter{kind: Always}
}

// OnlyFilter matches only the given actions
func OnlyFilter(actions ...string) Filter {
	return newFilter(OnlyActions, actions)
}

// ExceptFilter matches every action except the given ones
func ExceptFilter(actions ...string) Filter {
	return newFilter(ExceptActions, actions)
}

func newFilter(kind FilterKind, actions []string) Filter {
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return Filter{kind: kind, actions: set}
}

// Kind returns the filter kind
func (f Filter) Kind() FilterKind {
	return f.kind
}

// Actions returns the filtered action names in sorted order
func (f Filter) Actions() []string {
	out := make([]string, 0, len(f.actions))
	for a := range f.actions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Matches reports whether a rule with this filter applies to action.
// Action names are case-sensitive. An empty action never matches an
// Only or Except filter.
func (f Filter) Matches(action string) bool {
	switch f.kind {
	case OnlyActions:
		if action == "" {
			return false
		}
		_, ok := f.actions[action]
		return ok
	case ExceptActions:
		if action == "" {
			return false
		}
		_, ok := f.actions[action]
		return !ok
	default:
		return true
	}
}

func (f Filter) String() string {
	if f.kind == Always {
		return "always"
	}
	return f.kind.String() + "(" + strings.Join(f.Actions(), ",") + ")"
}
