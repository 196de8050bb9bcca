package parammapper

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyKey is returned when a rule has an empty source or destination
	ErrEmptyKey = errors.New("parameter key cannot be empty")
	// ErrConflictingFilters is returned when a rule sets both only and except
	ErrConflictingFilters = errors.New("only and except cannot be combined")
	// ErrEmptyFilter is returned when only or except lists no actions
	ErrEmptyFilter = errors.New("action filter lists no actions")
)

// Rule renames Source to Destination, optionally converting the value,
// for the actions its Filter matches. Rules are immutable values.
type Rule struct {
	source      string
	destination string
	converter   Converter
	filter      Filter
}

// RuleOption configures a rule under construction
type RuleOption func(*ruleDraft)

type ruleDraft struct {
	converter Converter
	only      []string
	except    []string
	onlySet   bool
	exceptSet bool
}

// Convert sets the value converter
func Convert(c Converter) RuleOption {
	return func(d *ruleDraft) {
		d.converter = c
	}
}

// Only restricts the rule to the given actions
func Only(actions ...string) RuleOption {
	return func(d *ruleDraft) {
		d.only = append(d.only, actions...)
		d.onlySet = true
	}
}

// Except applies the rule to every action but the given ones
func Except(actions ...string) RuleOption {
	return func(d *ruleDraft) {
		d.except = append(d.except, actions...)
		d.exceptSet = true
	}
}

// NewRule builds a rename rule. A rule whose source equals its destination
// only converts the value.
func NewRule(source, destination string, opts ...RuleOption) (Rule, error) {
	name := source + "->" + destination
	if source == "" || destination == "" {
		return Rule{}, fmt.Errorf("rule %s: %w", name, ErrEmptyKey)
	}

	var d ruleDraft
	for _, opt := range opts {
		opt(&d)
	}

	filter := AlwaysFilter()
	switch {
	case d.onlySet && d.exceptSet:
		return Rule{}, fmt.Errorf("rule %s: %w", name, ErrConflictingFilters)
	case d.onlySet:
		if len(d.only) == 0 {
			return Rule{}, fmt.Errorf("rule %s: only: %w", name, ErrEmptyFilter)
		}
		filter = OnlyFilter(d.only...)
	case d.exceptSet:
		if len(d.except) == 0 {
			return Rule{}, fmt.Errorf("rule %s: except: %w", name, ErrEmptyFilter)
		}
		filter = ExceptFilter(d.except...)
	}

	return Rule{
		source:      source,
		destination: destination,
		converter:   d.converter,
		filter:      filter,
	}, nil
}

// MustRule is like NewRule but panics on error. Intended for package-level
// rule declarations.
func MustRule(source, destination string, opts ...RuleOption) Rule {
	r, err := NewRule(source, destination, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Source returns the key the rule reads
func (r Rule) Source() string { return r.source }

// Destination returns the key the rule writes
func (r Rule) Destination() string { return r.destination }

// Converter returns the value converter, nil for identity
func (r Rule) Converter() Converter { return r.converter }

// Filter returns the action filter
func (r Rule) Filter() Filter { return r.filter }

func (r Rule) String() string {
	return fmt.Sprintf("%s->%s [%s]", r.source, r.destination, r.filter)
}

// ConversionError reports a converter failure while applying a rule
type ConversionError struct {
	Source      string
	Destination string
	Action      string
	Err         error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s->%s for action %q: %v", e.Source, e.Destination, e.Action, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
