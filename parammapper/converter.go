package parammapper

import "fmt"

// Converter transforms a raw parameter value into the value stored under
// the destination key. Implementations must be safe for concurrent use.
type Converter interface {
	Convert(value any) (any, error)
}

// ConvertFunc is a function converter. Errors it returns propagate to the
// caller of Pipeline.Apply.
type ConvertFunc func(value any) (any, error)

// Convert calls f(value)
func (f ConvertFunc) Convert(value any) (any, error) {
	return f(value)
}

// Func wraps f as a Converter
func Func(f func(value any) (any, error)) Converter {
	return ConvertFunc(f)
}

// PureFunc wraps a transform that cannot fail
func PureFunc(f func(value any) any) Converter {
	return ConvertFunc(func(value any) (any, error) {
		return f(value), nil
	})
}

type identity struct{}

func (identity) Convert(value any) (any, error) { return value, nil }

// Identity returns a converter that passes values through unchanged
func Identity() Converter {
	return identity{}
}

// EnumCase binds a set of accepted raw values to one output value
type EnumCase struct {
	Accepts []any
	Output  any
}

// When starts an EnumCase accepting the given raw values
func When(accepts ...any) EnumCase {
	return EnumCase{Accepts: accepts}
}

// Then sets the output value of the case
func (c EnumCase) Then(output any) EnumCase {
	c.Output = output
	return c
}

func (c EnumCase) accepts(raw string) bool {
	for _, a := range c.Accepts {
		if fmt.Sprint(a) == raw {
			return true
		}
	}
	return false
}

// EnumConverter maps raw values to outputs by membership in ordered cases.
// The first matching case wins; a value matching no case passes through.
type EnumConverter struct {
	Cases []EnumCase
}

// Enum creates an EnumConverter from cases in evaluation order
func Enum(cases ...EnumCase) *EnumConverter {
	return &EnumConverter{Cases: cases}
}

// Convert looks value up by its string form
func (e *EnumConverter) Convert(value any) (any, error) {
	raw := fmt.Sprint(value)
	for _, c := range e.Cases {
		if c.accepts(raw) {
			return c.Output, nil
		}
	}
	return value, nil
}

// convertValue applies c, treating a nil converter as identity
func convertValue(c Converter, value any) (any, error) {
	if c == nil {
		return value, nil
	}
	return c.Convert(value)
}
