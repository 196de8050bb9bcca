package parammapper

import (
	"fmt"
	"strconv"
	"strings"
)

// Built-in converters. String converters apply element-wise to []string
// values so multi-valued query and metadata parameters convert naturally.

func stringConverter(f func(string) (any, error)) Converter {
	return ConvertFunc(func(value any) (any, error) {
		switch v := value.(type) {
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				r, err := f(s)
				if err != nil {
					return nil, err
				}
				out[i] = r
			}
			return collapseStrings(out), nil
		case string:
			return f(v)
		default:
			return f(fmt.Sprint(v))
		}
	})
}

// collapseStrings returns a []string when every element is a string
func collapseStrings(values []any) any {
	strs := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return values
		}
		strs[i] = s
	}
	return strs
}

// ToLower lowercases string values
var ToLower = stringConverter(func(s string) (any, error) {
	return strings.ToLower(s), nil
})

// ToUpper uppercases string values
var ToUpper = stringConverter(func(s string) (any, error) {
	return strings.ToUpper(s), nil
})

// TrimSpace trims surrounding whitespace
var TrimSpace = stringConverter(func(s string) (any, error) {
	return strings.TrimSpace(s), nil
})

// ParseInt converts the value to an int
var ParseInt = stringConverter(func(s string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return n, nil
})

// ParseFloat converts the value to a float64
var ParseFloat = stringConverter(func(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
})

// ParseBool converts the value to a bool using strconv.ParseBool rules
var ParseBool = stringConverter(func(s string) (any, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q: %w", s, err)
	}
	return b, nil
})

// ScaleInt parses the value as an integer and multiplies it by factor.
// Integer inputs are scaled without a string round trip.
func ScaleInt(factor int) Converter {
	parse := stringConverter(func(s string) (any, error) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", s, err)
		}
		return n * factor, nil
	})
	return ConvertFunc(func(value any) (any, error) {
		switch v := value.(type) {
		case int:
			return v * factor, nil
		case int32:
			return int(v) * factor, nil
		case int64:
			return int(v) * factor, nil
		case float64:
			return int(v) * factor, nil
		}
		return parse.Convert(value)
	})
}

// Split splits a string value into a []string on sep
func Split(sep string) Converter {
	return ConvertFunc(func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return value, nil
		}
		if s == "" {
			return []string{}, nil
		}
		return strings.Split(s, sep), nil
	})
}

// Default replaces empty string values with def
func Default(def any) Converter {
	return ConvertFunc(func(value any) (any, error) {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return def, nil
		}
		return value, nil
	})
}

// Chain runs converters in order, feeding each the previous output.
// Nil entries are skipped.
func Chain(converters ...Converter) Converter {
	return ConvertFunc(func(value any) (any, error) {
		result := value
		for _, c := range converters {
			if c == nil {
				continue
			}
			var err error
			if result, err = c.Convert(result); err != nil {
				return nil, err
			}
		}
		return result, nil
	})
}
