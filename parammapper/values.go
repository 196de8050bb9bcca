package parammapper

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ParamsFromValues converts query or form values. Single values become a
// string, repeated values a []string.
func ParamsFromValues(values url.Values) Params {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := NewParams()
	for _, k := range keys {
		p.Set(k, collapseValues(values[k]))
	}
	return p
}

// ParamsFromStrings converts route parameters
func ParamsFromStrings(m map[string]string) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := NewParams()
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

// Values renders the mapping as url.Values. An empty list is kept as a
// single empty value so the key survives encoding.
func (p Params) Values() url.Values {
	out := make(url.Values, p.Len())
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		out[k] = wireValues(v)
	}
	return out
}

// Strings renders the mapping as single string values; lists are joined
// with commas
func (p Params) Strings() map[string]string {
	out := make(map[string]string, p.Len())
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		out[k] = joinValue(v)
	}
	return out
}

func joinValue(value any) string {
	return strings.Join(StringSlice(value), ",")
}

// wireValues is StringSlice for transports that drop keys without values
func wireValues(value any) []string {
	if out := StringSlice(value); len(out) > 0 {
		return out
	}
	return []string{""}
}

// StringSlice renders a parameter value as strings
func StringSlice(value any) []string {
	switch v := value.(type) {
	case nil:
		return []string{}
	case string:
		return []string{v}
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			out[i] = fmt.Sprint(e)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func collapseValues(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
