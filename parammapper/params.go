package parammapper

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params is an ordered string-keyed parameter mapping as seen by a handler.
// The zero value is an empty mapping ready to use. Copies of a Params share
// storage; use Clone for an independent mapping.
type Params struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewParams creates an empty parameter mapping
func NewParams() Params {
	return Params{m: orderedmap.New[string, any]()}
}

// ParamsFromMap builds a mapping from m with keys in sorted order
func ParamsFromMap(m map[string]any) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := Params{m: orderedmap.New[string, any](len(m))}
	for _, k := range keys {
		p.m.Set(k, m[k])
	}
	return p
}

// Get returns the value stored under key
func (p Params) Get(key string) (any, bool) {
	if p.m == nil {
		return nil, false
	}
	return p.m.Get(key)
}

// Has reports whether key is present
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Set stores value under key. An existing key keeps its position.
func (p *Params) Set(key string, value any) {
	if p.m == nil {
		p.m = orderedmap.New[string, any]()
	}
	p.m.Set(key, value)
}

// Delete removes key, returning its value if it was present
func (p *Params) Delete(key string) (any, bool) {
	if p.m == nil {
		return nil, false
	}
	return p.m.Delete(key)
}

// Keys returns the keys in insertion order
func (p Params) Keys() []string {
	out := make([]string, 0, p.Len())
	if p.m == nil {
		return out
	}
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of parameters
func (p Params) Len() int {
	if p.m == nil {
		return 0
	}
	return p.m.Len()
}

// Clone returns a shallow copy. Values are shared, not deep-copied.
func (p Params) Clone() Params {
	out := Params{m: orderedmap.New[string, any](p.Len())}
	if p.m == nil {
		return out
	}
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		out.m.Set(pair.Key, pair.Value)
	}
	return out
}

// Map returns the parameters as a plain map
func (p Params) Map() map[string]any {
	out := make(map[string]any, p.Len())
	if p.m == nil {
		return out
	}
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// Equal reports whether both mappings hold the same keys and values,
// ignoring order
func (p Params) Equal(other Params) bool {
	if p.Len() != other.Len() {
		return false
	}
	if p.m == nil {
		return true
	}
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		ov, ok := other.Get(pair.Key)
		if !ok || !reflect.DeepEqual(pair.Value, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the mapping as a JSON object in key order
func (p Params) MarshalJSON() ([]byte, error) {
	if p.m == nil {
		return []byte("{}"), nil
	}
	return p.m.MarshalJSON()
}

// String renders the mapping in key order
func (p Params) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	if p.m != nil {
		for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
			if pair != p.m.Oldest() {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s: %v", pair.Key, pair.Value)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
