package parammapper

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type paramOrigin int

const (
	fromQuery paramOrigin = iota
	fromForm
	fromRoute
)

// RenameRequest renames the query, urlencoded form and route parameters of
// r in a single pass over one merged mapping. On a key clash the form
// overrides the query and the route overrides both.
//
// A renamed key is written back to where its source came from; a key with
// no known origin goes to the query string. Parameters no rule touched stay
// where they were. The returned request is a copy of r; r is not modified
// beyond its body being read.
func (m *Mapper) RenameRequest(unit, action string, r *http.Request, route Params) (*http.Request, Params, error) {
	if _, ok := m.pipelines[unit]; !ok {
		return r, route, nil
	}

	out := r.Clone(r.Context())
	if err := out.ParseForm(); err != nil {
		return nil, Params{}, fmt.Errorf("parse form: %w", err)
	}
	query := cloneValues(out.URL.Query())
	form := cloneValues(out.PostForm)

	merged := NewParams()
	origin := make(map[string]paramOrigin)
	add := func(p Params, o paramOrigin) {
		for _, k := range p.Keys() {
			v, _ := p.Get(k)
			merged.Set(k, v)
			origin[k] = o
		}
	}
	add(ParamsFromValues(query), fromQuery)
	add(ParamsFromValues(form), fromForm)
	add(route, fromRoute)

	var touched []string
	consumed := make(map[string]bool)
	result, err := m.apply(unit, action, merged, func(rule Rule) {
		if rule.source != rule.destination {
			origin[rule.destination] = origin[rule.source]
			delete(origin, rule.source)
			consumed[rule.source] = true
		}
		touched = append(touched, rule.destination)
	})
	if err != nil {
		return nil, Params{}, err
	}

	renamedRoute := route.Clone()
	var queryDirty, formDirty bool
	drop := func(k string, keep paramOrigin) {
		if _, ok := query[k]; ok && keep != fromQuery {
			delete(query, k)
			queryDirty = true
		}
		if _, ok := form[k]; ok && keep != fromForm {
			delete(form, k)
			formDirty = true
		}
		if keep != fromRoute {
			renamedRoute.Delete(k)
		}
	}

	for k := range consumed {
		if !result.Has(k) {
			drop(k, -1)
		}
	}
	for _, k := range touched {
		v, ok := result.Get(k)
		if !ok {
			continue
		}
		o := origin[k]
		drop(k, o)
		switch o {
		case fromRoute:
			renamedRoute.Set(k, joinValue(v))
		case fromForm:
			form[k] = wireValues(v)
			formDirty = true
		default:
			query[k] = wireValues(v)
			queryDirty = true
		}
	}

	if queryDirty {
		out.URL.RawQuery = query.Encode()
	}
	if formDirty {
		out.PostForm = form
	}
	if queryDirty || formDirty {
		out.Form = mergeValues(form, query)
	}
	if hasFormBody(out) {
		body := form.Encode()
		out.Body = io.NopCloser(strings.NewReader(body))
		out.ContentLength = int64(len(body))
		out.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	return out, renamedRoute, nil
}

// hasFormBody reports whether ParseForm read r's body
func hasFormBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/x-www-form-urlencoded"
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// mergeValues builds http.Request.Form: body values first, then query values
func mergeValues(form, query url.Values) url.Values {
	out := cloneValues(form)
	for k, vs := range query {
		out[k] = append(out[k], vs...)
	}
	return out
}
