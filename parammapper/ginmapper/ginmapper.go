// Package ginmapper applies parammapper rules to gin routes.
package ginmapper

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bhatti/grpc-param-mapper/parammapper"
)

// ActionResolver names the action a gin request is routed to
type ActionResolver func(c *gin.Context) string

// StaticAction resolves every request to action
func StaticAction(action string) ActionResolver {
	return func(*gin.Context) string { return action }
}

// RouteActions resolves the action from the matched route pattern, e.g.
// {"/accounts/:id": "show"}. Unknown routes resolve to no action.
func RouteActions(routes map[string]string) ActionResolver {
	return func(c *gin.Context) string {
		return routes[c.FullPath()]
	}
}

// Middleware renames the route, query and urlencoded form parameters of
// unit's routes in one pass. It must run before any handler reads c.Query
// or c.PostForm, which cache their values on first use.
func Middleware(m *parammapper.Mapper, unit string, resolve ActionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rename(c, m, unit, resolve(c)) {
			return
		}
		c.Next()
	}
}

// Handler wraps a single route handler with the rules of unit for action
func Handler(m *parammapper.Mapper, unit, action string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rename(c, m, unit, action) {
			return
		}
		h(c)
	}
}

// rename rewrites c in place, aborting with 400 on a conversion failure
func rename(c *gin.Context, m *parammapper.Mapper, unit, action string) bool {
	if m.Skips(c.Request.URL.Path) {
		return true
	}

	route := parammapper.NewParams()
	for _, p := range c.Params {
		route.Set(p.Key, p.Value)
	}

	req, renamed, err := m.RenameRequest(unit, action, c.Request, route)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	c.Request = req
	c.Params = toGinParams(renamed)
	return true
}

// toGinParams keeps the route order of p
func toGinParams(p parammapper.Params) gin.Params {
	values := p.Strings()
	out := make(gin.Params, 0, p.Len())
	for _, k := range p.Keys() {
		out = append(out, gin.Param{Key: k, Value: values[k]})
	}
	return out
}
