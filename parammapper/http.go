package parammapper

import (
	"context"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/metadata"
)

// ActionResolver names the action an HTTP request is routed to
type ActionResolver func(r *http.Request) string

// StaticAction resolves every request to the same action
func StaticAction(action string) ActionResolver {
	return func(*http.Request) string { return action }
}

// HTTPMiddleware renames the query and urlencoded form parameters before
// next runs. Conversion failures answer 400 Bad Request.
func (m *Mapper) HTTPMiddleware(unit string, resolve ActionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.Skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			renamed, _, err := m.RenameRequest(unit, resolve(r), r, NewParams())
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, renamed)
		})
	}
}

// GatewayHandler wraps a handler registered with runtime.ServeMux.HandlePath.
// Path, query and form parameters are renamed together.
func (m *Mapper) GatewayHandler(unit, action string, h runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		if m.Skips(r.URL.Path) {
			h(w, r, pathParams)
			return
		}

		renamed, route, err := m.RenameRequest(unit, action, r, ParamsFromStrings(pathParams))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		h(w, renamed, route.Strings())
	}
}

// HeaderMatcher forwards HTTP headers to gRPC metadata under their
// lowercase names, so rules written against header names apply in the
// gRPC interceptors. Hop-by-hop headers are dropped.
func (m *Mapper) HeaderMatcher() func(string) (string, bool) {
	return func(key string) (string, bool) {
		switch textproto.CanonicalMIMEHeaderKey(key) {
		case "Connection", "Keep-Alive", "Proxy-Connection", "Transfer-Encoding", "Upgrade", "Te", "Host", "Content-Length":
			return "", false
		}
		return strings.ToLower(key), true
	}
}

// MetadataAnnotator forwards the query string of gateway requests as
// metadata, one key per parameter
func (m *Mapper) MetadataAnnotator() func(context.Context, *http.Request) metadata.MD {
	return func(ctx context.Context, req *http.Request) metadata.MD {
		if m.Skips(req.URL.Path) || req.URL.RawQuery == "" {
			return metadata.MD{}
		}
		return paramsToMetadata(ParamsFromValues(req.URL.Query()))
	}
}

// CreateGatewayMux creates a new gRPC gateway ServeMux that forwards headers
// and query parameters as metadata for the interceptors to rename
func CreateGatewayMux(mapper *Mapper, opts ...runtime.ServeMuxOption) *runtime.ServeMux {
	// Prepend our options
	allOpts := []runtime.ServeMuxOption{
		runtime.WithIncomingHeaderMatcher(mapper.HeaderMatcher()),
		runtime.WithMetadata(mapper.MetadataAnnotator()),
	}

	// Add user-provided options
	allOpts = append(allOpts, opts...)

	return runtime.NewServeMux(allOpts...)
}
