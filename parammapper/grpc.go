package parammapper

import (
	"context"
	"sort"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// SplitMethod splits a gRPC full method "/pkg.Service/Method" into its
// service and method names
func SplitMethod(fullMethod string) (service, method string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// UnaryServerInterceptor creates a gRPC unary server interceptor that
// renames incoming metadata, and the top-level fields of *structpb.Struct
// requests, using the pipeline of the called service. Renamed metadata keys
// are lowercased; struct field names keep their case.
func (m *Mapper) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if m.Skips(info.FullMethod) {
			return handler(ctx, req)
		}

		service, method := SplitMethod(info.FullMethod)
		newCtx, err := m.processIncomingMetadata(ctx, service, method)
		if err != nil {
			return nil, err
		}

		if s, ok := req.(*structpb.Struct); ok {
			renamed, err := m.renameStruct(service, method, s)
			if err != nil {
				return nil, err
			}
			req = renamed
		}

		return handler(newCtx, req)
	}
}

// StreamServerInterceptor creates a gRPC stream server interceptor. Metadata
// is renamed once per stream; *structpb.Struct messages are renamed as
// they are received.
func (m *Mapper) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if m.Skips(info.FullMethod) {
			return handler(srv, ss)
		}

		service, method := SplitMethod(info.FullMethod)
		ctx, err := m.processIncomingMetadata(ss.Context(), service, method)
		if err != nil {
			return err
		}

		wrappedStream := &wrappedServerStream{
			ServerStream: ss,
			ctx:          ctx,
			mapper:       m,
			service:      service,
			method:       method,
		}

		return handler(srv, wrappedStream)
	}
}

// processIncomingMetadata replaces the incoming metadata with its renamed
// form
func (m *Mapper) processIncomingMetadata(ctx context.Context, service, method string) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, nil
	}
	if _, ok := m.pipelines[service]; !ok {
		return ctx, nil
	}

	result, err := m.Apply(service, method, paramsFromMetadata(md))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return metadata.NewIncomingContext(ctx, paramsToMetadata(result)), nil
}

func (m *Mapper) renameStruct(service, method string, s *structpb.Struct) (*structpb.Struct, error) {
	if _, ok := m.pipelines[service]; !ok {
		return s, nil
	}

	result, err := m.Apply(service, method, ParamsFromMap(s.AsMap()))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	fields := make(map[string]interface{}, result.Len())
	for _, k := range result.Keys() {
		v, _ := result.Get(k)
		fields[k] = structValue(v)
	}
	renamed, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode renamed request: %v", err)
	}
	return renamed, nil
}

// paramsFromMetadata converts metadata; keys are already lowercase
func paramsFromMetadata(md metadata.MD) Params {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := NewParams()
	for _, k := range keys {
		p.Set(k, collapseValues(md[k]))
	}
	return p
}

// paramsToMetadata converts params back to metadata. Metadata keys are
// case-insensitive, so a destination like "userName" arrives as "username";
// an empty list arrives as a single empty value.
func paramsToMetadata(p Params) metadata.MD {
	md := metadata.MD{}
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		md.Set(k, wireValues(v)...)
	}
	return md
}

// structValue adapts converter outputs to types structpb accepts
func structValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = structValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = structValue(e)
		}
		return out
	}
	return v
}

// wrappedServerStream wraps a grpc.ServerStream to provide custom context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx     context.Context
	mapper  *Mapper
	service string
	method  string
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

func (w *wrappedServerStream) RecvMsg(msg interface{}) error {
	if err := w.ServerStream.RecvMsg(msg); err != nil {
		return err
	}
	s, ok := msg.(*structpb.Struct)
	if !ok {
		return nil
	}
	renamed, err := w.mapper.renameStruct(w.service, w.method, s)
	if err != nil {
		return err
	}
	if renamed != s {
		proto.Reset(s)
		proto.Merge(s, renamed)
	}
	return nil
}
