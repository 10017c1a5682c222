package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/populate/internal/compiler"
	"github.com/hanpama/populate/internal/eventbus"
	"github.com/hanpama/populate/internal/events"
	"github.com/hanpama/populate/internal/reqid"
)

// CompilerServer handles decoded CompileRequest messages.
type CompilerServer interface {
	Compile(ctx context.Context, req protoreflect.Message) (*structpb.Struct, error)
}

// Server serves Compile with whatever compiler the provider holds.
type Server struct {
	provider compiler.Provider
	input    protoreflect.MessageDescriptor
}

var _ CompilerServer = (*Server)(nil)

// NewServer resolves the request descriptor once.
func NewServer(p compiler.Provider) (*Server, error) {
	md, err := compileMethod()
	if err != nil {
		return nil, err
	}
	return &Server{provider: p, input: md.Input()}, nil
}

// Register adds the Compiler service to s.
func Register(s grpc.ServiceRegistrar, p compiler.Provider) error {
	srv, err := NewServer(p)
	if err != nil {
		return err
	}
	s.RegisterService(&serviceDesc, srv)
	return nil
}

func (s *Server) Compile(ctx context.Context, msg protoreflect.Message) (*structpb.Struct, error) {
	if msg.Descriptor().FullName() != s.input.FullName() {
		return nil, status.Errorf(codes.InvalidArgument, "unexpected message %s", msg.Descriptor().FullName())
	}
	out, err := s.provider.Load().Compile(ctx, decodeRequest(msg)).ToStruct()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompilerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodName, Handler: compileHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: FilePath,
}

func compileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	in := dynamicpb.NewMessage(s.input)
	if err := dec(in); err != nil {
		return nil, err
	}
	ctx = incomingRequestID(ctx)

	handler := func(ctx context.Context, req any) (out any, err error) {
		start := time.Now()
		eventbus.Publish(ctx, events.RPCStart{Method: FullMethod})
		defer func() {
			eventbus.Publish(ctx, events.RPCFinish{
				Method:   FullMethod,
				Code:     status.Code(err),
				Err:      err,
				Duration: time.Since(start),
			})
		}()
		return s.Compile(ctx, req.(*dynamicpb.Message))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod}
	return interceptor(ctx, in, info, handler)
}

// incomingRequestID adopts the caller's request id and echoes it back in
// the response header.
func incomingRequestID(ctx context.Context) context.Context {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vs := md.Get(reqid.Header); len(vs) > 0 {
			id = vs[0]
		}
	}
	ctx, id = reqid.WithID(ctx, id)
	_ = grpc.SetHeader(ctx, metadata.Pairs(reqid.Header, id))
	return ctx
}
