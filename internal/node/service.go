package node

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name of the document API.
const ServiceName = "docstore.v1.Documents"

// RPC method names.
const (
	MethodGet    = "Get"
	MethodPut    = "Put"
	MethodMerge  = "Merge"
	MethodDelete = "Delete"
)

// Response statuses carried in the "status" field of every reply.
const (
	StatusSuccess  = "SUCCESS"
	StatusNotFound = "NOT_FOUND"
	StatusConflict = "CONFLICT"
	StatusGone     = "GONE"
	StatusError    = "ERROR"
)

// DocumentsServer is the server API for the Documents service. Requests and
// replies are google.protobuf.Struct messages:
//
//	Get    {id}                 -> {status, error_message, document}
//	Put    {document}           -> {status, error_message, document}
//	Merge  {document}           -> {status, error_message, document}
//	Delete {id, rev, global}    -> {status, error_message, document}
type DocumentsServer interface {
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Put(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Merge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterDocumentsServer registers srv on s.
func RegisterDocumentsServer(s grpc.ServiceRegistrar, srv DocumentsServer) {
	s.RegisterService(&documentsServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type unaryCall func(DocumentsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DocumentsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DocumentsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var documentsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGet, Handler: unaryHandler(MethodGet, DocumentsServer.Get)},
		{MethodName: MethodPut, Handler: unaryHandler(MethodPut, DocumentsServer.Put)},
		{MethodName: MethodMerge, Handler: unaryHandler(MethodMerge, DocumentsServer.Merge)},
		{MethodName: MethodDelete, Handler: unaryHandler(MethodDelete, DocumentsServer.Delete)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docstore/v1/documents.proto",
}
