package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-ingest/internal/common"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "docingest.v1.IngestionService"

// Method names. Requests and responses are google.protobuf.Struct messages
// whose fields mirror the JSON form of the entity types.
const (
	MethodSubmit          = "Submit"
	MethodGet             = "Get"
	MethodCancel          = "Cancel"
	MethodIngestDirectory = "IngestDirectory"
	MethodExport          = "ExportRecords"
)

// IngestionServer is the server API for the ingestion service.
type IngestionServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cancel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(IngestionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call handlerFunc) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(IngestionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(IngestionServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the ingestion service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IngestionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodSubmit, IngestionServer.Submit),
		unary(MethodGet, IngestionServer.Get),
		unary(MethodCancel, IngestionServer.Cancel),
		unary(MethodIngestDirectory, IngestionServer.IngestDirectory),
		unary(MethodExport, IngestionServer.ExportRecords),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docingest/v1/ingestion.proto",
}

// Register attaches srv to s.
func Register(s *grpc.Server, srv IngestionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RequestIDHeader carries the caller's request ID in gRPC metadata.
const RequestIDHeader = "x-request-id"

// LoggingInterceptor stores a request ID and a request-scoped logger on the
// context and logs every call.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				requestID = v[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, requestID)
		ctx = common.WithLogger(ctx, logger.With("request_id", requestID))

		resp, err := handler(ctx, req)
		attrs := []any{
			"method", info.FullMethod,
			"request_id", requestID,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("grpc.request.failed", append(attrs, "error", err)...)
		} else {
			logger.Info("grpc.request", attrs...)
		}
		return resp, err
	}
}
