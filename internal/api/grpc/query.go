// Package grpc exposes the query builder and entity listings over gRPC.
// Messages are protobuf well-known Structs, so no generated code is needed.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	qerrors "github.com/qbench/qbench/internal/errors"
	"github.com/qbench/qbench/internal/query/executor"
	"github.com/qbench/qbench/internal/query/planner"
	"github.com/qbench/qbench/internal/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "qbench.v1.QueryService"

// QueryService is implemented by QueryServer.
type QueryService interface {
	Customize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ManyTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// QueryServer implements QueryService on an executor and a store.
type QueryServer struct {
	executor *executor.Executor
	store    *store.Store
	logger   *zap.Logger
}

// NewQueryServer creates a new gRPC query server.
func NewQueryServer(exec *executor.Executor, st *store.Store, logger *zap.Logger) *QueryServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryServer{executor: exec, store: st, logger: logger}
}

// Customize runs a customize query. Request fields: columns, base, joins,
// filter, each a list of strings.
func (s *QueryServer) Customize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	result, err := s.executor.Customize(ctx, planner.CustomizeRequest{
		Columns: stringList(req, "columns"),
		Base:    stringList(req, "base"),
		Joins:   stringList(req, "joins"),
		Filter:  stringList(req, "filter"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(result)
}

// ManyTable runs a manytable query. Request fields: columns, tables, filter.
func (s *QueryServer) ManyTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	result, err := s.executor.ManyTable(ctx, planner.ManyTableRequest{
		Columns: stringList(req, "columns"),
		Tables:  stringList(req, "tables"),
		Filter:  stringList(req, "filter"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(result)
}

// ListTable lists an entity table. Request fields: table, limit, offset.
func (s *QueryServer) ListTable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	table := fields["table"].GetStringValue()
	if table == "" {
		return nil, status.Error(codes.InvalidArgument, "table is required")
	}
	rs, err := s.store.ListTable(ctx, table,
		int(fields["limit"].GetNumberValue()), int(fields["offset"].GetNumberValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(rs)
}

// stringList reads a list or a single string field.
func stringList(req *structpb.Struct, key string) []string {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil
	}
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		return []string{s.StringValue}
	}
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		switch k := item.GetKind().(type) {
		case *structpb.Value_StringValue:
			out = append(out, k.StringValue)
		case *structpb.Value_NumberValue:
			out = append(out, fmt.Sprint(k.NumberValue))
		}
	}
	return out
}

// toStruct converts a JSON-tagged result into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	return out, nil
}

// toStatus maps an error to a gRPC status. Rejected selections and failed
// statements are both the caller's input.
func toStatus(err error) error {
	switch qerrors.GetCategory(err) {
	case qerrors.ErrCategoryValidation:
		if qerrors.GetCode(err) == qerrors.CodeUnknownTable {
			return status.Error(codes.NotFound, err.Error())
		}
		return status.Error(codes.InvalidArgument, err.Error())
	case qerrors.ErrCategoryQuery:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}

// LoggingInterceptor logs one line per unary call.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("RPC",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", extractRequestID(ctx)))
		return resp, err
	}
}

func unaryHandler(method string, call func(QueryService, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(QueryService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(QueryService), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes QueryService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryService)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Customize", QueryService.Customize),
		unaryHandler("ManyTable", QueryService.ManyTable),
		unaryHandler("ListTable", QueryService.ListTable),
	},
	Metadata: "qbench/v1/query.proto",
}

// Register adds srv to s.
func Register(s *grpc.Server, srv QueryService) {
	s.RegisterService(&ServiceDesc, srv)
}

// QueryClient calls QueryService.
type QueryClient struct {
	cc grpc.ClientConnInterface
}

// NewQueryClient creates a client on cc.
func NewQueryClient(cc grpc.ClientConnInterface) *QueryClient {
	return &QueryClient{cc: cc}
}

func (c *QueryClient) invoke(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Customize calls QueryService.Customize.
func (c *QueryClient) Customize(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Customize", req, opts...)
}

// ManyTable calls QueryService.ManyTable.
func (c *QueryClient) ManyTable(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ManyTable", req, opts...)
}

// ListTable calls QueryService.ListTable.
func (c *QueryClient) ListTable(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListTable", req, opts...)
}
