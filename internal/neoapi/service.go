// Package neoapi exposes the catalog over gRPC. Messages are protobuf
// well-known Structs, so the service needs no generated code: the service
// descriptor, handlers and client are written out here.
package neoapi

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/neo-catalog/internal/logging"
	"github.com/signalsfoundry/neo-catalog/internal/write"
	"github.com/signalsfoundry/neo-catalog/kb"
	"github.com/signalsfoundry/neo-catalog/model"
)

// Fully-qualified service and method names.
const (
	ServiceName  = "neo.v1.CatalogService"
	GetNEOMethod = "/" + ServiceName + "/GetNEO"
	QueryMethod  = "/" + ServiceName + "/Query"
)

// CatalogServer is the server API for the catalog service.
type CatalogServer interface {
	// GetNEO looks up one object by designation or name.
	GetNEO(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Query streams the approaches matching the request criteria in time
	// order, honouring an optional limit.
	Query(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// CatalogServiceDesc describes neo.v1.CatalogService for grpc.Server.
var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetNEO", Handler: getNEOHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Query", Handler: queryHandler, ServerStreams: true},
	},
}

// RegisterCatalogServer registers srv on s.
func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

func getNEOHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetNEO(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetNEOMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CatalogServer).GetNEO(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CatalogServer).Query(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// CatalogService implements CatalogServer on top of a kb.Catalog.
type CatalogService struct {
	catalog *kb.Catalog
	log     logging.Logger
}

// NewCatalogService serves catalog, which must not be nil.
func NewCatalogService(catalog *kb.Catalog, log logging.Logger) *CatalogService {
	if log == nil {
		log = logging.Noop()
	}
	return &CatalogService{catalog: catalog, log: log}
}

// GetNEO implements CatalogServer.
func (s *CatalogService) GetNEO(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := logging.FromContext(ctx, s.log)

	designation, name, err := LookupFromStruct(req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "catalog.lookup",
		attribute.String("designation", designation),
		attribute.String("name", name),
	)
	defer span.End()

	var neo *model.NearEarthObject
	if designation != "" {
		neo = s.catalog.LookupByDesignation(designation)
	} else {
		neo = s.catalog.LookupByName(name)
	}
	if neo == nil {
		log.Debug(ctx, "lookup miss",
			logging.String("designation", designation),
			logging.String("name", name),
		)
		return nil, ToStatusError(errors.Wrapf(ErrNotFound, "no object with designation %q or name %q", designation, name))
	}

	out, err := NEOToStruct(neo)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	return out, nil
}

// Query implements CatalogServer.
func (s *CatalogService) Query(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	log := logging.FromContext(ctx, s.log)

	q, err := QueryFromStruct(req)
	if err != nil {
		return ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "catalog.query",
		attribute.Int("filters", len(q.Filters)),
		attribute.Int("limit", q.Limit),
	)
	defer span.End()

	seq, err := s.catalog.Search(q)
	if err != nil {
		span.RecordError(err)
		log.Warn(ctx, "query rejected", logging.Err(err))
		return ToStatusError(err)
	}

	sent := 0
	for a := range seq {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		row, err := write.NewRow(a, s.catalog)
		if err != nil {
			span.RecordError(err)
			return ToStatusError(err)
		}
		msg, err := RowToStruct(row)
		if err != nil {
			return ToStatusError(err)
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
		sent++
	}

	span.SetAttributes(attribute.Int("results", sent))
	log.Debug(ctx, "query streamed", logging.Int("results", sent))
	return nil
}
