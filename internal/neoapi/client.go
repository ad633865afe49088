package neoapi

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/neo-catalog/internal/write"
	"github.com/signalsfoundry/neo-catalog/query"
)

// Client calls a remote catalog service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithRequestID tags outgoing calls on ctx with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, id)
}

// GetNEO looks up an object by designation. Use GetNEOByName for names.
func (c *Client) GetNEO(ctx context.Context, designation string, opts ...grpc.CallOption) (write.NEORow, error) {
	return c.lookup(ctx, KeyDesignation, designation, opts...)
}

// GetNEOByName looks up an object by name.
func (c *Client) GetNEOByName(ctx context.Context, name string, opts ...grpc.CallOption) (write.NEORow, error) {
	return c.lookup(ctx, KeyName, name, opts...)
}

func (c *Client) lookup(ctx context.Context, key, value string, opts ...grpc.CallOption) (write.NEORow, error) {
	req, err := structpb.NewStruct(map[string]any{key: value})
	if err != nil {
		return write.NEORow{}, errors.Wrap(err, "encode lookup")
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetNEOMethod, req, out, opts...); err != nil {
		return write.NEORow{}, err
	}
	return NEOFromStruct(out)
}

// Query streams the approaches matching criteria, at most limit of them when limit
// is positive.
func (c *Client) Query(ctx context.Context, criteria query.Criteria, limit int, opts ...grpc.CallOption) ([]write.Row, error) {
	req, err := CriteriaToStruct(criteria, limit)
	if err != nil {
		return nil, err
	}

	stream, err := c.cc.NewStream(ctx, &CatalogServiceDesc.Streams[0], QueryMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	var rows []write.Row
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if err == io.EOF {
				return rows, nil
			}
			return nil, err
		}
		row, err := RowFromStruct(msg)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
