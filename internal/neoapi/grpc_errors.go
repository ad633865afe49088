package neoapi

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/neo-catalog/model"
	"github.com/signalsfoundry/neo-catalog/query"
)

// ErrNotFound is returned when a lookup matches no object.
var ErrNotFound = errors.New("not found")

// ToStatusError maps catalog errors onto gRPC status codes. Hints attached
// with errors.WithHint are appended to the message.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	msg := err.Error()
	for _, h := range errors.GetAllHints(err) {
		msg += " (hint: " + h + ")"
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, msg)

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, query.ErrUnsupportedCriterion),
		errors.Is(err, model.ErrBadTimestamp):
		return status.Error(codes.InvalidArgument, msg)

	case errors.Is(err, query.ErrUnlinkedReference):
		return status.Error(codes.FailedPrecondition, msg)

	default:
		return status.Error(codes.Internal, msg)
	}
}
