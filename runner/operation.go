package runner

import (
	"context"

	"github.com/google/uuid"
)

type operationKey struct{}

// WithOperationID makes the runner log under id for operations run with the
// returned context.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationKey{}, id)
}

// OperationID returns the id attached by WithOperationID, or a new uuid
func OperationID(ctx context.Context) string {
	if id, ok := ctx.Value(operationKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
