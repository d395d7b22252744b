package auth

import (
	"context"
)

type contextKey string

const OperatorKey contextKey = "operator"

// Operator identifies the caller of an operator route.
type Operator struct {
	RemoteAddr string
}

func GetOperatorFromContext(ctx context.Context) (*Operator, bool) {
	op, ok := ctx.Value(OperatorKey).(*Operator)
	return op, ok
}
