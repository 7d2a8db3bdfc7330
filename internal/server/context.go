// internal/server/context.go
package server

import (
	"context"
)

type contextKey string

const contextKeyRequestID contextKey = "requestID"

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
