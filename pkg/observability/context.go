package observability

import (
	"context"

	"github.com/tablyhq/tably/pkg/contextkeys"
)

func requestIDFromContext(ctx context.Context) string {
	return contextkeys.RequestID(ctx)
}

func subjectFromContext(ctx context.Context) string {
	return contextkeys.Subject(ctx)
}
