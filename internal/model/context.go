package model

import (
	"context"
)

type ContextManager interface {
	SetPrincipalToContext(ctx context.Context, principal Principal) context.Context
	GetPrincipalFromContext(ctx context.Context) (Principal, bool)
}
