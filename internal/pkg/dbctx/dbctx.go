package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB returns the transaction when one is open, the fallback handle otherwise,
// already bound to the request context.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	if c.Tx != nil {
		return c.Tx.WithContext(c.Ctx)
	}
	return fallback.WithContext(c.Ctx)
}

// From wraps a bare context with no open transaction.
func From(ctx context.Context) Context {
	return Context{Ctx: ctx}
}
