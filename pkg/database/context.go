package database

import (
	"context"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request-scoped database connection.
	ScopeKey contextKey = "dbScope"
)

// GetScope retrieves the scoped database connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok
}

// SetScope stores the scoped database connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeProvider creates scoped contexts for work that runs outside a request,
// such as queued background tasks.
type ScopeProvider interface {
	WithScope(ctx context.Context) (context.Context, func(), error)
}

// PoolScopeProvider acquires scopes from a DB pool.
type PoolScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a PoolScopeProvider for the given database.
func NewScopeProvider(db *DB) *PoolScopeProvider {
	return &PoolScopeProvider{db: db}
}

// WithScope returns a context holding a fresh connection.
// The cleanup function must be called when the scope is no longer needed.
func (p *PoolScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}
