// Package actor carries the authenticated tenant and operator on a request
// context.
package actor

import "context"

type ctxKey int

const (
	tenantKey ctxKey = iota
	operatorKey
)

// WithTenant returns a copy of ctx scoped to the tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantID returns the tenant of ctx, or "" when none is set.
func TenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey).(string)
	return id
}

// WithOperator returns a copy of ctx carrying the operator identity
// (the authenticated user's email).
func WithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorKey, operatorID)
}

// OperatorID returns the operator of ctx, or "" when none is set.
func OperatorID(ctx context.Context) string {
	id, _ := ctx.Value(operatorKey).(string)
	return id
}
