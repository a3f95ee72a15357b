// Package domain holds the ledger's core types, state rules, error codes and
// request-scoped context helpers.
//
// Every ledger operation is scoped to one organization. Handlers and the job
// worker put the organization in the context; services read it back with
// OrganizationIDFromContext and refuse to run without it.
package domain

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	organizationContextKey contextKey = iota
	userContextKey
	requestIDContextKey
)

// Identity is the authenticated caller as resolved by the external auth
// layer.
type Identity struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
}

// NewContextWithOrganization returns ctx scoped to organization id.
func NewContextWithOrganization(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, organizationContextKey, id)
}

// OrganizationIDFromContext returns the organization in ctx or uuid.Nil.
func OrganizationIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(organizationContextKey).(uuid.UUID)
	return id
}

// RequireOrganizationID returns the organization in ctx, or
// ErrOrganizationRequired when none is set.
func RequireOrganizationID(ctx context.Context) (uuid.UUID, error) {
	id := OrganizationIDFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, ErrOrganizationRequired
	}
	return id, nil
}

// NewContextWithUser returns ctx carrying the acting user.
func NewContextWithUser(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userContextKey, id)
}

// UserIDFromContext returns the acting user or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userContextKey).(uuid.UUID)
	return id
}

// NewContextWithIdentity scopes ctx to both the organization and the user.
func NewContextWithIdentity(ctx context.Context, ident Identity) context.Context {
	ctx = NewContextWithOrganization(ctx, ident.OrganizationID)
	return NewContextWithUser(ctx, ident.UserID)
}

// NewContextWithRequestID returns ctx carrying a request or job correlation id.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext returns the correlation id or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

var (
	// ErrOrganizationRequired means a scoped operation ran without an
	// organization in context. It is a wiring bug, never a caller error.
	ErrOrganizationRequired = &Error{Code: EINTERNAL, Message: "Organization context required but not found"}

	// ErrOrganizationMismatch means a resource was addressed through another
	// organization's scope.
	ErrOrganizationMismatch = &Error{Code: EFORBIDDEN, Message: "Access denied: resource belongs to a different organization"}
)
