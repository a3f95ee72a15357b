package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
)

// Identity headers trusted by HeaderResolver.
const (
	OrganizationIDHeader = "X-Organization-ID"
	UserIDHeader         = "X-User-ID"
)

// ErrNoCredentials means the request carried nothing a resolver recognizes.
var ErrNoCredentials = errors.New("no credentials")

// IdentityResolver authenticates a request. Authentication lives outside the
// ledger; resolvers only translate what the auth layer forwards.
type IdentityResolver interface {
	Resolve(r *http.Request) (domain.Identity, error)
}

// HeaderResolver trusts X-Organization-ID and X-User-ID as set by an
// authenticating proxy. Never expose it directly to clients.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (domain.Identity, error) {
	rawOrg := r.Header.Get(OrganizationIDHeader)
	if rawOrg == "" {
		return domain.Identity{}, ErrNoCredentials
	}
	orgID, err := uuid.Parse(rawOrg)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("invalid %s header: %w", OrganizationIDHeader, err)
	}
	userID, err := uuid.Parse(r.Header.Get(UserIDHeader))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("invalid %s header: %w", UserIDHeader, err)
	}
	return domain.Identity{OrganizationID: orgID, UserID: userID}, nil
}

// Claims are the bearer token claims issued by the auth service. The
// subject is the user.
type Claims struct {
	OrganizationID string `json:"org_id"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 bearer tokens signed with a shared secret.
type JWTResolver struct {
	Secret []byte
}

func (j JWTResolver) Resolve(r *http.Request) (domain.Identity, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return domain.Identity{}, ErrNoCredentials
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return domain.Identity{}, errors.New("invalid token")
	}

	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("invalid org_id claim: %w", err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("invalid sub claim: %w", err)
	}
	return domain.Identity{OrganizationID: orgID, UserID: userID}, nil
}

// Resolvers tries each resolver in order until one finds credentials.
type Resolvers []IdentityResolver

func (rs Resolvers) Resolve(r *http.Request) (domain.Identity, error) {
	for _, res := range rs {
		ident, err := res.Resolve(r)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return ident, err
	}
	return domain.Identity{}, ErrNoCredentials
}

// RequireIdentity scopes the request to the resolved organization and user,
// and rejects it with 401 when no identity resolves.
func RequireIdentity(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := resolver.Resolve(r)
			if err != nil {
				if !errors.Is(err, ErrNoCredentials) {
					GetLogger(r.Context()).Info("identity rejected", "error", err)
				}
				respondUnauthorized(w, r, "Authentication required")
				return
			}
			if ident.OrganizationID == uuid.Nil || ident.UserID == uuid.Nil {
				respondUnauthorized(w, r, "Authentication required")
				return
			}

			ctx := domain.NewContextWithIdentity(r.Context(), ident)
			logger := GetLogger(ctx).With(
				slog.String("organization_id", ident.OrganizationID.String()),
				slog.String("user_id", ident.UserID.String()),
			)
			next.ServeHTTP(w, r.WithContext(WithLogger(ctx, logger)))
		})
	}
}
