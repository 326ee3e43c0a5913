package policy

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/ai-gateway/models"
	"github.com/upb/ai-gateway/services"
	"go.uber.org/zap"
)

// Resolver maps an opaque bearer credential to a tenant identity.
// Two credential forms are accepted: a static token from the tenant's
// policy entry, and an HMAC-signed JWT whose "tenant" claim names a
// tenant in the snapshot. JWT resolution is only active when a signing
// secret is configured.
type Resolver struct {
	jwtSecret []byte
	logger    *zap.Logger
}

// TenantClaims is the JWT payload accepted by the resolver.
type TenantClaims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

// NewResolver creates a tenant resolver. jwtSecret may be nil to disable
// JWT credentials.
func NewResolver(jwtSecret []byte, logger *zap.Logger) *Resolver {
	return &Resolver{jwtSecret: jwtSecret, logger: logger}
}

// Resolve maps the Authorization header value to a tenant within the
// given snapshot. The snapshot is passed in by the caller so that the
// whole request is served from one consistent policy version.
func (r *Resolver) Resolve(snap *Snapshot, authorization string) (*models.Tenant, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return nil, services.ErrUnauthorized
	}

	if tenant, ok := snap.TenantForToken(token); ok {
		return tenant, nil
	}

	if len(r.jwtSecret) > 0 && strings.Count(token, ".") == 2 {
		return r.resolveJWT(snap, token)
	}

	return nil, services.ErrInvalidCredential
}

func (r *Resolver) resolveJWT(snap *Snapshot, token string) (*models.Tenant, error) {
	claims := &TenantClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, services.ErrInvalidCredential
		}
		return r.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		r.logger.Debug("jwt credential rejected", zap.Error(err))
		return nil, services.ErrInvalidCredential
	}

	tenant, ok := snap.Tenant(claims.Tenant)
	if !ok {
		return nil, services.ErrInvalidCredential
	}
	return tenant, nil
}

// bearerToken extracts the token from a "Bearer <token>" header value.
func bearerToken(authorization string) (string, bool) {
	parts := strings.Fields(authorization)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
