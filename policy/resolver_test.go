package policy

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-gateway/services"
	"go.uber.org/zap"
)

var resolverSecret = []byte("resolver-test-secret")

func newTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	doc, err := Parse([]byte(storeDoc))
	require.NoError(t, err)
	return doc.Compile()
}

func signToken(t *testing.T, secret []byte, tenant string, expiresIn time.Duration) string {
	t.Helper()
	claims := &TenantClaims{
		Tenant: tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestResolve_StaticToken(t *testing.T) {
	r := NewResolver(resolverSecret, zap.NewNop())
	snap := newTestSnapshot(t)

	tenant, err := r.Resolve(snap, "Bearer tok-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.ID)
}

func TestResolve_JWT(t *testing.T) {
	r := NewResolver(resolverSecret, zap.NewNop())
	snap := newTestSnapshot(t)

	token := signToken(t, resolverSecret, "acme", time.Hour)
	tenant, err := r.Resolve(snap, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.ID)
}

func TestResolve_JWTRejections(t *testing.T) {
	r := NewResolver(resolverSecret, zap.NewNop())
	snap := newTestSnapshot(t)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", signToken(t, resolverSecret, "acme", -time.Hour)},
		{"wrong secret", signToken(t, []byte("other-secret"), "acme", time.Hour)},
		{"unknown tenant claim", signToken(t, resolverSecret, "globex", time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(snap, "Bearer "+tt.token)
			assert.ErrorIs(t, err, services.ErrInvalidCredential)
		})
	}
}

func TestResolve_JWTDisabledWithoutSecret(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())
	snap := newTestSnapshot(t)

	token := signToken(t, resolverSecret, "acme", time.Hour)
	_, err := r.Resolve(snap, "Bearer "+token)
	assert.ErrorIs(t, err, services.ErrInvalidCredential)
}

func TestResolve_MalformedAuthorization(t *testing.T) {
	r := NewResolver(resolverSecret, zap.NewNop())
	snap := newTestSnapshot(t)

	for _, header := range []string{"", "tok-1", "Basic dXNlcg==", "Bearer", "Bearer a b"} {
		_, err := r.Resolve(snap, header)
		assert.Error(t, err, "header %q", header)
	}
}

func TestResolve_UnknownStaticToken(t *testing.T) {
	r := NewResolver(resolverSecret, zap.NewNop())
	snap := newTestSnapshot(t)

	_, err := r.Resolve(snap, "Bearer not-a-token")
	assert.ErrorIs(t, err, services.ErrInvalidCredential)
}
