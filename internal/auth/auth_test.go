package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"floorflow/backend/internal/actor"
	"floorflow/backend/internal/config"
	"floorflow/backend/internal/repository"
	"floorflow/backend/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct{}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

// MockTenantStore satisfies repository.TenantStore
type MockTenantStore struct {
	mock.Mock
}

func (m *MockTenantStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantStore) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

const (
	testIssuer   = "https://test-issuer.com"
	testClientID = "test-client"
)

func fakeToken(t *testing.T, email string) string {
	t.Helper()
	claims := map[string]interface{}{
		"iss":   testIssuer,
		"aud":   testClientID,
		"sub":   "test-user",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Add(-1 * time.Minute).Unix(),
		"email": email,
	}
	header, err := json.Marshal(map[string]interface{}{"alg": "RS256", "typ": "JWT", "kid": "test-key"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
}

func bearerAuth(tenants repository.TenantStore) *Auth {
	verifier := oidc.NewVerifier(testIssuer, &MockKeySet{}, &oidc.Config{
		ClientID:          testClientID,
		SkipClientIDCheck: true, // Matches logic in auth.go for apiVerifier
	})
	return &Auth{apiVerifier: verifier, tenants: tenants, logger: &NoOpLogger{}}
}

func TestRequireAuth_BearerToken_ExtractsTenantAndOperator(t *testing.T) {
	tenants := new(MockTenantStore)
	tenants.On("GetTenantByDomain", mock.Anything, "acme.com").
		Return(&models.Tenant{ID: "tenant-123", Name: "acme.com", Domain: "acme.com"}, nil)
	a := bearerAuth(tenants)

	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, "cutter@acme.com"))
	rec := httptest.NewRecorder()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tenant-123", actor.TenantID(r.Context()))
		assert.Equal(t, "cutter@acme.com", actor.OperatorID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	a.RequireAuth(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Logf("Response Body: %s", rec.Body.String())
	}
	assert.Equal(t, http.StatusOK, rec.Code)
	tenants.AssertExpectations(t)
}

func TestRequireAuth_BypassMode(t *testing.T) {
	tenants := new(MockTenantStore)
	tenants.On("GetTenantByDomain", mock.Anything, "localhost").Return(nil, repository.ErrNotFound)
	tenants.On("CreateTenant", mock.Anything, mock.MatchedBy(func(tenant *models.Tenant) bool {
		return tenant.Domain == "localhost"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Tenant).ID = "dev-tenant-id"
	}).Return(nil)

	cfg := &config.Config{Environment: "DEV", DevModeBypass: true}
	a, err := New(context.Background(), cfg, tenants, &NoOpLogger{})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	rec := httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dev-tenant-id", actor.TenantID(r.Context()))
		assert.Equal(t, DevOperator, actor.OperatorID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	a.RequireAuth(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	tenants.AssertExpectations(t)
}

func TestNew_IncompleteConfig(t *testing.T) {
	cfg := &config.Config{Environment: "PROD", DevModeBypass: true}
	_, err := New(context.Background(), cfg, new(MockTenantStore), &NoOpLogger{})
	assert.EqualError(t, err, "auth configuration is incomplete")
}

func TestRequireAuth_AutoProvisionTenant(t *testing.T) {
	tenants := new(MockTenantStore)
	tenants.On("GetTenantByDomain", mock.Anything, "startup.io").Return(nil, repository.ErrNotFound)
	tenants.On("CreateTenant", mock.Anything, mock.MatchedBy(func(tenant *models.Tenant) bool {
		return tenant.Domain == "startup.io" && tenant.Name == "startup.io"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Tenant).ID = "new-tenant-id"
	}).Return(nil)
	a := bearerAuth(tenants)

	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, "founder@startup.io"))
	rec := httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "new-tenant-id", actor.TenantID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	a.RequireAuth(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	tenants.AssertExpectations(t)
}

func TestRequireAuth_TenantLookupFailure(t *testing.T) {
	tenants := new(MockTenantStore)
	tenants.On("GetTenantByDomain", mock.Anything, "acme.com").Return(nil, errors.New("db down"))
	a := bearerAuth(tenants)

	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, "cutter@acme.com"))
	rec := httptest.NewRecorder()
	a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	tenants.AssertNotCalled(t, "CreateTenant", mock.Anything, mock.Anything)
}

func TestRequireAuth_RejectsBadInput(t *testing.T) {
	a := bearerAuth(new(MockTenantStore))

	t.Run("malformed bearer", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/items", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("email without domain", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/items", nil)
		req.Header.Set("Authorization", "Bearer "+fakeToken(t, "nobody"))
		rec := httptest.NewRecorder()
		a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no session redirects to login", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/items", nil)
		rec := httptest.NewRecorder()
		a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}
