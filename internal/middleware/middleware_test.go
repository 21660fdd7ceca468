package middleware_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sagarjadhav/tablemate/internal/middleware"
	fixtures "github.com/sagarjadhav/tablemate/test/fixtures/models"
	"github.com/sagarjadhav/tablemate/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/zerodha/fastglue"
)

const testJWTSecret = "test-secret-key-must-be-at-least-32-chars"

func newTestRequest() *fastglue.Request {
	return &fastglue.Request{RequestCtx: &fasthttp.RequestCtx{}}
}

// signToken mints a dashboard session token. Defaults describe an active
// agent; tweak mutates the claims before signing.
func signToken(t *testing.T, secret string, tweak func(*middleware.JWTClaims)) string {
	t.Helper()

	claims := middleware.JWTClaims{
		UserID:         uuid.New(),
		OrganizationID: uuid.New(),
		Email:          "agent@tablemate.test",
		Role:           "agent",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if tweak != nil {
		tweak(&claims)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuth_RejectsBadCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
	}{
		{name: "no authorization header", header: ""},
		{name: "bare token without scheme", header: signToken(t, testJWTSecret, nil)},
		{name: "basic auth scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not.a.valid.jwt"},
		{
			name: "token signed with another secret",
			header: "Bearer " + signToken(t, "some-other-installation-secret-key", nil),
		},
		{
			name: "expired session",
			header: "Bearer " + signToken(t, testJWTSecret, func(c *middleware.JWTClaims) {
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			}),
		},
	}

	auth := middleware.Auth(testJWTSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := newTestRequest()
			if tt.header != "" {
				req.RequestCtx.Request.Header.Set("Authorization", tt.header)
			}

			result := auth(req)
			assert.Nil(t, result)
			assert.Equal(t, fasthttp.StatusUnauthorized, req.RequestCtx.Response.StatusCode())
		})
	}
}

func TestAuth_PopulatesSessionContext(t *testing.T) {
	t.Parallel()

	userID, orgID := uuid.New(), uuid.New()
	token := signToken(t, testJWTSecret, func(c *middleware.JWTClaims) {
		c.UserID = userID
		c.OrganizationID = orgID
		c.Email = "owner@trattoria.example"
		c.Role = "admin"
	})

	req := newTestRequest()
	req.RequestCtx.Request.Header.Set("Authorization", "Bearer "+token)

	result := middleware.Auth(testJWTSecret)(req)
	require.NotNil(t, result)

	gotUserID, ok := middleware.GetUserID(result)
	require.True(t, ok)
	assert.Equal(t, userID, gotUserID)

	gotOrgID, ok := middleware.GetOrganizationID(result)
	require.True(t, ok)
	assert.Equal(t, orgID, gotOrgID)

	assert.Equal(t, "owner@trattoria.example", result.RequestCtx.UserValue(middleware.ContextKeyEmail))
	assert.Equal(t, "admin", result.RequestCtx.UserValue(middleware.ContextKeyRole))
}

func TestOrganizationContext(t *testing.T) {
	db := testutil.SetupTestDB(t)

	org := fixtures.NewOrganization().Build()
	require.NoError(t, db.Create(&org).Error)
	user := fixtures.NewUser(org.ID).Build()
	require.NoError(t, db.Create(&user).Error)
	disabled := fixtures.NewUser(org.ID).Inactive().Build()
	require.NoError(t, db.Create(&disabled).Error)

	orgContext := middleware.OrganizationContext(db)

	t.Run("active user is attached with their organization", func(t *testing.T) {
		req := newTestRequest()
		req.RequestCtx.SetUserValue(middleware.ContextKeyUserID, user.ID)
		req.RequestCtx.SetUserValue(middleware.ContextKeyOrganizationID, org.ID)

		result := orgContext(req)
		require.NotNil(t, result)

		gotUser, ok := middleware.GetUser(result)
		require.True(t, ok)
		assert.Equal(t, user.Email, gotUser.Email)

		gotOrg, ok := middleware.GetOrganization(result)
		require.True(t, ok)
		assert.Equal(t, org.Name, gotOrg.Name)
	})

	t.Run("disabled account is rejected", func(t *testing.T) {
		req := newTestRequest()
		req.RequestCtx.SetUserValue(middleware.ContextKeyUserID, disabled.ID)
		req.RequestCtx.SetUserValue(middleware.ContextKeyOrganizationID, org.ID)

		result := orgContext(req)
		assert.Nil(t, result)
		assert.Equal(t, fasthttp.StatusUnauthorized, req.RequestCtx.Response.StatusCode())
	})

	t.Run("deleted user is rejected", func(t *testing.T) {
		req := newTestRequest()
		req.RequestCtx.SetUserValue(middleware.ContextKeyUserID, uuid.New())
		req.RequestCtx.SetUserValue(middleware.ContextKeyOrganizationID, org.ID)

		result := orgContext(req)
		assert.Nil(t, result)
		assert.Equal(t, fasthttp.StatusUnauthorized, req.RequestCtx.Response.StatusCode())
	})

	t.Run("missing session context is rejected", func(t *testing.T) {
		req := newTestRequest()

		result := orgContext(req)
		assert.Nil(t, result)
		assert.Equal(t, fasthttp.StatusUnauthorized, req.RequestCtx.Response.StatusCode())
	})
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		role        string
		allowed     []string
		wantAllowed bool
	}{
		{name: "admin on admin-only route", role: "admin", allowed: []string{"admin"}, wantAllowed: true},
		{name: "agent on admin-only route", role: "agent", allowed: []string{"admin"}, wantAllowed: false},
		{name: "manager where managers may act", role: "manager", allowed: []string{"admin", "manager"}, wantAllowed: true},
		{name: "agent on an open route", role: "agent", allowed: []string{"admin", "manager", "agent"}, wantAllowed: true},
		{name: "unknown role", role: "waiter", allowed: []string{"admin", "manager", "agent"}, wantAllowed: false},
		{name: "role missing from context", role: "", allowed: []string{"admin"}, wantAllowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := newTestRequest()
			if tt.role != "" {
				req.RequestCtx.SetUserValue(middleware.ContextKeyRole, tt.role)
			}

			result := middleware.RequireRole(tt.allowed...)(req)
			if tt.wantAllowed {
				assert.NotNil(t, result)
			} else {
				assert.Nil(t, result)
				assert.Equal(t, fasthttp.StatusForbidden, req.RequestCtx.Response.StatusCode())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	t.Run("echoes the dashboard origin", func(t *testing.T) {
		t.Parallel()

		req := newTestRequest()
		req.RequestCtx.Request.Header.Set("Origin", "https://dashboard.tablemate.example")

		result := middleware.CORS()(req)
		require.NotNil(t, result)

		header := &result.RequestCtx.Response.Header
		assert.Equal(t, "https://dashboard.tablemate.example", string(header.Peek("Access-Control-Allow-Origin")))
		assert.Equal(t, "true", string(header.Peek("Access-Control-Allow-Credentials")))
		assert.Contains(t, string(header.Peek("Access-Control-Allow-Headers")), "Authorization")
		assert.Contains(t, string(header.Peek("Access-Control-Allow-Methods")), "DELETE")
	})

	t.Run("no origin falls back to wildcard", func(t *testing.T) {
		t.Parallel()

		result := middleware.CORS()(newTestRequest())
		require.NotNil(t, result)
		assert.Equal(t, "*", string(result.RequestCtx.Response.Header.Peek("Access-Control-Allow-Origin")))
	})
}

func TestRequestLogger_StampsStartTime(t *testing.T) {
	t.Parallel()

	result := middleware.RequestLogger(testutil.NopLogger())(newTestRequest())
	require.NotNil(t, result)

	start, ok := result.RequestCtx.UserValue("request_start").(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), start, time.Second)
}

func TestRecovery_PassesRequestThrough(t *testing.T) {
	t.Parallel()

	result := middleware.Recovery(testutil.NopLogger())(newTestRequest())
	require.NotNil(t, result)
}

func TestContextGetters_WrongTypeIsMiss(t *testing.T) {
	t.Parallel()

	req := newTestRequest()
	req.RequestCtx.SetUserValue(middleware.ContextKeyUserID, "not-a-uuid")
	req.RequestCtx.SetUserValue(middleware.ContextKeyOrganizationID, 42)

	_, ok := middleware.GetUserID(req)
	assert.False(t, ok)
	_, ok = middleware.GetOrganizationID(req)
	assert.False(t, ok)
	_, ok = middleware.GetUser(req)
	assert.False(t, ok)
	_, ok = middleware.GetOrganization(req)
	assert.False(t, ok)
}

// The stack the server wires for management routes, end to end: CORS, then
// the session token, then the role gate.
func TestMiddlewareChain_ManagementRoute(t *testing.T) {
	t.Parallel()

	userID, orgID := uuid.New(), uuid.New()
	token := signToken(t, testJWTSecret, func(c *middleware.JWTClaims) {
		c.UserID = userID
		c.OrganizationID = orgID
		c.Role = "admin"
	})

	req := newTestRequest()
	req.RequestCtx.Request.Header.Set("Authorization", "Bearer "+token)
	req.RequestCtx.Request.Header.Set("Origin", "https://dashboard.tablemate.example")

	for _, mw := range []fastglue.FastMiddleware{
		middleware.CORS(),
		middleware.Auth(testJWTSecret),
		middleware.RequireRole("admin", "manager"),
	} {
		req = mw(req)
		require.NotNil(t, req)
	}

	gotUserID, _ := middleware.GetUserID(req)
	assert.Equal(t, userID, gotUserID)
	gotOrgID, _ := middleware.GetOrganizationID(req)
	assert.Equal(t, orgID, gotOrgID)
	assert.Equal(t, "https://dashboard.tablemate.example",
		string(req.RequestCtx.Response.Header.Peek("Access-Control-Allow-Origin")))
}
