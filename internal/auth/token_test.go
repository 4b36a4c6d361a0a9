package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret")
	require.NotNil(t, m)

	token, err := m.Generate("tick-driver")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "tick-driver", claims.Service)
	assert.Equal(t, "tick-driver", claims.Subject)
}

func TestNilManagerWhenNoSecret(t *testing.T) {
	assert.Nil(t, NewTokenManager(""))
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	m := NewTokenManager("secret-a")
	other := NewTokenManager("secret-b")

	token, err := other.Generate("tick-driver")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewTokenManager("test-secret")
	_, err := m.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/tick", nil)
	_, err := FromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "abc123")
	_, err = FromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Basic abc123")
	_, err = FromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Bearer abc123")
	token, err := FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestMiddleware(t *testing.T) {
	m := NewTokenManager("test-secret")
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := m.Middleware(next)

	// no token
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tick", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// bad token
	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/tick", nil)
	r.Header.Set("Authorization", "Bearer bogus")
	protected.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// valid token
	token, err := m.Generate("tick-driver")
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/tick", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	protected.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// preflight skips auth
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/tick", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// nil manager disables auth entirely
	var disabled *TokenManager
	rec = httptest.NewRecorder()
	disabled.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tick", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
