package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIDTokens map[string]string

func (f fakeIDTokens) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	uid, ok := f[idToken]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: uid}, nil
}

func serve(t *testing.T, mw *AuthMiddleware, target, authz string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/whoami", func(c echo.Context) error {
		uid, _ := c.Get("uid").(string)
		return c.String(http.StatusOK, uid)
	}, mw.RequireAuth)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth_Firebase(t *testing.T) {
	mw := NewAuthMiddleware(NewFirebaseVerifier(fakeIDTokens{"good": "buyer-b"}))

	rec := serve(t, mw, "/whoami", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buyer-b", rec.Body.String())

	rec = serve(t, mw, "/whoami", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"invalid_token"`)

	rec = serve(t, mw, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unauthorized"`)
}

func TestRequireAuth_QueryToken(t *testing.T) {
	mw := NewAuthMiddleware(NewFirebaseVerifier(fakeIDTokens{"good": "seller-s"}))
	rec := serve(t, mw, "/whoami?token=good", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seller-s", rec.Body.String())
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("s3cret")
	token, err := v.Sign("admin-a", time.Hour)
	require.NoError(t, err)

	uid, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "admin-a", uid)

	_, err = NewHMACVerifier("other").Verify(context.Background(), token)
	assert.Error(t, err)

	expired, err := v.Sign("admin-a", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.Error(t, err)

	rec := serve(t, NewAuthMiddleware(v), "/whoami", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-a", rec.Body.String())
}
