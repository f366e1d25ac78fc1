package service

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]*auth.UserRecord

func (f fakeUsers) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	if u, ok := f[uid]; ok {
		return u, nil
	}
	return nil, errors.New("backend unavailable")
}

func TestStaticAuthorizer(t *testing.T) {
	a := NewStaticAuthorizer([]string{" admin-a ", ""})
	role, err := a.RoleOf(context.Background(), "admin-a")
	require.NoError(t, err)
	assert.True(t, role.Has(lifecycle.PartyAdmin))

	role, err = a.RoleOf(context.Background(), "buyer-b")
	require.NoError(t, err)
	assert.Zero(t, role)
}

func TestFirebaseAuthorizer_Claims(t *testing.T) {
	users := fakeUsers{
		"claim-admin": {CustomClaims: map[string]interface{}{"admin": true}},
		"role-admin":  {CustomClaims: map[string]interface{}{"role": "admin"}},
		"plain":       {},
	}
	a := NewFirebaseAuthorizer(users, NewStaticAuthorizer([]string{"listed"}))
	ctx := context.Background()

	for uid, want := range map[string]lifecycle.Party{
		"claim-admin": lifecycle.PartyAdmin,
		"role-admin":  lifecycle.PartyAdmin,
		"plain":       0,
		"listed":      lifecycle.PartyAdmin,
	} {
		got, err := a.RoleOf(ctx, uid)
		require.NoError(t, err, uid)
		assert.Equal(t, want, got, uid)
	}

	_, err := a.RoleOf(ctx, "unknown")
	require.Error(t, err)
}

func TestFirebaseDirectory(t *testing.T) {
	d := NewFirebaseDirectory(fakeUsers{"u1": {}})
	ok, err := d.Exists(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}
