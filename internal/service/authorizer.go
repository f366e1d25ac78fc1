package service

import (
	"context"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/shinyyama/community-backend/internal/lifecycle"
)

type staticAuthorizer struct {
	admins map[string]struct{}
}

// NewStaticAuthorizer grants the admin role to a fixed list of uids.
func NewStaticAuthorizer(adminUIDs []string) Authorizer {
	m := make(map[string]struct{}, len(adminUIDs))
	for _, uid := range adminUIDs {
		if uid = strings.TrimSpace(uid); uid != "" {
			m[uid] = struct{}{}
		}
	}
	return &staticAuthorizer{admins: m}
}

func (a *staticAuthorizer) RoleOf(_ context.Context, uid string) (lifecycle.Party, error) {
	if _, ok := a.admins[uid]; ok {
		return lifecycle.PartyAdmin, nil
	}
	return 0, nil
}

type userGetter interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type firebaseAuthorizer struct {
	users    userGetter
	fallback Authorizer
}

// NewFirebaseAuthorizer reads the admin role from Firebase custom claims
// ({"admin": true} or {"role": "admin"}). fallback is consulted first.
func NewFirebaseAuthorizer(users userGetter, fallback Authorizer) Authorizer {
	return &firebaseAuthorizer{users: users, fallback: fallback}
}

func (a *firebaseAuthorizer) RoleOf(ctx context.Context, uid string) (lifecycle.Party, error) {
	if uid == "" {
		return 0, nil
	}
	if a.fallback != nil {
		role, err := a.fallback.RoleOf(ctx, uid)
		if err != nil || role.Has(lifecycle.PartyAdmin) {
			return role, err
		}
	}
	u, err := a.users.GetUser(ctx, uid)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if isAdminClaim(u.CustomClaims) {
		return lifecycle.PartyAdmin, nil
	}
	return 0, nil
}

func isAdminClaim(claims map[string]interface{}) bool {
	if v, ok := claims["admin"].(bool); ok && v {
		return true
	}
	if v, ok := claims["role"].(string); ok && v == "admin" {
		return true
	}
	return false
}
