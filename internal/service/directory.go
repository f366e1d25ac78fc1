package service

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

type firebaseDirectory struct {
	users userGetter
}

// NewFirebaseDirectory treats every Firebase Auth user as a valid recipient.
func NewFirebaseDirectory(users userGetter) Directory {
	return &firebaseDirectory{users: users}
}

func (d *firebaseDirectory) Exists(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, nil
	}
	if _, err := d.users.GetUser(ctx, uid); err != nil {
		if auth.IsUserNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
