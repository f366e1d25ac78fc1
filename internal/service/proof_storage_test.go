package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedProofType(t *testing.T) {
	assert.True(t, AllowedProofType("image/png"))
	assert.True(t, AllowedProofType("IMAGE/JPEG; charset=binary"))
	assert.True(t, AllowedProofType("application/pdf"))
	assert.False(t, AllowedProofType("text/html"))
	assert.False(t, AllowedProofType(""))
}

func TestMemoryProofStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProofStorage()

	ref, err := s.Store(ctx, "txn-1", []byte("receipt"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "proofs/txn-1/"))
	assert.True(t, strings.HasSuffix(ref, ".jpg"))
	assert.Equal(t, 1, s.Len())

	url, err := s.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "memory://"+ref, url)

	require.NoError(t, s.Delete(ctx, ref))
	_, err = s.Resolve(ctx, ref)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	s.Err = errors.New("bucket down")
	_, err = s.Store(ctx, "txn-1", []byte("receipt"), "image/png")
	assert.ErrorIs(t, err, lifecycle.ErrStorageFailure)
	assert.Equal(t, "storage_failure", lifecycle.Code(err))
}
