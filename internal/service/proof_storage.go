package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/shinyyama/community-backend/internal/lifecycle"
)

const downloadTokenKey = "firebaseStorageDownloadTokens"

var proofExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// AllowedProofType reports whether contentType may be stored as payment evidence.
func AllowedProofType(contentType string) bool {
	_, ok := proofExtensions[normalizeContentType(contentType)]
	return ok
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func proofObjectPath(transactionID, contentType string) string {
	return fmt.Sprintf("proofs/%s/%s%s", transactionID, uuid.NewString(), proofExtensions[normalizeContentType(contentType)])
}

type gcsProofStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSProofStorage stores proofs in a Firebase Storage bucket. The returned
// reference is the object path; Resolve turns it into a token download URL.
func NewGCSProofStorage(client *storage.Client, bucket string) ProofStorage {
	return &gcsProofStorage{client: client, bucket: bucket}
}

func (s *gcsProofStorage) Store(ctx context.Context, transactionID string, data []byte, contentType string) (string, error) {
	objectPath := proofObjectPath(transactionID, contentType)
	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = normalizeContentType(contentType)
	w.Metadata = map[string]string{
		downloadTokenKey: uuid.NewString(),
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("%w: %v", lifecycle.ErrStorageFailure, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", lifecycle.ErrStorageFailure, err)
	}
	return objectPath, nil
}

func (s *gcsProofStorage) Resolve(ctx context.Context, ref string) (string, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(ref).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("%w: proof %s", lifecycle.ErrNotFound, ref)
		}
		return "", fmt.Errorf("%w: %v", lifecycle.ErrStorageFailure, err)
	}
	token := attrs.Metadata[downloadTokenKey]
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		s.bucket, url.PathEscape(ref), token), nil
}

func (s *gcsProofStorage) Delete(ctx context.Context, ref string) error {
	err := s.client.Bucket(s.bucket).Object(ref).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %v", lifecycle.ErrStorageFailure, err)
	}
	return nil
}

// MemoryProofStorage keeps proofs in process. Set Err to make every call fail.
type MemoryProofStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
	Err   error
}

func NewMemoryProofStorage() *MemoryProofStorage {
	return &MemoryProofStorage{blobs: map[string][]byte{}}
}

func (s *MemoryProofStorage) Store(_ context.Context, transactionID string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", fmt.Errorf("%w: %v", lifecycle.ErrStorageFailure, s.Err)
	}
	ref := proofObjectPath(transactionID, contentType)
	s.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *MemoryProofStorage) Resolve(_ context.Context, ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[ref]; !ok {
		return "", fmt.Errorf("%w: proof %s", lifecycle.ErrNotFound, ref)
	}
	return "memory://" + ref, nil
}

func (s *MemoryProofStorage) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}

// Len reports how many proofs are stored.
func (s *MemoryProofStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
