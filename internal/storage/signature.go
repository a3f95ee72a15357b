package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// MaxSignatureBytes bounds a decoded signature image.
const MaxSignatureBytes = 256 << 10

var signatureTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// SignatureStore files the hand-drawn signature captured on a quote's
// public signature page.
type SignatureStore struct {
	store    Storage
	maxBytes int
}

func NewSignatureStore(store Storage) *SignatureStore {
	return &SignatureStore{store: store, maxBytes: MaxSignatureBytes}
}

// SaveSignature decodes a base64 data URI and stores it under
// signatures/{quoteID}/. It returns the object key.
func (s *SignatureStore) SaveSignature(ctx context.Context, quoteID uuid.UUID, dataURI string) (string, error) {
	mediaType, data, err := s.decode(dataURI)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("signatures/%s/%s%s", quoteID, uuid.New(), signatureTypes[mediaType])
	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), mediaType); err != nil {
		return "", fmt.Errorf("failed to store signature: %w", err)
	}
	return key, nil
}

// DeleteSignature removes an image whose signature was not recorded.
func (s *SignatureStore) DeleteSignature(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// decode accepts data:image/png;base64,... and the JPEG equivalent. The
// declared type must match the content.
func (s *SignatureStore) decode(dataURI string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return "", nil, ErrInvalidSignature
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidSignature
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrInvalidSignature
	}
	if _, allowed := signatureTypes[mediaType]; !allowed {
		return "", nil, ErrInvalidSignature
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > s.maxBytes+2 {
		return "", nil, ErrSignatureTooBig
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", nil, ErrInvalidSignature
	}
	if len(data) > s.maxBytes {
		return "", nil, ErrSignatureTooBig
	}
	if http.DetectContentType(data) != mediaType {
		return "", nil, ErrInvalidSignature
	}
	return mediaType, data, nil
}
