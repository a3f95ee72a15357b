package storage

import "github.com/dukerupert/comptoir/internal/domain"

var (
	ErrR2AccountIDRequired   = domain.Errorf(domain.EINVALID, "storage.NewR2Storage", "R2 account ID is required")
	ErrR2CredentialsRequired = domain.Errorf(domain.EINVALID, "storage.NewR2Storage", "R2 credentials are required")
	ErrR2BucketRequired      = domain.Errorf(domain.EINVALID, "storage.NewR2Storage", "R2 bucket name is required")

	ErrInvalidSignature = domain.Errorf(domain.EINVALID, "storage.SaveSignature", "Signature image must be a PNG or JPEG data URI")
	ErrSignatureTooBig  = domain.Errorf(domain.ETOOLARGE, "storage.SaveSignature", "Signature image is too large")
)

// ErrFileNotFound reports a missing object.
func ErrFileNotFound(key string) error {
	return domain.NotFound("storage.Get", "file", key)
}

// ErrInvalidKey rejects keys that would escape the storage root.
func ErrInvalidKey(key string) error {
	return domain.Errorf(domain.EINVALID, "storage.Key", "invalid storage key: %q", key)
}

func ErrUnknownProvider(provider string) error {
	return domain.Errorf(domain.EINVALID, "storage.New", "unknown storage provider: %s", provider)
}
