package pkg

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// IsDuplicateKeyError checks if the error is a unique index violation.
// The unique index on slugs is the authoritative duplicate-slug signal,
// the application-level pre-checks are just the friendly fast path.
func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNoDocumentsError checks if the error means no document matched the filter.
func IsNoDocumentsError(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
