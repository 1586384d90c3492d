// Package directory resolves internal chat identities to public display
// names using an upstream people directory (CMS).
package directory

import (
	"context"

	"github.com/soyeahso/dialogs/internal/domain"
)

// PageSource fetches directory entries from an upstream system.
type PageSource interface {
	// FetchEntries returns all directory entries. Implementations should
	// honor ctx cancellation and deadlines.
	FetchEntries(ctx context.Context) ([]domain.UserMetadata, error)
}

// StaticSource is a fixed in-memory PageSource, useful for tests and
// for deployments without an upstream directory.
type StaticSource struct {
	Entries []domain.UserMetadata
}

// FetchEntries returns the configured entries.
func (s *StaticSource) FetchEntries(ctx context.Context) ([]domain.UserMetadata, error) {
	return s.Entries, nil
}
