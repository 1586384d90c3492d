package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
)

// Resolver caches directory entries with a TTL and answers identity
// lookups from the in-memory snapshot. Lookups are case-insensitive.
type Resolver struct {
	source PageSource
	ttl    time.Duration
	log    *logging.Logger

	mu        sync.RWMutex
	entries   map[string]domain.UserMetadata // keyed by lowercased internal name
	reverse   map[string]string              // lowercased display name -> internal key
	fetchedAt time.Time
	inFlight  bool
}

// NewResolver creates a resolver over the given source. A zero ttl
// disables expiry, so only forced refreshes hit the source.
func NewResolver(source PageSource, ttl time.Duration, log *logging.Logger) *Resolver {
	return &Resolver{
		source:  source,
		ttl:     ttl,
		log:     log.Sub("directory"),
		entries: map[string]domain.UserMetadata{},
		reverse: map[string]string{},
	}
}

// Resolve returns the public identity for an internal name using the
// current snapshot only. Unknown names fall back to the internal name
// with no guest or host flags, so display never blocks on the upstream.
func (r *Resolver) Resolve(name string) domain.Identity {
	r.mu.RLock()
	entry, ok := r.entries[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return domain.Identity{DisplayName: name}
	}
	display := entry.DisplayName()
	if display == "" {
		display = name
	}
	return domain.Identity{
		DisplayName: display,
		IsGuest:     entry.IsGuest,
		IsHost:      entry.IsHost,
	}
}

// ReverseResolve maps a public display name back to the internal name.
// Returns false if no entry displays under that name. Overrides win over
// canonical names when both match.
func (r *Resolver) ReverseResolve(display string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.reverse[strings.ToLower(display)]
	return key, ok
}

// Metadata returns the raw directory entry for an internal name.
func (r *Resolver) Metadata(name string) (domain.UserMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[strings.ToLower(name)]
	return entry, ok
}

// EntryCount returns the number of cached entries.
func (r *Resolver) EntryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// LastRefresh returns when the snapshot was last replaced.
func (r *Resolver) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fetchedAt
}

// EnsureFresh refreshes the snapshot when the TTL has expired. Concurrent
// callers collapse onto one fetch; the rest keep serving the stale
// snapshot. A failed fetch also falls back to the stale snapshot.
func (r *Resolver) EnsureFresh(ctx context.Context) error {
	r.mu.Lock()
	if !r.stale() || r.inFlight {
		r.mu.Unlock()
		return nil
	}
	r.inFlight = true
	r.mu.Unlock()

	err := r.refresh(ctx)
	if err != nil && r.hasSnapshot() {
		r.log.Warn().Err(err).Msg("directory refresh failed, serving stale entries")
		return nil
	}
	return err
}

// Refresh forces a fetch regardless of TTL.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return nil
	}
	r.inFlight = true
	r.mu.Unlock()

	return r.refresh(ctx)
}

func (r *Resolver) refresh(ctx context.Context) error {
	fetched, err := r.source.FetchEntries(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = false

	if err != nil {
		return err
	}

	next := make(map[string]domain.UserMetadata, len(fetched))
	for _, entry := range fetched {
		next[strings.ToLower(entry.OriginalName)] = entry
	}

	// Canonical names first so overrides win on collision.
	reverse := make(map[string]string, len(next))
	for key, entry := range next {
		reverse[strings.ToLower(entry.OriginalName)] = key
	}
	for key, entry := range next {
		if entry.Override != "" {
			reverse[strings.ToLower(entry.Override)] = key
		}
	}

	r.entries = next
	r.reverse = reverse
	r.fetchedAt = time.Now()
	r.log.Debug().Int("entries", len(next)).Msg("directory snapshot replaced")
	return nil
}

// hasSnapshot reports whether any entries are cached.
func (r *Resolver) hasSnapshot() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries) > 0
}

// stale reports whether the snapshot is past its TTL. Callers hold r.mu.
func (r *Resolver) stale() bool {
	if r.fetchedAt.IsZero() {
		return true
	}
	if r.ttl <= 0 {
		return false
	}
	return time.Since(r.fetchedAt) > r.ttl
}
