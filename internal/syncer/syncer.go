// Package syncer periodically refreshes the people directory and
// back-fills resolved author metadata onto stored sessions.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soyeahso/dialogs/internal/directory"
	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
)

// MetadataStore is the persistence surface the syncer needs.
type MetadataStore interface {
	Authors() ([]string, error)
	UpdateAuthorMetadata(author string, ident domain.Identity) (int64, error)
}

// Status describes the last sync run for the admin surface.
type Status struct {
	Running        bool      `json:"running"`
	LastRun        time.Time `json:"last_run,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	AuthorsUpdated int64     `json:"authors_updated"`
	RowsUpdated    int64     `json:"rows_updated"`
}

// Syncer runs the directory sync on a cron schedule and on demand.
type Syncer struct {
	store    MetadataStore
	resolver *directory.Resolver
	log      *logging.Logger
	cron     *cron.Cron
	entryID  cron.EntryID

	mu     sync.Mutex
	status Status
}

// New creates a syncer. Call Start to arm the schedule.
func New(store MetadataStore, resolver *directory.Resolver, log *logging.Logger) *Syncer {
	return &Syncer{
		store:    store,
		resolver: resolver,
		log:      log.Sub("syncer"),
		cron:     cron.New(),
	}
}

// Start arms the cron schedule. Spec accepts standard cron expressions
// and @every descriptors.
func (s *Syncer) Start(spec string) error {
	id, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunNow(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("scheduled sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling sync: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.log.Info().Str("schedule", spec).Msg("directory sync scheduled")
	return nil
}

// Stop halts the schedule, waiting for a running job to finish.
func (s *Syncer) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Status returns a snapshot of the last run.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RunNow forces a directory refresh and metadata back-fill. Concurrent
// runs are serialized, not collapsed; an admin-triggered run after a
// scheduled one still sees the freshest directory.
func (s *Syncer) RunNow(ctx context.Context) (Status, error) {
	s.mu.Lock()
	s.status.Running = true
	s.mu.Unlock()

	result, err := s.run(ctx)

	s.mu.Lock()
	s.status = result
	s.status.Running = false
	s.mu.Unlock()

	return result, err
}

func (s *Syncer) run(ctx context.Context) (Status, error) {
	status := Status{LastRun: time.Now()}

	if err := s.resolver.Refresh(ctx); err != nil {
		status.LastError = err.Error()
		return status, fmt.Errorf("refreshing directory: %w", err)
	}

	authors, err := s.store.Authors()
	if err != nil {
		status.LastError = err.Error()
		return status, fmt.Errorf("listing authors: %w", err)
	}

	for _, author := range authors {
		ident := s.resolver.Resolve(directory.OperatorName(author))
		rows, err := s.store.UpdateAuthorMetadata(author, ident)
		if err != nil {
			status.LastError = err.Error()
			return status, fmt.Errorf("updating author %s: %w", author, err)
		}
		status.AuthorsUpdated++
		status.RowsUpdated += rows
	}

	s.log.Info().
		Int64("authors", status.AuthorsUpdated).
		Int64("rows", status.RowsUpdated).
		Msg("directory sync complete")
	return status, nil
}
