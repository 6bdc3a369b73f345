// Package catalogue resolves the set of programmes a recommendation may draw from.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/filtering"
	"github.com/spigell/programme-advisor/internal/metrics"
)

// ErrNoStore is returned when no catalogue collaborator is configured.
var ErrNoStore = errors.New("catalogue store is not configured")

// Store is the read-only catalogue collaborator.
type Store interface {
	ListEntries(ctx context.Context) (contract.Catalogue, error)
}

// Options tune the resolver.
type Options struct {
	// Filters are shared by every call and must not be modified after construction.
	Filters          []filtering.Filter
	DescriptionLimit int
	Metrics          *metrics.Metrics
}

// Resolver reads a fresh snapshot from the store on every call. Nothing is cached.
type Resolver struct {
	store            Store
	filters          []filtering.Filter
	descriptionLimit int
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

// NewResolver creates a Resolver. store may be nil, in which case only the inline fallback is used.
func NewResolver(store Store, opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:            store,
		filters:          opts.Filters,
		descriptionLimit: opts.DescriptionLimit,
		metrics:          opts.Metrics,
		logger:           logger,
	}
}

// Snapshot reads every entry from the store and applies the configured filters.
func (r *Resolver) Snapshot(ctx context.Context) (contract.Catalogue, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}

	entries, err := r.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalogue entries: %w", err)
	}

	if len(r.filters) == 0 {
		return entries, nil
	}

	filtered, err := filtering.Run(ctx, filtering.Deps{Logger: r.logger}, r.filters, entries)
	if err != nil {
		return nil, fmt.Errorf("filter catalogue: %w", err)
	}
	return filtered, nil
}

// Resolve returns the rendered catalogue text. The store wins when it yields at least one
// entry; otherwise inlineFallback is returned unmodified. With neither it fails with
// CatalogueUnavailable.
func (r *Resolver) Resolve(ctx context.Context, inlineFallback string) (string, error) {
	entries, err := r.Snapshot(ctx)
	switch {
	case err != nil && !errors.Is(err, ErrNoStore):
		r.logger.Warn("catalogue store unavailable", zap.Error(err))
	case err == nil && len(entries) == 0:
		r.logger.Warn("catalogue store returned no entries")
	case err == nil:
		r.logger.Debug("catalogue resolved from store", zap.Int("entries", len(entries)))
		r.metrics.ObserveCatalogueSource(metrics.SourceStore)
		return Render(entries, r.descriptionLimit), nil
	}

	if strings.TrimSpace(inlineFallback) != "" {
		r.logger.Info("using inline catalogue supplied by caller")
		r.metrics.ObserveCatalogueSource(metrics.SourceInline)
		return inlineFallback, nil
	}

	r.metrics.ObserveCatalogueSource(metrics.SourceNone)
	return "", contract.NewFailure(contract.KindCatalogueUnavailable, "no catalogue source produced any programmes", err)
}
