// Package creators resolves the creator relation of a post into a display triple.
// Resolution never fails: missing or unreachable users degrade to placeholder values.
package creators

import (
	"context"
	"log/slog"
	"sync"

	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/metrics"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Display defaults applied when a field is blank or resolution fails.
const (
	UnknownName        = "Unknown"
	DefaultPlaceholder = "/assets/icons/profile-placeholder.svg"
)

// defaultConcurrency bounds parallel user fetches within one batch.
const defaultConcurrency = 8

// Creator is the resolved creator of a post.
type Creator struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// Resolver maps creator references to Creators, fetching user documents for bare IDs.
type Resolver struct {
	store       documents.Client
	logger      *slog.Logger
	collection  string
	placeholder string
	group       singleflight.Group
	concurrency int
}

// NewResolver creates a resolver reading user documents from usersCollection.
// An empty placeholder selects DefaultPlaceholder.
func NewResolver(store documents.Client, usersCollection, placeholder string, logger *slog.Logger) *Resolver {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:       store,
		collection:  usersCollection,
		placeholder: placeholder,
		logger:      logger,
		concurrency: defaultConcurrency,
	}
}

// Placeholder returns the image path used for unresolved creators.
func (r *Resolver) Placeholder() string { return r.placeholder }

// Resolve returns the creator for ref. Embedded snapshots are trusted as-is with
// blank fields defaulted; bare IDs cost one user fetch.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) Creator {
	switch {
	case ref.IsEmbedded():
		metrics.CreatorResolutions.WithLabelValues(metrics.OutcomeEmbedded).Inc()
		s, _ := ref.Snapshot()
		return r.withDefaults(s.ID, s.Name, s.ImageURL)
	case ref.IsReference():
		return r.fetch(ctx, ref.ID())
	default:
		metrics.CreatorResolutions.WithLabelValues(metrics.OutcomeFallback).Inc()
		return r.fallback("")
	}
}

// ResolveBatch resolves refs in order, fetching each distinct user ID once.
// Fetches run concurrently, bounded by the resolver's concurrency limit.
func (r *Resolver) ResolveBatch(ctx context.Context, refs []Ref) []Creator {
	ids := lo.Uniq(lo.FilterMap(refs, func(ref Ref, _ int) (string, bool) {
		return ref.ID(), ref.IsReference()
	}))

	var (
		mu       sync.Mutex
		resolved = make(map[string]Creator, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			c := r.fetch(gctx, id)
			mu.Lock()
			resolved[id] = c
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Creator, len(refs))
	for i, ref := range refs {
		if ref.IsReference() {
			out[i] = resolved[ref.ID()]
			continue
		}
		out[i] = r.Resolve(ctx, ref)
	}
	return out
}

// fetch loads one user. Concurrent fetches of the same ID share a single request,
// which runs detached from the cancellation of whichever caller started it.
func (r *Resolver) fetch(ctx context.Context, id string) Creator {
	shared := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do(id, func() (any, error) {
		doc, err := r.store.GetDocument(shared, r.collection, id)
		if err != nil {
			metrics.CreatorResolutions.WithLabelValues(metrics.OutcomeFallback).Inc()
			r.logger.Warn("creator resolution failed, using placeholder",
				"user_id", id,
				"not_found", documents.IsNotFound(err),
				"error", err)
			return r.fallback(id), nil
		}
		metrics.CreatorResolutions.WithLabelValues(metrics.OutcomeFetched).Inc()
		return r.withDefaults(id, doc.String("name"), doc.String("imageUrl")), nil
	})
	return v.(Creator)
}

func (r *Resolver) withDefaults(id, name, imageURL string) Creator {
	if name == "" {
		name = UnknownName
	}
	if imageURL == "" {
		imageURL = r.placeholder
	}
	return Creator{ID: id, Name: name, ImageURL: imageURL}
}

func (r *Resolver) fallback(id string) Creator {
	return Creator{ID: id, Name: UnknownName, ImageURL: r.placeholder}
}
