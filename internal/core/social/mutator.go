// Package social applies like and save mutations for a (post, user) pair.
//
// The store only supports whole-array field updates, so likes are sent as the
// full new set computed from local state. Concurrent toggles from different
// clients are last-write-wins at the store. Nothing is rolled back on failure:
// every mutation settles by invalidating the affected queries, and the next
// read reconciles local state with the store.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/core/querycache"
	"Snapfeed/internal/core/users"
	"Snapfeed/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mutation operation names, used in errors and metrics.
const (
	OpLike   = "like"
	OpSave   = "save"
	OpUnsave = "unsave"
)

// MutationError is a recoverable write failure, reported to the caller for
// display. Local optimistic state is left as it was.
type MutationError struct {
	Err    error
	Op     string
	PostID string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s post %s: %v", e.Op, e.PostID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// IsMutationError checks if error is a mutation failure
func IsMutationError(err error) bool {
	var mErr *MutationError
	return errors.As(err, &mErr)
}

// Mutator issues social writes against the document store.
type Mutator struct {
	store       documents.Client
	cache       *querycache.Cache
	logger      *slog.Logger
	tracer      trace.Tracer
	collections documents.Collections
}

// NewMutator creates a mutator. cache may be nil.
func NewMutator(store documents.Client, collections documents.Collections, cache *querycache.Cache, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		store:       store,
		collections: collections,
		cache:       cache,
		logger:      logger,
		tracer:      otel.Tracer("Snapfeed/internal/core/social"),
	}
}

// LikePost replaces the post's likes with the given set.
func (m *Mutator) LikePost(ctx context.Context, postID string, likes []string) (*documents.Document, error) {
	ctx, span := m.start(ctx, OpLike, postID)
	defer span.End()
	span.SetAttributes(attribute.Int("social.likes", len(likes)))

	arr := make([]any, len(likes))
	for i, id := range likes {
		arr[i] = id
	}
	doc, err := m.store.UpdateDocument(ctx, m.collections.Posts, postID, map[string]any{"likes": arr})
	return doc, m.settle(ctx, span, OpLike, postID, err)
}

// SavePost creates a save record linking userID to postID.
func (m *Mutator) SavePost(ctx context.Context, postID, userID string) (*users.SaveRecord, error) {
	ctx, span := m.start(ctx, OpSave, postID)
	defer span.End()

	doc, err := m.store.CreateDocument(ctx, m.collections.Saves, "", map[string]any{
		"user": userID,
		"post": postID,
	})
	if err = m.settle(ctx, span, OpSave, postID, err); err != nil {
		return nil, err
	}
	rec := users.SaveRecordFromDocument(doc)
	return &rec, nil
}

// DeleteSavedPost deletes the save record recordID of postID.
func (m *Mutator) DeleteSavedPost(ctx context.Context, postID, recordID string) error {
	ctx, span := m.start(ctx, OpUnsave, postID)
	defer span.End()
	span.SetAttributes(attribute.String("social.save_id", recordID))

	err := m.store.DeleteDocument(ctx, m.collections.Saves, recordID)
	return m.settle(ctx, span, OpUnsave, postID, err)
}

func (m *Mutator) start(ctx context.Context, op, postID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "social."+op, trace.WithAttributes(
		attribute.String("social.op", op),
		attribute.String("social.post_id", postID),
	))
}

// settle invalidates recent posts, current user and the post itself whether or
// not the write succeeded, then wraps a failure as a MutationError.
func (m *Mutator) settle(ctx context.Context, span trace.Span, op, postID string, err error) error {
	m.cache.Invalidate(context.WithoutCancel(ctx),
		querycache.RecentPosts(),
		querycache.CurrentUser(),
		querycache.PostByID(postID),
	)

	if err == nil {
		metrics.SocialMutations.WithLabelValues(op, metrics.OutcomeOK).Inc()
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	metrics.SocialMutations.WithLabelValues(op, metrics.OutcomeError).Inc()
	m.logger.Warn("social mutation failed",
		"op", op,
		"post_id", postID,
		"error", err)
	return &MutationError{Op: op, PostID: postID, Err: err}
}
