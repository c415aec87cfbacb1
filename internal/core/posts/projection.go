package posts

import (
	"context"
	"log/slog"

	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/creators"
	"Snapfeed/internal/core/documents"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// imageLookupConcurrency bounds parallel view-URL lookups in ProjectAll.
const imageLookupConcurrency = 4

// Projector maps raw post documents to Posts.
// Projection never fails: creator and image lookups degrade to placeholders.
type Projector struct {
	resolver *creators.Resolver
	blobs    blobs.Store
	logger   *slog.Logger
}

// NewProjector creates a projector. blobStore may be nil, in which case posts
// without an imageUrl get the placeholder image.
func NewProjector(resolver *creators.Resolver, blobStore blobs.Store, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{
		resolver: resolver,
		blobs:    blobStore,
		logger:   logger,
	}
}

// Project maps one document. ID and timestamps pass through verbatim.
func (p *Projector) Project(ctx context.Context, doc *documents.Document) *Post {
	creatorField, _ := doc.Get("creator")
	post := p.base(doc)
	post.Creator = p.resolver.Resolve(ctx, creators.ParseRef(creatorField))
	if post.ImageURL == "" {
		post.ImageURL = p.imageURL(ctx, post.ID, post.ImageID)
	}
	return post
}

// ProjectAll maps docs in order. Each distinct bare creator ID is fetched once.
func (p *Projector) ProjectAll(ctx context.Context, docs []*documents.Document) []*Post {
	out := make([]*Post, len(docs))
	refs := make([]creators.Ref, len(docs))
	for i, doc := range docs {
		creatorField, _ := doc.Get("creator")
		refs[i] = creators.ParseRef(creatorField)
		out[i] = p.base(doc)
	}

	resolved := p.resolver.ResolveBatch(ctx, refs)
	for i := range out {
		out[i].Creator = resolved[i]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageLookupConcurrency)
	for _, post := range out {
		if post.ImageURL != "" {
			continue
		}
		g.Go(func() error {
			post.ImageURL = p.imageURL(gctx, post.ID, post.ImageID)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// base applies the defaulting rules that need no I/O.
func (p *Projector) base(doc *documents.Document) *Post {
	return &Post{
		ID:        doc.ID,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Caption:   doc.String("caption"),
		ImageURL:  doc.String("imageUrl"),
		ImageID:   doc.String("imageId"),
		Location:  doc.StringPtr("location"),
		Tags:      lo.Uniq(doc.StringSlice("tags")),
		Likes:     lo.Uniq(doc.RefIDs("likes")),
	}
}

// imageURL derives a view URL from the blob store, falling back to the placeholder.
func (p *Projector) imageURL(ctx context.Context, postID, imageID string) string {
	if imageID == "" || p.blobs == nil {
		return p.resolver.Placeholder()
	}
	url, err := p.blobs.GetFileView(ctx, imageID)
	if err != nil || url == "" {
		p.logger.Warn("image view lookup failed, using placeholder",
			"post_id", postID,
			"image_id", imageID,
			"error", err)
		return p.resolver.Placeholder()
	}
	return url
}
