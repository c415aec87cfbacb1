package posts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/core/querycache"

	"github.com/samber/lo"
)

// DefaultRecentLimit is the number of posts returned by GetRecentPosts.
const DefaultRecentLimit = 20

// Options configures a post service. Cache and Logger may be nil.
type Options struct {
	Store       documents.Client
	Blobs       blobs.Store
	Projector   *Projector
	Cache       *querycache.Cache
	Logger      *slog.Logger
	Collections documents.Collections
	RecentLimit int
}

type postService struct {
	store       documents.Client
	blobs       blobs.Store
	projector   *Projector
	cache       *querycache.Cache
	logger      *slog.Logger
	collections documents.Collections
	recentLimit int
}

// NewPostService creates a new post service
func NewPostService(opts Options) Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	return &postService{
		store:       opts.Store,
		blobs:       opts.Blobs,
		projector:   opts.Projector,
		cache:       opts.Cache,
		logger:      opts.Logger,
		collections: opts.Collections,
		recentLimit: opts.RecentLimit,
	}
}

// CreatePost publishes a post
// Flow:
// 1. Validate input (no network calls before this passes)
// 2. Upload the image and resolve its view URL
// 3. Create the post document with creator = userID and empty likes
// 4. Invalidate recent posts and the infinite feed
func (s *postService) CreatePost(ctx context.Context, req NewPost) (*Post, error) {
	if err := validateFile(req.File, true); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, NewValidationError("userId", "creator is required")
	}

	ref, url, err := s.upload(ctx, *req.File)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"creator":  req.UserID,
		"caption":  req.Caption,
		"imageUrl": url,
		"imageId":  ref.ID,
		"tags":     toAny(ParseTags(req.Tags)),
		"likes":    []any{},
	}
	if req.Location != nil {
		fields["location"] = *req.Location
	}

	doc, err := s.store.CreateDocument(ctx, s.collections.Posts, "", fields)
	if err != nil {
		s.cleanupFile(ctx, ref.ID, "")
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.cache.Invalidate(ctx, querycache.RecentPosts(), querycache.InfinitePosts(), querycache.SearchPosts())
	s.logger.Info("post created", "post_id", doc.ID, "user_id", req.UserID)

	return s.projector.Project(ctx, doc), nil
}

// UpdatePost edits a post. A replacement image is uploaded first; the old image
// is removed only after the document update succeeds.
func (s *postService) UpdatePost(ctx context.Context, req UpdatePost) (*Post, error) {
	if strings.TrimSpace(req.PostID) == "" {
		return nil, NewValidationError("postId", "post ID is required")
	}
	if err := validateFile(req.File, false); err != nil {
		return nil, err
	}

	imageID, imageURL := req.ImageID, req.ImageURL
	replaced := false
	if req.File != nil {
		ref, url, err := s.upload(ctx, *req.File)
		if err != nil {
			return nil, err
		}
		imageID, imageURL, replaced = ref.ID, url, true
	}

	fields := map[string]any{
		"caption":  req.Caption,
		"location": lo.FromPtr(req.Location),
		"tags":     toAny(ParseTags(req.Tags)),
	}
	if imageID != "" {
		fields["imageId"] = imageID
	}
	if imageURL != "" {
		fields["imageUrl"] = imageURL
	}

	doc, err := s.store.UpdateDocument(ctx, s.collections.Posts, req.PostID, fields)
	if err != nil {
		if replaced {
			s.cleanupFile(ctx, imageID, req.PostID)
		}
		if documents.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update post %s: %w", req.PostID, err)
	}

	if replaced && req.ImageID != "" && req.ImageID != imageID {
		s.cleanupFile(ctx, req.ImageID, req.PostID)
	}

	s.cache.Invalidate(ctx,
		querycache.RecentPosts(),
		querycache.PostByID(),
		querycache.InfinitePosts(),
		querycache.SearchPosts(),
	)

	return s.projector.Project(ctx, doc), nil
}

// DeletePost removes the post document and then its image.
func (s *postService) DeletePost(ctx context.Context, postID, imageID string) error {
	if strings.TrimSpace(postID) == "" {
		return NewValidationError("postId", "post ID is required")
	}
	if strings.TrimSpace(imageID) == "" {
		return NewValidationError("imageId", "image ID is required")
	}

	if err := s.store.DeleteDocument(ctx, s.collections.Posts, postID); err != nil {
		if documents.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete post %s: %w", postID, err)
	}

	// Partial failure: the post is gone even if its image is not.
	s.cleanupFile(ctx, imageID, postID)

	s.cache.Invalidate(ctx,
		querycache.RecentPosts(),
		querycache.PostByID(postID),
		querycache.InfinitePosts(),
		querycache.SearchPosts(),
	)
	return nil
}

// GetPostByID returns one post through the query cache.
func (s *postService) GetPostByID(ctx context.Context, id string) (*Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewValidationError("id", "post ID is required")
	}

	return querycache.Fetch(ctx, s.cache, querycache.PostByID(id), func(ctx context.Context) (*Post, error) {
		doc, err := s.store.GetDocument(ctx, s.collections.Posts, id)
		if err != nil {
			if documents.IsNotFound(err) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get post %s: %w", id, err)
		}
		return s.projector.Project(ctx, doc), nil
	})
}

// GetRecentPosts returns the newest posts by creation time.
func (s *postService) GetRecentPosts(ctx context.Context) ([]*Post, error) {
	return querycache.Fetch(ctx, s.cache, querycache.RecentPosts(), func(ctx context.Context) ([]*Post, error) {
		res, err := s.store.ListDocuments(ctx, s.collections.Posts,
			documents.OrderDesc(documents.FieldCreatedAt),
			documents.Limit(s.recentLimit),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent posts: %w", err)
		}
		return s.projector.ProjectAll(ctx, res.Documents), nil
	})
}

// SearchPosts matches term against captions.
func (s *postService) SearchPosts(ctx context.Context, term string) ([]*Post, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, NewValidationError("q", "search term is required")
	}

	return querycache.Fetch(ctx, s.cache, querycache.SearchPosts(term), func(ctx context.Context) ([]*Post, error) {
		res, err := s.store.ListDocuments(ctx, s.collections.Posts, documents.Search("caption", term))
		if err != nil {
			return nil, fmt.Errorf("failed to search posts: %w", err)
		}
		return s.projector.ProjectAll(ctx, res.Documents), nil
	})
}

// upload stores file and resolves its view URL. The file is removed again if
// no URL can be obtained.
func (s *postService) upload(ctx context.Context, file blobs.File) (*blobs.FileRef, string, error) {
	if s.blobs == nil {
		return nil, "", errors.New("no blob store configured")
	}

	ref, err := s.blobs.UploadFile(ctx, file)
	if err != nil {
		if isUploadRejection(err) {
			return nil, "", NewValidationError("file", err.Error())
		}
		return nil, "", fmt.Errorf("failed to upload image: %w", err)
	}

	url, err := s.blobs.GetFileView(ctx, ref.ID)
	if err != nil {
		s.cleanupFile(ctx, ref.ID, "")
		return nil, "", fmt.Errorf("failed to resolve image URL: %w", err)
	}
	return ref, url, nil
}

// cleanupFile deletes a blob best effort.
func (s *postService) cleanupFile(ctx context.Context, fileID, postID string) {
	if s.blobs == nil || fileID == "" {
		return
	}
	if err := s.blobs.DeleteFile(context.WithoutCancel(ctx), fileID); err != nil {
		s.logger.Warn("image cleanup failed",
			"image_id", fileID,
			"post_id", postID,
			"error", err)
	}
}

// validateFile checks an upload before any I/O. required controls whether a nil file is accepted.
func validateFile(file *blobs.File, required bool) error {
	if file == nil {
		if required {
			return NewValidationError("file", "an image is required")
		}
		return nil
	}
	probe := *file
	if err := blobs.Prepare(&probe); err != nil {
		return NewValidationError("file", err.Error())
	}
	return nil
}

func isUploadRejection(err error) bool {
	return errors.Is(err, blobs.ErrEmptyFile) ||
		errors.Is(err, blobs.ErrFileTooLarge) ||
		errors.Is(err, blobs.ErrUnsupportedType)
}
