package posts

import "context"

// Service defines the business logic interface for posts
// Reads go through the query cache; writes invalidate the affected queries.
type Service interface {
	// CreatePost uploads the image and stores a new post with no likes
	// Flow: Validate -> Upload file -> Resolve view URL -> Create document -> Invalidate
	CreatePost(ctx context.Context, req NewPost) (*Post, error)

	// UpdatePost replaces caption, location, tags and optionally the image
	UpdatePost(ctx context.Context, req UpdatePost) (*Post, error)

	// DeletePost deletes the post document, then its image
	// A failed image cleanup is logged and not returned
	DeletePost(ctx context.Context, postID, imageID string) error

	// GetPostByID returns one projected post, or ErrNotFound
	GetPostByID(ctx context.Context, id string) (*Post, error)

	// GetRecentPosts returns the newest posts by creation time
	GetRecentPosts(ctx context.Context) ([]*Post, error)

	// SearchPosts returns posts whose caption contains term
	SearchPosts(ctx context.Context, term string) ([]*Post, error)
}
