package posts

import (
	"strings"
	"time"

	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/creators"
	"Snapfeed/internal/core/documents"

	"github.com/samber/lo"
)

// Post is the canonical projected post consumed by the UI.
// Caption, Tags and Likes are never nil; Location is nil when the document has none.
type Post struct {
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Location  *string          `json:"location,omitempty"`
	Creator   creators.Creator `json:"creator"`
	ID        string           `json:"id"`
	Caption   string           `json:"caption"`
	ImageURL  string           `json:"imageUrl"`
	ImageID   string           `json:"imageId,omitempty"`
	Tags      []string         `json:"tags"`
	Likes     []string         `json:"likes"`
}

// NewPost is the input for publishing a post
type NewPost struct {
	File     *blobs.File
	Location *string
	UserID   string
	Caption  string
	Tags     string // comma separated, e.g. "art, travel"
}

// UpdatePost is the input for editing a post. File is optional; when nil the
// current image is kept.
type UpdatePost struct {
	File     *blobs.File
	Location *string
	PostID   string
	ImageID  string
	ImageURL string
	Caption  string
	Tags     string
}

// HasLiked reports whether userID is in the post's likes.
func (p *Post) HasLiked(userID string) bool {
	return lo.Contains(p.Likes, userID)
}

// Document returns the raw store form of a projected post, with the creator
// embedded as a snapshot. Projecting it again yields an equal Post.
func (p *Post) Document() *documents.Document {
	fields := map[string]any{
		"caption":  p.Caption,
		"imageUrl": p.ImageURL,
		"tags":     toAny(p.Tags),
		"likes":    toAny(p.Likes),
		"creator": map[string]any{
			documents.FieldID: p.Creator.ID,
			"name":            p.Creator.Name,
			"imageUrl":        p.Creator.ImageURL,
		},
	}
	if p.ImageID != "" {
		fields["imageId"] = p.ImageID
	}
	if p.Location != nil {
		fields["location"] = *p.Location
	}
	return &documents.Document{
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Fields:    fields,
	}
}

// ParseTags splits a comma separated tag string. All whitespace is removed
// and empty entries are dropped.
func ParseTags(raw string) []string {
	compact := strings.Join(strings.Fields(raw), "")
	if compact == "" {
		return []string{}
	}
	return lo.Uniq(lo.Compact(strings.Split(compact, ",")))
}

func toAny(values []string) []any {
	return lo.Map(values, func(v string, _ int) any { return v })
}
