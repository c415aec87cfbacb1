package creators

import (
	"strings"

	"Snapfeed/internal/core/documents"
)

type refKind uint8

const (
	refNone refKind = iota
	refEmbedded
	refReference
)

// Snapshot is a denormalized copy of a user's display fields embedded in a post.
// It may be stale or partial.
type Snapshot struct {
	ID       string
	Name     string
	ImageURL string
}

// Ref is a post's creator relation: either an embedded snapshot or a bare user ID.
// The zero Ref is invalid and resolves to the placeholder creator.
type Ref struct {
	snapshot Snapshot
	id       string
	kind     refKind
}

// Embedded returns a Ref carrying a snapshot.
func Embedded(s Snapshot) Ref {
	return Ref{kind: refEmbedded, snapshot: s, id: s.ID}
}

// Reference returns a Ref carrying only a user ID.
func Reference(id string) Ref {
	if id == "" {
		return Ref{}
	}
	return Ref{kind: refReference, id: id}
}

// ParseRef builds a Ref from a raw document field: an object becomes Embedded,
// a non-empty string becomes Reference, anything else the zero Ref.
func ParseRef(raw any) Ref {
	switch v := raw.(type) {
	case string:
		return Reference(strings.TrimSpace(v))
	case map[string]any:
		name, _ := v["name"].(string)
		imageURL, _ := v["imageUrl"].(string)
		return Embedded(Snapshot{
			ID:       documents.RefID(v),
			Name:     name,
			ImageURL: imageURL,
		})
	case *documents.Document:
		if v == nil {
			return Ref{}
		}
		return Embedded(Snapshot{
			ID:       v.ID,
			Name:     v.String("name"),
			ImageURL: v.String("imageUrl"),
		})
	case Creator:
		return Embedded(Snapshot(v))
	default:
		return Ref{}
	}
}

// ID returns the referenced user ID, which may be empty for an invalid ref
// or an embedded snapshot without one.
func (r Ref) ID() string { return r.id }

// IsEmbedded reports whether resolving r needs no fetch.
func (r Ref) IsEmbedded() bool { return r.kind == refEmbedded }

// IsReference reports whether r carries only an ID.
func (r Ref) IsReference() bool { return r.kind == refReference }

// Snapshot returns the embedded snapshot, if any.
func (r Ref) Snapshot() (Snapshot, bool) {
	return r.snapshot, r.kind == refEmbedded
}
