package querycache

import (
	"net/url"
	"slices"
	"strings"
)

// Logical query names used by the application.
const (
	NameRecentPosts   = "getRecentPosts"
	NameCurrentUser   = "getCurrentUser"
	NamePostByID      = "getPostById"
	NameInfinitePosts = "getInfinitePosts"
	NameSearchPosts   = "searchPosts"
)

// Key identifies a cached query: a logical name plus ordered parameters.
// A key with fewer params acts as a prefix when invalidating.
type Key struct {
	Name   string
	Params []string
}

// RecentPosts is the key of the recent posts list.
func RecentPosts() Key { return Key{Name: NameRecentPosts} }

// CurrentUser is the key of the current user profile. Without an account ID it
// matches every cached profile.
func CurrentUser(accountID ...string) Key { return Key{Name: NameCurrentUser, Params: accountID} }

// PostByID is the key of a single post. Without an ID it matches every post.
func PostByID(id ...string) Key { return Key{Name: NamePostByID, Params: id} }

// InfinitePosts is the key of a feed page. Without a cursor it matches every page.
// The first page is cached under the empty cursor.
func InfinitePosts(cursor ...string) Key { return Key{Name: NameInfinitePosts, Params: cursor} }

// SearchPosts is the key of a search result.
func SearchPosts(term ...string) Key { return Key{Name: NameSearchPosts, Params: term} }

// String encodes the key as "name/param1/param2" with each part path-escaped,
// so a key's string form starts with prefix.String()+"/" exactly when the key has that prefix.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(url.PathEscape(k.Name))
	for _, p := range k.Params {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

// HasPrefix reports whether k is matched by prefix: same name, and prefix's
// params are a leading subsequence of k's params.
func (k Key) HasPrefix(prefix Key) bool {
	if k.Name != prefix.Name || len(prefix.Params) > len(k.Params) {
		return false
	}
	return slices.Equal(k.Params[:len(prefix.Params)], prefix.Params)
}
