package users

import (
	"strings"

	"Snapfeed/internal/core/documents"
)

// UnknownName is the display name used when a profile has none.
const UnknownName = "Unknown"

// User is a profile document linked to an identity-provider account.
// All display fields are optional in the store and default on read.
type User struct {
	ID        string       `json:"id"`
	AccountID string       `json:"accountId"`
	Name      string       `json:"name"`
	Username  string       `json:"username"`
	Email     string       `json:"email"`
	ImageURL  string       `json:"imageUrl"`
	Bio       string       `json:"bio"`
	Saves     []SaveRecord `json:"saves"`
}

// SaveRecord links a user to a saved post. Records are created and deleted,
// never updated in place.
type SaveRecord struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	PostID string `json:"postId"`
}

// NewUser is the input for creating a profile.
type NewUser struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	ImageURL  string `json:"imageUrl"`
}

// FromDocument projects a user document, applying display defaults.
func FromDocument(doc *documents.Document) *User {
	name := doc.String("name")
	if name == "" {
		name = UnknownName
	}
	return &User{
		ID:        doc.ID,
		AccountID: doc.String("accountId"),
		Name:      name,
		Username:  doc.String("username"),
		Email:     doc.String("email"),
		ImageURL:  doc.String("imageUrl"),
		Bio:       doc.String("bio"),
		Saves:     []SaveRecord{},
	}
}

// SaveRecordFromDocument projects a save record. Only the identifiers of the
// embedded user and post are kept; their other fields may be partial.
func SaveRecordFromDocument(doc *documents.Document) SaveRecord {
	userID, _ := doc.Get("user")
	postID, _ := doc.Get("post")
	return SaveRecord{
		ID:     doc.ID,
		UserID: documents.RefID(userID),
		PostID: documents.RefID(postID),
	}
}

// SavedRecordFor returns the user's save record for postID, if any.
func (u *User) SavedRecordFor(postID string) (SaveRecord, bool) {
	if u == nil {
		return SaveRecord{}, false
	}
	for _, s := range u.Saves {
		if s.PostID == postID {
			return s, true
		}
	}
	return SaveRecord{}, false
}

// Fields returns the document fields for a new profile.
func (n NewUser) Fields() map[string]any {
	return map[string]any{
		"accountId": strings.TrimSpace(n.AccountID),
		"name":      strings.TrimSpace(n.Name),
		"username":  strings.TrimSpace(strings.ToLower(n.Username)),
		"email":     strings.TrimSpace(strings.ToLower(n.Email)),
		"imageUrl":  n.ImageURL,
	}
}
