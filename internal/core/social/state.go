package social

import (
	"context"
	"slices"
	"sync"

	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/users"

	"github.com/samber/lo"
)

// PostState is the optimistic local view of one user's like and save state on
// one post. Local state changes before the store call is issued and is not
// restored if the call fails.
type PostState struct {
	mutator      *Mutator
	postID       string
	userID       string
	saveRecordID string
	likes        []string
	saved        bool
	mu           sync.Mutex
}

// State builds the local state for user on post from their projected forms.
func (m *Mutator) State(post *posts.Post, user *users.User) *PostState {
	s := &PostState{
		mutator: m,
		postID:  post.ID,
		userID:  user.ID,
		likes:   lo.Uniq(post.Likes),
	}
	if rec, ok := user.SavedRecordFor(post.ID); ok {
		s.saved = true
		s.saveRecordID = rec.ID
	}
	return s
}

// Likes returns a copy of the local likes set.
func (s *PostState) Likes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.likes)
}

// Liked reports whether the user is in the local likes set.
func (s *PostState) Liked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.likes, s.userID)
}

// Saved reports the local saved state.
func (s *PostState) Saved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// ToggleLike adds or removes the user from the likes set and sends the full
// new set to the store. It returns the set it sent.
func (s *PostState) ToggleLike(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	var next []string
	if slices.Contains(s.likes, s.userID) {
		next = lo.Without(s.likes, s.userID)
	} else {
		next = append(slices.Clone(s.likes), s.userID)
	}
	s.likes = next
	s.mu.Unlock()

	_, err := s.mutator.LikePost(ctx, s.postID, next)
	return slices.Clone(next), err
}

// ToggleSave unsaves a saved post and saves an unsaved one.
func (s *PostState) ToggleSave(ctx context.Context) error {
	if s.Saved() {
		return s.Unsave(ctx)
	}
	return s.Save(ctx)
}

// Save creates a save record. Saving an already saved post is a no-op.
func (s *PostState) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.saved {
		s.mu.Unlock()
		return nil
	}
	s.saved = true
	s.mu.Unlock()

	rec, err := s.mutator.SavePost(ctx, s.postID, s.userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.saved && s.saveRecordID == "" {
		s.saveRecordID = rec.ID
	}
	s.mu.Unlock()
	return nil
}

// Unsave deletes the known save record. Without one it is a no-op and makes
// no store call; this includes a save whose record ID has not arrived yet.
func (s *PostState) Unsave(ctx context.Context) error {
	s.mu.Lock()
	recordID := s.saveRecordID
	if recordID == "" {
		s.mu.Unlock()
		return nil
	}
	s.saved = false
	s.saveRecordID = ""
	s.mu.Unlock()

	return s.mutator.DeleteSavedPost(ctx, s.postID, recordID)
}
