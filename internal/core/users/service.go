package users

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"Snapfeed/internal/core/documents"
)

// Usernames: lowercase alphanumeric plus '_' and '.', 2-30 characters
var usernameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.]{1,29}$`)

// savesPageSize is the page size used when loading a profile's save records.
const savesPageSize = documents.MaxLimit

type userService struct {
	store       documents.Client
	logger      *slog.Logger
	collections documents.Collections
}

// NewUserService creates a new user service
func NewUserService(store documents.Client, collections documents.Collections, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{
		store:       store,
		collections: collections,
		logger:      logger,
	}
}

// GetCurrentUser retrieves the profile whose accountId matches the signed-in account
func (s *userService) GetCurrentUser(ctx context.Context, accountID string) (*User, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, NewValidationError("accountId", "account ID is required")
	}

	res, err := s.store.ListDocuments(ctx, s.collections.Users,
		documents.Equal("accountId", accountID),
		documents.Limit(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up current user: %w", err)
	}
	if len(res.Documents) == 0 {
		return nil, ErrUserNotFound
	}

	user := FromDocument(res.Documents[0])
	if err := s.attachSaves(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser retrieves a profile by document ID
func (s *userService) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewValidationError("id", "user ID is required")
	}

	doc, err := s.store.GetDocument(ctx, s.collections.Users, id)
	if err != nil {
		if documents.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}

	user := FromDocument(doc)
	if err := s.attachSaves(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser stores a new profile document
func (s *userService) CreateUser(ctx context.Context, req NewUser) (*User, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}
	fields := req.Fields()

	existing, err := s.store.ListDocuments(ctx, s.collections.Users,
		documents.Equal("username", fields["username"]),
		documents.Limit(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if len(existing.Documents) > 0 {
		return nil, ErrUsernameTaken
	}

	doc, err := s.store.CreateDocument(ctx, s.collections.Users, "", fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user profile created", "user_id", doc.ID, "account_id", req.AccountID)
	return FromDocument(doc), nil
}

// attachSaves loads every save record that points at user, paging with
// CursorAfter until an empty page. The embedded post of a save record is
// reduced to its identifier.
func (s *userService) attachSaves(ctx context.Context, user *User) error {
	user.Saves = []SaveRecord{}
	cursor := ""
	for {
		filters := []documents.Filter{
			documents.Equal("user", user.ID),
			documents.Limit(savesPageSize),
		}
		if cursor != "" {
			filters = append(filters, documents.CursorAfter(cursor))
		}

		res, err := s.store.ListDocuments(ctx, s.collections.Saves, filters...)
		if err != nil {
			return fmt.Errorf("failed to list saves for user %s: %w", user.ID, err)
		}
		if len(res.Documents) == 0 {
			return nil
		}

		for _, doc := range res.Documents {
			rec := SaveRecordFromDocument(doc)
			if rec.PostID == "" {
				s.logger.Warn("skipping save record without post", "save_id", doc.ID, "user_id", user.ID)
				continue
			}
			user.Saves = append(user.Saves, rec)
		}
		cursor = res.Documents[len(res.Documents)-1].ID
	}
}

func (s *userService) validateCreateRequest(req NewUser) error {
	if strings.TrimSpace(req.AccountID) == "" {
		return NewValidationError("accountId", "account ID is required")
	}

	if strings.TrimSpace(req.Name) == "" {
		return NewValidationError("name", "name is required")
	}

	username := strings.TrimSpace(strings.ToLower(req.Username))
	if !usernameRegex.MatchString(username) {
		return NewValidationError("username", "must be 2-30 characters of a-z, 0-9, '_' or '.'")
	}

	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return NewValidationError("email", "invalid email address")
	}

	return nil
}
