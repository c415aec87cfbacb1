// Command seed fills the configured document and blob stores with fake users
// and posts for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/samber/lo"

	"Snapfeed/internal/api/middleware"
	"Snapfeed/internal/config"
	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/creators"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/social"
	"Snapfeed/internal/core/users"
	"Snapfeed/internal/db"
)

var usernameCleaner = regexp.MustCompile(`[^a-z0-9_.]`)

func main() {
	numUsers := flag.Int("users", 10, "number of users to create")
	numPosts := flag.Int("posts", 50, "number of posts to create")
	flag.Parse()

	if err := run(*numUsers, *numPosts); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(numUsers, numPosts int) error {
	if numUsers <= 0 {
		return fmt.Errorf("-users must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("seeding the in-memory store; nothing outlives this process")
	}

	ctx := context.Background()
	gofakeit.Seed(time.Now().UnixNano())

	store, closeStore, err := db.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	blobStore, closeBlobs, err := db.OpenBlobs(ctx, cfg, "http://localhost:"+cfg.Port, logger)
	if err != nil {
		return err
	}
	defer closeBlobs()

	userService := users.NewUserService(store, cfg.Collections, logger)
	resolver := creators.NewResolver(store, cfg.Collections.Users, cfg.PlaceholderImage, logger)
	postService := posts.NewPostService(posts.Options{
		Store:       store,
		Blobs:       blobStore,
		Projector:   posts.NewProjector(resolver, blobStore, logger),
		Logger:      logger,
		Collections: cfg.Collections,
	})
	mutator := social.NewMutator(store, cfg.Collections, nil, logger)

	created := make([]*users.User, 0, numUsers)
	for i := range numUsers {
		user, err := userService.CreateUser(ctx, users.NewUser{
			AccountID: gofakeit.UUID(),
			Name:      gofakeit.Name(),
			Username:  fakeUsername(i),
			Email:     gofakeit.Email(),
			ImageURL:  fmt.Sprintf("https://i.pravatar.cc/150?u=%d", i),
		})
		if err != nil {
			return fmt.Errorf("failed to create user %d: %w", i, err)
		}
		created = append(created, user)

		if cfg.AuthJWTSecret != "" {
			token, err := middleware.IssueToken([]byte(cfg.AuthJWTSecret), cfg.AuthIssuer, user.AccountID, 24*time.Hour)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", user.Username, token)
		}
	}
	userIDs := lo.Map(created, func(u *users.User, _ int) string { return u.ID })

	for i := range numPosts {
		author := created[gofakeit.Number(0, len(created)-1)]
		location := gofakeit.City()

		post, err := postService.CreatePost(ctx, posts.NewPost{
			UserID:   author.ID,
			Caption:  gofakeit.Sentence(gofakeit.Number(3, 12)),
			Location: &location,
			Tags:     strings.Join([]string{gofakeit.Hobby(), gofakeit.Color()}, ","),
			File: &blobs.File{
				Name:        fmt.Sprintf("seed-%d.png", i),
				ContentType: "image/png",
				Data:        gofakeit.ImagePng(64, 64),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create post %d: %w", i, err)
		}

		likes := lo.Samples(userIDs, gofakeit.Number(0, len(userIDs)))
		if len(likes) > 0 {
			if _, err := mutator.LikePost(ctx, post.ID, likes); err != nil {
				return err
			}
		}
		if gofakeit.Bool() {
			saver := created[gofakeit.Number(0, len(created)-1)]
			if _, err := mutator.SavePost(ctx, post.ID, saver.ID); err != nil {
				return err
			}
		}
	}

	logger.Info("seed complete", "users", len(created), "posts", numPosts)
	return nil
}

// fakeUsername returns a unique username matching the profile rules.
func fakeUsername(i int) string {
	base := usernameCleaner.ReplaceAllString(strings.ToLower(gofakeit.Username()), "")
	if base == "" {
		base = "user"
	}
	return lo.Substring(fmt.Sprintf("%s%d", base, i), 0, 30)
}
