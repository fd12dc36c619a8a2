/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/inkwell-blog/apiserver/config"
	"github.com/inkwell-blog/apiserver/internal/db"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
	"github.com/spf13/cobra"
)

const (
	seedUsername = "admin"
	seedEmail    = "admin@example.com"
	seedPassword = "password123"
)

// seedCmd represents the seed command. It loads a demo account and demo
// posts for local development and is safe to re-run.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo content",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		userRepo := store.NewUserRepository(dbConn)
		postRepo := store.NewPostRepository(dbConn)
		return seed(cmd.Context(), services.NewUserService(userRepo), userRepo, postRepo)
	},
}

func seed(ctx context.Context, userService *services.UserService, userRepo *store.UserRepository, postRepo *store.PostRepository) error {
	user, err := userService.Register(ctx, seedUsername, seedEmail, seedPassword)
	if err != nil {
		if !errors.Is(err, services.ErrDuplicateIdentity) {
			return err
		}
		user, err = userRepo.GetByUsername(ctx, seedUsername)
		if err != nil {
			return err
		}
		log.Printf("seed user %q already exists", seedUsername)
	} else {
		log.Printf("created seed user %q", seedUsername)
	}

	_, total, err := postRepo.List(ctx, "", 0, 1)
	if err != nil {
		return err
	}
	if total > 0 {
		log.Printf("posts already present, skipping post seed")
		return nil
	}

	posts := []types.Post{
		{
			Title:     "The Future of AI in 2026",
			Body:      "Artificial Intelligence is evolving rapidly. From generative models to agents that can code, we are witnessing a revolution...\n\n(Full article content would go here)",
			Category:  "Tech",
			AuthorID:  user.ID,
			IsPremium: false,
		},
		{
			Title:     "Global Political Shifts",
			Body:      "This is a premium article analyzing the current geopolitical landscape. You need to subscribe to read more.",
			Category:  "Politics",
			AuthorID:  user.ID,
			IsPremium: true,
		},
		{
			Title:     "Breakthroughs in Quantum Computing",
			Body:      "Researchers announced a new error-correction milestone this week, bringing fault-tolerant machines a step closer...",
			Category:  "Science",
			AuthorID:  user.ID,
			IsPremium: false,
		},
	}
	for _, post := range posts {
		if _, err := postRepo.Create(ctx, post); err != nil {
			return err
		}
	}
	log.Printf("created %d seed posts", len(posts))
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
