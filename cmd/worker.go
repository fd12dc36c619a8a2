/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/inkwell-blog/apiserver/config"
	"github.com/inkwell-blog/apiserver/internal/events"
	"github.com/inkwell-blog/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command. It drains interaction events
// published by the API server and dispatches notifications.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the interaction event worker",
	Long: `Runs the interaction event worker. Usage:

	apiserver worker
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		if cfg.Events.Backend == "" {
			fmt.Fprintln(os.Stderr, "EVENTS_BACKEND is required for the worker")
			os.Exit(1)
		}

		backend, err := server.NewEventsBackend(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect event broker: %v\n", err)
			os.Exit(1)
		}
		publisher := events.NewPublisher(backend, cfg.Events.Channel)
		defer publisher.Close()

		log.Printf("worker consuming %q interaction events", cfg.Events.Channel)
		err = publisher.Subscribe(cmd.Context(), handleInteraction)
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			os.Exit(1)
		}
	},
}

// handleInteraction is the notification dispatch point. Delivery targets
// (email, push) hang off here; for now every event is acknowledged and
// logged.
func handleInteraction(ctx context.Context, msg events.Message) error {
	var event events.InteractionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("dropping undecodable event %s: %v", msg.ID, err)
		return nil
	}

	switch event.Kind {
	case events.KindLike:
		log.Printf("post %d like toggled by user %d (liked=%t)", event.PostID, event.UserID, event.Liked)
	case events.KindComment:
		log.Printf("post %d comment %d added by user %d", event.PostID, event.CommentID, event.UserID)
	default:
		log.Printf("unknown event kind %q on message %s", event.Kind, msg.ID)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
