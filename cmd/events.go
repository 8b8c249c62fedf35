/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/projecthub/apiserver/internal/mq"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events on the configured broker",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail <topic>",
	Short: "Log every event published on a topic until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer func() {
			_ = queue.Close()
		}()

		topic := args[0]
		slog.Info("tailing events", slog.String("topic", topic), slog.String("backend", cfg.MQ.Backend))
		err = queue.Subscribe(ctx, topic, func(ctx context.Context, msg mq.Message) error {
			var payload map[string]any
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				slog.WarnContext(ctx, "dropping undecodable event",
					slog.String("id", msg.ID),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("%w: decode event %s: %v", mq.ErrDiscard, msg.ID, err)
			}
			slog.InfoContext(ctx, "event",
				slog.String("id", msg.ID),
				slog.String("event", msg.Attributes[mq.AttrEvent]),
				slog.String("occurred_at", msg.Attributes[mq.AttrOccurredAt]),
				slog.Any("payload", payload),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
