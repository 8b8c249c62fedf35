/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/internal/storage"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Read snapshots of deleted projects",
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <ownerId> <projectId>",
	Short: "Print the archived JSON of a deleted project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := primitive.ObjectIDFromHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid owner id %q", args[0])
		}
		projectID, err := primitive.ObjectIDFromHex(args[1])
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[1])
		}

		objects, err := storage.Open(cmd.Context(), cfg.Storage)
		if errors.Is(err, storage.ErrDisabled) {
			return errors.New("STORAGE_BACKEND is not configured")
		}
		if err != nil {
			return err
		}
		defer func() {
			_ = objects.Close()
		}()

		project, err := storage.NewArchiver(objects).Load(cmd.Context(), owner, projectID)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("no archive for project %s", projectID.Hex())
		}
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(project, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveShowCmd)
}
