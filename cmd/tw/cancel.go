package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tradewind/tradewind/internal/models"
)

func newCancelCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cancel <conversation-id>",
		Short: "Cancel a recorded procurement conversation",
		Long: `Marks the procurement record cancelled. A running service also drops the
conversation's in-flight messages; use the API cancel endpoint against a
live server for that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	return cmd
}

func runCancel(cmd *cobra.Command, configPath, conversationID string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	res := gormDB.Model(&models.ProcurementRecord{}).
		Where("conversation_id = ? AND status = ?", conversationID, models.ProcurementActive).
		Updates(map[string]any{"status": models.ProcurementCancelled})
	if res.Error != nil {
		return fmt.Errorf("cancel %s: %w", conversationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no active procurement found for conversation %s", conversationID)
	}

	fmt.Fprintf(out, "Conversation %s cancelled.\n", conversationID)
	return nil
}
