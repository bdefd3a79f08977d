package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tradewind/tradewind/internal/db"
	"github.com/tradewind/tradewind/internal/models"
	"gorm.io/gorm"
)

func newTraceCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "trace [conversation-id]",
		Short: "Inspect persisted conversations and their audit trails",
		Long: `Without arguments, lists every recorded procurement conversation.
With a conversation id, prints that conversation's full message trail.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runTraceOne(cmd, configPath, args[0])
			}
			return runTraceList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	return cmd
}

func runTraceList(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var records []models.ProcurementRecord
	if err := gormDB.Order("created_at desc").Find(&records).Error; err != nil {
		return fmt.Errorf("load procurement records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No procurement conversations recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-24s  %-18s  %7s  %s\n", "CONVERSATION", "CATEGORY", "STATUS", "RETRIES", "SUPPLIER")
	for _, r := range records {
		supplier := r.SelectedSupplier
		if supplier == "" {
			supplier = "-"
		}
		fmt.Fprintf(out, "%-36s  %-24s  %-18s  %7d  %s\n", r.ConversationID, r.Category, r.Status, r.Retries, supplier)
	}
	return nil
}

func runTraceOne(cmd *cobra.Command, configPath, conversationID string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var rows []models.MessageRecord
	if err := gormDB.Where("conversation_id = ?", conversationID).Order("seq asc").Find(&rows).Error; err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no messages recorded for conversation %s", conversationID)
	}

	fmt.Fprintf(out, "Conversation %s (%d messages):\n", conversationID, len(rows))
	for _, m := range rows {
		fmt.Fprintf(out, "  %2d. %s  %-18s -> %-18s [%-12s] %s\n",
			m.Seq, m.SentAt.Format("15:04:05"), m.FromAgent, m.ToAgent, m.Kind, m.Summary)
	}
	return nil
}

func connectFromConfig(configPath string) (*gorm.DB, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return db.Connect(cfg.DB)
}
