package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/db"
)

func newRunCmd() *cobra.Command {
	var (
		configPath   string
		category     string
		budget       float64
		quantity     int
		urgency      string
		requirements string
		seed         int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one procurement workflow end to end",
		Long: `Assembles the agents over an in-memory database, submits a single
procurement request, and prints the conversation trail and outcome.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := agent.ProcurementRequest{
				Category:     category,
				Budget:       budget,
				Quantity:     quantity,
				Urgency:      urgency,
				Requirements: requirements,
			}
			return runOnce(cmd, configPath, req, seed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	cmd.Flags().StringVar(&category, "category", "manufacturing_equipment", "procurement category")
	cmd.Flags().Float64Var(&budget, "budget", 75000, "budget ceiling")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "quantity")
	cmd.Flags().StringVar(&urgency, "urgency", "medium", "urgency: low, medium, high")
	cmd.Flags().StringVar(&requirements, "requirements", "", "free-form requirements")
	cmd.Flags().Int64Var(&seed, "seed", 0, "sampler seed (0 seeds from the clock)")
	return cmd
}

func runOnce(cmd *cobra.Command, configPath string, req agent.ProcurementRequest, seed int64) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if seed != 0 {
		cfg.Seed = seed
	}

	gormDB, err := db.OpenMemory()
	if err != nil {
		return err
	}

	sys, err := buildSystem(cfg, gormDB, out, nil)
	if err != nil {
		return err
	}
	if err := sys.bus.Start(ctx); err != nil {
		return err
	}
	defer sys.bus.Stop()

	conversationID, err := sys.sup.Initiate(ctx, req, "")
	if err != nil {
		return err
	}
	sys.bus.Wait()

	fmt.Fprintf(out, "\nConversation %s:\n", conversationID)
	for _, e := range sys.tracer.History(conversationID) {
		fmt.Fprintf(out, "  %2d. %-18s -> %-18s [%-12s] %s\n", e.Seq, e.From, e.To, e.Kind, e.Summary)
	}

	if st, ok := sys.sup.StatusOf(conversationID); ok {
		fmt.Fprintf(out, "\nStatus: %s\n", st.Status)
		if st.SelectedSupplier != "" {
			fmt.Fprintf(out, "Selected supplier: %s (%.1f%% savings)\n", st.SelectedSupplier, st.SavingsPct*100)
		}
		if st.Guidance != "" {
			fmt.Fprintf(out, "Guidance: %s\n", st.Guidance)
		}
	}
	return nil
}
