package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tradewind/tradewind/internal/learning"
)

func newSuppliersCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "suppliers",
		Short: "List the supplier catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuppliers(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	cmd.AddCommand(newScorecardsCmd())
	return cmd
}

func runSuppliers(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%-9s  %-24s  %-36s  %10s  %5s  %7s  %5s\n",
		"ID", "NAME", "CATEGORIES", "BASE PRICE", "LEAD", "QUALITY", "GRADE")
	for _, s := range cfg.Suppliers {
		fmt.Fprintf(out, "%-9s  %-24s  %-36s  %10.0f  %4dd  %7.0f  %5s\n",
			s.ID, s.Name, strings.Join(s.Categories, ","), s.BasePrice, s.LeadTimeDays, s.QualityRating, s.FinancialGrade)
	}
	return nil
}

func newScorecardsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "scorecards",
		Short: "Print performance scorecards from recorded outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScorecards(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	return cmd
}

func runScorecards(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	engine, err := learning.New(learning.Opts{DB: gormDB})
	if err != nil {
		return err
	}

	ids := engine.SupplierIDs()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No supplier outcomes recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "%-9s  %-24s  %7s  %8s  %7s  %7s  %10s  %7s\n",
		"ID", "NAME", "OVERALL", "DELIVERY", "QUALITY", "SUCCESS", "CONFIDENCE", "SAMPLES")
	for _, id := range ids {
		card, ok := engine.Scorecard(id)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%-9s  %-24s  %7.1f  %8.1f  %7.1f  %6.0f%%  %10.2f  %7d\n",
			card.SupplierID, card.SupplierName, card.Overall, card.Delivery, card.Quality,
			card.SuccessRate*100, card.Confidence, card.Samples)
		for _, flag := range card.RiskFlags {
			fmt.Fprintf(out, "%11s- %s\n", "", flag)
		}
	}
	return nil
}
