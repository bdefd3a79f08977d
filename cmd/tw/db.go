package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/db"
	"github.com/tradewind/tradewind/internal/learning"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBResetCmd())
	cmd.AddCommand(newDBSeedCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Tradewind database",
		Long:  "Opens the configured database and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath, "initialized")
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath, "migrated")
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath, verb string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected (%s)\n", cfg.DB.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	fmt.Fprintf(out, "\nTradewind database %s successfully.\n", verb)
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create all Tradewind tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if !skipConfirm && !confirmReset(cmd, cfg.DB.Database) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.Reset(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Tradewind database reset successfully.")
	return nil
}

func newDBSeedCmd() *cobra.Command {
	var (
		configPath string
		rounds     int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed sample supplier outcomes",
		Long:  "Records a few synthetic negotiation outcomes per catalog supplier so scorecards and recommendations have data to work with.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSeed(cmd, configPath, rounds)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to Tradewind config file")
	cmd.Flags().IntVar(&rounds, "rounds", 3, "outcomes to record per supplier")
	return cmd
}

func runDBSeed(cmd *cobra.Command, configPath string, rounds int) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	engine, err := learning.New(learning.Opts{DB: gormDB})
	if err != nil {
		return err
	}

	sampler := agent.NewSampler(cfg.Seed)
	count := 0
	for _, s := range cfg.Suppliers {
		for i := 0; i < rounds; i++ {
			o := learning.Outcome{
				SupplierID:     s.ID,
				SupplierName:   s.Name,
				RequestedPrice: s.BasePrice,
				AgreedPrice:    s.BasePrice,
				DeliveryDays:   s.LeadTimeDays,
				QualityScore:   s.QualityRating,
				OnTime:         sampler.Float64() < 0.85,
				Rationale:      "seeded sample outcome",
			}
			if sampler.Float64() < 0.2 {
				o.Tag = learning.OutcomeNoAgreement
			} else {
				o.Tag = learning.OutcomeSuccess
				o.SavingsPct = 0.04 + 0.08*sampler.Float64()
				o.AgreedPrice = s.BasePrice * (1 - o.SavingsPct)
			}
			if err := engine.RecordOutcome(o); err != nil {
				return err
			}
			count++
		}
	}

	fmt.Fprintf(out, "Seeded %d outcome(s) across %d supplier(s).\n", count, len(cfg.Suppliers))
	return nil
}

func confirmReset(cmd *cobra.Command, dbName string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in database %q.\n", dbName)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
