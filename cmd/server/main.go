package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JustJay7/court-case-aggregator/internal/config"
	"github.com/JustJay7/court-case-aggregator/internal/database"
	"github.com/JustJay7/court-case-aggregator/internal/portal/districtcourt"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/server"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "court-case-aggregator",
		Short:         "Fetch, normalize and cache case records from Indian court portals",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or upgrade the query log schema",
			RunE:  runMigrate,
		},
		newLookupCmd(),
	)
	return root
}

func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := build(cfg, log)
	if err != nil {
		return err
	}

	srv := server.New(cfg, server.Deps{
		Pipeline: a.pipeline,
		Cache:    a.cache,
		Queries:  a.queries,
		Metrics:  a.metrics,
		Closers:  a.closers,
	}, log)

	log.Info("Starting court case aggregator",
		"host", cfg.Host,
		"port", cfg.Port,
		"portals", a.pipeline.Portals(),
	)
	return srv.Run()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	// Initialize migrates as part of opening.
	if _, err := database.Initialize(cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Database migrations completed successfully")
	return nil
}

func newLookupCmd() *cobra.Command {
	var (
		portalID string
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "lookup QUERY_JSON",
		Short: "Run one lookup and print the record",
		Example: `  court-case-aggregator lookup --portal dc '{"case_type":"1","case_reg_no":"123","rgyear":"2023","state_code":"1","dist_code":"1","court_complex_code":"1"}'
  court-case-aggregator lookup --portal cc --refresh '{"case_reg_no":"DC/77/CC/104/2023"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var q record.CaseQuery
			if err := json.Unmarshal([]byte(args[0]), &q); err != nil {
				return fmt.Errorf("invalid query: %w", err)
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := build(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out, err := a.pipeline.Lookup(ctx, portalID, q, refresh)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out.Record)
		},
	}
	cmd.Flags().StringVarP(&portalID, "portal", "p", districtcourt.ID, "portal id (dc, hc, hc2, cc, sci, nclt, cnr)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	return cmd
}
