package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"Pace/internal/di"
	"Pace/internal/domain/models"
	"Pace/internal/usecase"
	"Pace/pkg/util"
)

type snapshotFlags struct {
	date    string
	goal    int
	unit    string
	timeout time.Duration
}

func newSnapshotCmd() *cobra.Command {
	var f snapshotFlags
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load one day and print its dashboard as JSON",
		Example: `  pace snapshot
  pace snapshot --date 2026-10-17 --unit imperial`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshot(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "Day to load (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&f.goal, "goal", 0, "Daily step goal (default from config)")
	cmd.Flags().StringVar(&f.unit, "unit", "", "Distance unit: metric or imperial (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "How long to wait for the load")
	return cmd
}

func runSnapshot(cmd *cobra.Command, f snapshotFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	goal := cfg.Dashboard.DailyStepGoal
	if f.goal > 0 {
		goal = f.goal
	}
	unitName := cfg.Dashboard.DistanceUnit
	if f.unit != "" {
		unitName = f.unit
	}
	unit, ok := models.ParseDistanceUnit(unitName)
	if !ok {
		return fmt.Errorf("unknown distance unit %q", unitName)
	}

	coord, cleanup, err := di.InitializeDashboard(cfg)
	if err != nil {
		return fmt.Errorf("dashboard initialization failed: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	day := time.Now().In(cfg.Location())
	if f.date != "" {
		var ok bool
		if day, ok = util.ParseDate(f.date, cfg.Location()); !ok {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", f.date)
		}
	}
	ticket := coord.InitializeAt(ctx, day)

	outcome, err := ticket.Wait(ctx)
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}
	if outcome != usecase.OutcomeCommitted {
		return fmt.Errorf("load did not commit: %s", outcome)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(models.NewDashboardView(coord.State(), goal, unit))
}
