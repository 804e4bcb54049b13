package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetops/dispatchd/config"
	"github.com/fleetops/dispatchd/core/availability"
	"github.com/fleetops/dispatchd/core/geo"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/planning"
	"github.com/fleetops/dispatchd/core/routes"
	"github.com/fleetops/dispatchd/infra/logger"
	infrastore "github.com/fleetops/dispatchd/infra/store"
)

var planDate string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Request an auto-planning session and print the proposal",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planDate, "date", "", "route date (2006-01-02), defaults to tomorrow")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend != "postgres" {
		return fmt.Errorf("the plan command needs the postgres backend to see the service's data")
	}
	pg, err := infrastore.NewPostgresStore(ctx, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("postgres store: %w", err)
	}
	defer pg.Close()

	date := model.Day(time.Now()).AddDate(0, 0, 1)
	if planDate != "" {
		if date, err = time.Parse(time.DateOnly, planDate); err != nil {
			return fmt.Errorf("bad date: %w", err)
		}
	}

	estimator := geo.NewStaticEstimator()
	estimator.Default = &geo.Leg{DistanceKm: 25, DurationMinutes: 35}
	resolver := availability.NewResolver(pg, logger.New("availability"))
	planner := routes.NewPlanner(pg, resolver, estimator, nil, logger.New("routes"), cfg.Routes)
	engine := planning.NewEngine(pg, planner, resolver, nil, nil, nil, logger.New("planning"))
	defer engine.Shutdown()

	sess, err := engine.Request(ctx, nil, date, "cli")
	if err != nil {
		return err
	}
	engine.Wait()
	if sess, err = engine.Get(ctx, sess.ID); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sess)
}
