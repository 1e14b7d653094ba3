// Command sweep runs the daily reminder sweep by hand.
//
// Usage:
//
//	anidoc-sweep run
//	anidoc-sweep preview --date 2026-09-01
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Pet-ner/AniDoc-sub000/internal/config"
	"github.com/Pet-ner/AniDoc-sub000/internal/db"
	"github.com/Pet-ner/AniDoc-sub000/internal/notify"
	"github.com/Pet-ner/AniDoc-sub000/internal/pets"
	"github.com/Pet-ner/AniDoc-sub000/internal/push"
	"github.com/Pet-ner/AniDoc-sub000/internal/reminder"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "anidoc-sweep",
		Short: "AniDoc reminder sweep CLI",
	}

	root.AddCommand(runCmd())
	root.AddCommand(previewCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one sweep now, persisting and pushing reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				// No subscribers connect to a CLI process; reminders are
				// persisted and picked up on the recipient's next query.
				registry := push.NewRegistry(logger)
				store := notify.NewPgStore(pool.Pool)
				recipients := notify.NewPgRecipientDirectory(pool.Pool)
				dispatcher := notify.NewDispatcher(store, registry, recipients, logger)
				directory := pets.NewPgDirectory(pool.Pool)

				sweeper := reminder.NewSweeper(directory, dispatcher, cfg.ReminderSweepAt, logger)
				start := time.Now()
				result, err := sweeper.Run(ctx)
				if err != nil {
					return err
				}
				logger.Info("Sweep finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("sweep error", "error", e)
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// preview command
// --------------------------------------------------------------------------

func previewCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Evaluate rules for a given date without dispatching anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now()
			if date != "" {
				var err error
				today, err = time.ParseInLocation("2006-01-02", date, time.Local)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
			}
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				directory := pets.NewPgDirectory(pool.Pool)
				population, err := directory.ListActive(ctx)
				if err != nil {
					return fmt.Errorf("list active pets: %w", err)
				}

				due := 0
				for _, pet := range population {
					ev, ok, err := reminder.VaccinationDue(pet, today)
					if err != nil {
						logger.Warn("Evaluation failed", "pet_id", pet.ID, "error", err)
					} else if ok {
						due++
						logger.Info("Vaccination reminder due",
							"pet", ev.PetName, "round", ev.Round,
							"due_date", ev.DueDate.Format("2006-01-02"), "message", ev.Message)
					}
					if ev, ok := reminder.AntiparasiticDue(pet, today); ok {
						due++
						logger.Info("Antiparasitic reminder due",
							"pet", ev.PetName,
							"due_date", ev.DueDate.Format("2006-01-02"), "message", ev.Message)
					}
				}
				logger.Info("Preview complete",
					"date", today.Format("2006-01-02"), "pets", len(population), "due", due)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Evaluation date (yyyy-mm-dd, default today)")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withPool handles config loading, DB connection, and context cancellation.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}
