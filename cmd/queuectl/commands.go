package main

import (
	"fmt"
	"os"
	"time"

	"membership_backend/database"
	"membership_backend/internal/app"
	"membership_backend/internal/config"
	"membership_backend/internal/logger"
	"membership_backend/internal/models"
	"membership_backend/internal/repositories"
	"membership_backend/internal/services"
	"membership_backend/internal/utils"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

type queueRuntime struct {
	db    *gorm.DB
	cfg   *config.Config
	queue services.NotificationQueueService
}

func bootstrap() (*queueRuntime, func(), error) {
	if configPath != "" {
		os.Setenv("CONFIG_PATH", configPath)
	}
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	deps, err := app.BuildDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}
	container := app.NewServiceContainer(cfg, deps)

	cleanup := func() {
		deps.EmailProvider.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return &queueRuntime{db: db, cfg: cfg, queue: container.NotificationQueueService}, cleanup, nil
}

func drainCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Send queued emails in priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if limit <= 0 {
				limit = rt.cfg.Notifications.SweepBatchSize
			}
			result, err := rt.queue.Drain(cmd.Context(), rt.db, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent=%d failed=%d skipped=%d\n", result.Sent, result.Failed, result.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "max", "n", 0, "Maximum emails to process (default: notifications.sweep_batch_size)")
	return cmd
}

func checkExpiringCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "check-expiring",
		Short: "Queue reminders for memberships expiring in 7, 3 or 1 days and for expired ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			today := utils.Today()
			if date != "" {
				parsed, err := utils.ParseDate(date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				today = parsed
			}

			rt, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			count, err := rt.queue.CheckExpiringMemberships(cmd.Context(), rt.db, today)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reminders queued=%d (as of %s)\n", count, today.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Evaluate as of this day (YYYY-MM-DD), default today")
	return cmd
}

func requeueFailedCmd() *cobra.Command {
	var maxAttempts int
	cmd := &cobra.Command{
		Use:   "requeue-failed",
		Short: "Move failed emails back to the queue while attempts are below the cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if maxAttempts <= 0 {
				maxAttempts = rt.cfg.Notifications.MaxAttempts
			}
			if maxAttempts <= 0 {
				return fmt.Errorf("requeue is disabled: set --max-attempts or notifications.max_attempts")
			}
			n, err := rt.queue.RequeueFailed(rt.db, maxAttempts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued=%d\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Attempt cap (default: notifications.max_attempts)")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue size by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := rt.queue.Stats(rt.db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, status := range []models.EmailStatus{models.EmailStatusQueued, models.EmailStatusSending, models.EmailStatusSent, models.EmailStatusFailed} {
				fmt.Fprintf(out, "%-8s %d\n", status, stats[status])
			}
			return nil
		},
	}
}

// pendingWebhooksCmd показывает события, обработчик которых упал: шлюз доставит их повторно
func pendingWebhooksCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending-webhooks",
		Short: "List received webhook events that were not processed successfully",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			events, err := repositories.NewWebhookEventRepository().FindUnprocessed(rt.db, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range events {
				fmt.Fprintf(out, "%s\t%s\tattempts=%d\t%s\n", e.ID, e.Type, e.Attempts, e.ErrorMessage)
			}
			fmt.Fprintf(out, "pending=%d\n", len(events))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum events to list")
	return cmd
}
