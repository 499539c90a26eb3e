package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"inboxpilot-backend/internal/app"
	"inboxpilot-backend/internal/notification"
	"inboxpilot-backend/internal/scheduler"
	"inboxpilot-backend/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inboxpilot-worker",
		Short:         "Run inbox pipeline jobs outside the API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		syncCmd(),
		sweepCmd(),
		pollCmd(),
		watchCmd(),
		subscribeCmd(),
	)
	return cmd
}

// withContainer loads the configuration, wires the components and runs fn
// with a context that is cancelled on SIGINT or SIGTERM.
func withContainer(fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.SetupLogging(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireAccount(id string) error {
	if id == "" {
		return errors.New("--account is required")
	}
	return nil
}

func syncCmd() *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Classify the latest inbox messages of one account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAccount(accountID); err != nil {
				return err
			}
			return withContainer(func(ctx context.Context, c *app.Container) error {
				report, err := c.Classification.ProcessLatest(ctx, accountID)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	return cmd
}

func sweepCmd() *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Drop expired promotions of one account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAccount(accountID); err != nil {
				return err
			}
			return withContainer(func(ctx context.Context, c *app.Container) error {
				removed, err := c.Classification.SweepPromotions(ctx, accountID)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"removed": removed})
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	return cmd
}

func pollCmd() *cobra.Command {
	var daemon bool
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one scheduled round over every account",
		Long:  "Run one scheduled round over every account. With --daemon the round repeats on the configured interval until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(ctx context.Context, c *app.Container) error {
				sched := scheduler.New(c.Config.Scheduler, c.Accounts, c.Classification)
				if !daemon {
					result, err := sched.RunOnce(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd, result)
				}

				if err := sched.Start(); err != nil {
					return err
				}
				logrus.Infof("[Scheduler] Polling every %d minutes, next run at %s",
					c.Config.Scheduler.IntervalMinutes, sched.NextRun().Format("15:04:05"))
				<-ctx.Done()
				if err := sched.Stop(); err != nil {
					return err
				}
				sched.Wait()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&daemon, "daemon", false, "keep polling on the configured interval")
	return cmd
}

func watchCmd() *cobra.Command {
	var accountID string
	var stopWatch bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start or renew push notifications for one account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAccount(accountID); err != nil {
				return err
			}
			return withContainer(func(ctx context.Context, c *app.Container) error {
				if stopWatch {
					if err := c.Classification.StopWatch(ctx, accountID); err != nil {
						return err
					}
					return printJSON(cmd, map[string]string{"message": "Watch stopped"})
				}
				historyID, err := c.Classification.Watch(ctx, accountID)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"message": "Watch started", "historyId": historyID})
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	cmd.Flags().BoolVar(&stopWatch, "stop", false, "stop the watch instead")
	return cmd
}

func subscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe",
		Short: "Consume Gmail push notifications from Pub/Sub",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(ctx context.Context, c *app.Container) error {
				g := c.Config.Google
				if g.ProjectID == "" {
					return errors.New("GOOGLE_PROJECT_ID is required")
				}
				sub, err := notification.NewSubscriber(ctx, g.ProjectID, g.TopicName(), g.Credentials, c.Dispatcher)
				if err != nil {
					return err
				}
				defer sub.Close()
				return sub.Run(ctx)
			})
		},
	}
}
