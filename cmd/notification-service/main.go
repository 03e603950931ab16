package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "herald/cmd/notification-service/docs"
	"herald/internal/config"
	"herald/internal/logger"
	"herald/pkg/logging"
	"herald/pkg/migrations"
)

var (
	configFile string
)

// @title           Herald Notification Service API
// @version         1.0
// @description     Routes system events to push notification channels through user-defined rules and keeps an audit trail of every delivery.

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "notification-service",
		Short: "Notification routing and delivery service",
		Long:  "Notification Service matches events against rules, delivers push notifications and records delivery history",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sendCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the notification service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Notification Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}
			defer func() {
				if err := app.Shutdown(context.Background()); err != nil {
					log.ErrorwCtx(ctx, "Shutdown failed", "error", err)
				}
			}()

			log.InfowCtx(ctx, "Service running")
			if err := app.Run(ctx); err != nil && err != context.Canceled {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			cfg.Database.RunMigrations = true

			app := NewApp(cfg, log)
			db, err := app.dbConnector.InitPostgreSQL(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			version, dirty, err := migrations.PostgresVersion(db)
			if err != nil {
				return err
			}
			log.InfowCtx(ctx, "Database schema up to date", "version", version, "dirty", dirty)
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var (
		eventType string
		eventData string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Dispatch a single event and print the delivery counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := map[string]interface{}{}
			if eventData != "" {
				if err := json.Unmarshal([]byte(eventData), &data); err != nil {
					return fmt.Errorf("invalid --data: %w", err)
				}
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg.Broker.Type = ""
			app := NewApp(cfg, log)
			if err := app.initStores(ctx); err != nil {
				return err
			}
			defer app.Shutdown(context.Background())

			if err := app.initServices(ctx); err != nil {
				return err
			}

			result, err := app.dispatcher.SendNotification(ctx, eventType, data)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
		},
	}

	cmd.Flags().StringVar(&eventType, "event-type", "", "Event type, e.g. package_update")
	cmd.Flags().StringVar(&eventData, "data", "", "Event data as a JSON object")
	_ = cmd.MarkFlagRequired("event-type")
	return cmd
}
