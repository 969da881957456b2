package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"catalogue/internal/app"
	"catalogue/internal/config"
	"catalogue/internal/logging"
	"catalogue/internal/otel"
	"catalogue/internal/service"
)

// @title Document Catalogue API
// @version 1.0
// @description Browse, download and preview categorized uploads.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	rootCmd := &cobra.Command{
		Use:           "catalogue",
		Short:         "Document catalogue server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userAddCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads and validates the configuration and builds the process logger.
func setup() (*config.AppConfig, *slog.Logger, error) {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.Location(), logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing_shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the account tables and seed the default roles, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("DB_HOST is not set")
			}

			acc, err := app.OpenAccounts(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer acc.DB.Close()

			logger.Info("migrate_done", slog.String("db_host", cfg.Database.Host))
			return nil
		},
	}
}

func userAddCmd() *cobra.Command {
	var in service.SignUpInput

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create an account with any default role, e.g. the first admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("DB_HOST is not set")
			}

			acc, err := app.OpenAccounts(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer acc.DB.Close()

			u, err := acc.Service.CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (%s) with roles %v\n", u.Email, u.ID, u.Roles)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "username (at most 15 characters)")
	cmd.Flags().StringVar(&in.Email, "email", "", "organisation email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password")
	cmd.Flags().StringVar(&in.Department, "department", "IT", "department")
	cmd.Flags().StringSliceVar(&in.Roles, "role", []string{"admin"}, "role to grant (repeatable)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
