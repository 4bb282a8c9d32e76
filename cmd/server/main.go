package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/galenos/internal/app"
	"github.com/Skotchmaster/galenos/internal/config"
	"github.com/Skotchmaster/galenos/internal/hash"
	"github.com/Skotchmaster/galenos/internal/logging"
	"github.com/Skotchmaster/galenos/internal/models"
	"github.com/Skotchmaster/galenos/internal/repo"
	"github.com/Skotchmaster/galenos/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "galenos",
		Short:         "Galenos clinic EHR authentication server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd(), migrateCmd(), createAdminCmd(), pruneRevokedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads and validates configuration. An insecure SECRET_KEY stops
// every command here.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.New(cfg.LogLevel, cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("refusing to start")
		return nil, log, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      a.Echo,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.Env).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	go func() {
		<-quit
		log.Warn().Msg("force exit")
		os.Exit(1)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := config.OpenDB(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer config.CloseDB(db)
			if err := config.Migrate(db); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var in service.RegisterInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := logging.IntoContext(cmd.Context(), log)
			db, err := config.OpenDB(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer config.CloseDB(db)
			if err := config.Migrate(db); err != nil {
				return err
			}

			svc := &service.AuthService{Repo: repo.New(db), Hasher: hash.New(cfg.BcryptCost)}
			in.Role = string(models.RoleAdmin)
			u, err := svc.Register(ctx, nil, in)
			if err != nil {
				return err
			}
			log.Info().Uint("user_id", u.ID).Str("username", u.Username).Msg("admin created")
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.FullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	for _, f := range []string{"username", "email", "full-name", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func pruneRevokedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-revoked",
		Short: "Delete revocation records whose tokens have expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := config.OpenDB(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer config.CloseDB(db)

			n, err := repo.New(db).PruneRevoked(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			log.Info().Int64("deleted", n).Msg("revoked tokens pruned")
			return nil
		},
	}
}
