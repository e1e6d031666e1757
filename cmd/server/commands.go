package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/tasktracker/internal/app"
	"github.com/Skotchmaster/tasktracker/internal/config"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tasktracker",
		Short:         "Task tracker API with JWT sessions and role based access",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")

	root.AddCommand(
		newServeCmd(opts),
		newPruneTokensCmd(opts),
		newCreateAdminCmd(opts),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newPruneTokensCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete revocation markers of tokens that have already expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				n, err := a.PruneOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d revoked tokens\n", n)
				return nil
			})
		},
	}
}

func newCreateAdminCmd(opts *rootOptions) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an Administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				u, err := a.Auth.CreateAdmin(ctx, username, email, password)
				if err != nil {
					return fmt.Errorf("create admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (id %d)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "administrator username")
	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&password, "password", "", "administrator password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func load(opts *rootOptions) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	return cfg, log, nil
}

func runServe(ctx context.Context, opts *rootOptions) error {
	return withApp(ctx, opts, func(ctx context.Context, a *app.App) error {
		return a.Run(ctx)
	})
}

func withApp(ctx context.Context, opts *rootOptions, fn func(context.Context, *app.App) error) error {
	cfg, log, err := load(opts)
	if err != nil {
		return err
	}
	ctx = logging.IntoContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close_error", "error", err)
		}
	}()

	return fn(ctx, a)
}
