// Package agentcmd manages agent accounts from the command line. A running
// server starts or stops the matching nodes at its next reconcile.
package agentcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	appagent "github.com/alissayuxuan/OMNI-SYS/internal/application/agent"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/auth"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/config"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/database"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/repository"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent accounts",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newCreateCommand(),
		newArchiveCommand(),
	)
	return cmd
}

func newCreateCommand() *cobra.Command {
	var name, username, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			if name == "" {
				name = username
			}
			a, err := svc.Register(cmd.Context(), name, username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agent %s created with identity %s\n", a.Username(), a.Identity())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (default: username)")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Login username (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Login password (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newArchiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <username>",
		Short: "Retire an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService()
			if err != nil {
				return err
			}
			defer closeFn()

			a, err := svc.Archive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agent %s (identity %s) archived\n", a.Username(), a.Identity())
			return nil
		},
	}
}

func openService() (*appagent.Service, func(), error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Logger.OutputPath = "stderr"
	if err := logger.Init(&cfg.Logger, "release"); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := database.Init(&cfg.Database); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	agents := repository.NewAgentRepository(database.Get(), logger.WithComponent("repository.agent"))
	hasher := auth.NewBcryptPasswordHasher(cfg.Auth.Password.BcryptCost)
	svc := appagent.NewService(agents, hasher, nil, logger.NewLogger())

	return svc, func() {
		database.Close()
		_ = logger.Sync()
	}, nil
}
