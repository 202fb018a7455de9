package migrate

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/config"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/database"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/migration"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

var (
	env   string
	steps int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the agent schema",
		Long:  `Apply, roll back, and inspect the embedded agent schema migrations.`,
	}
	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migrations",
		RunE: withStrategy(func(cmd *cobra.Command, s *migration.GooseStrategy, db *gorm.DB, log logger.Interface) error {
			log.Infow("rolling back migrations", "environment", env, "steps", steps)
			if err := s.MigrateDown(db, steps); err != nil {
				return fmt.Errorf("down migration failed: %w", err)
			}
			log.Infow("rollback complete")
			return nil
		}),
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: withStrategy(func(cmd *cobra.Command, s *migration.GooseStrategy, db *gorm.DB, log logger.Interface) error {
				log.Infow("applying migrations", "environment", env)
				if err := s.Migrate(db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				log.Infow("schema up to date")
				return nil
			}),
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Print the schema version and pending migrations",
			RunE:  withStrategy(printStatus),
		},
	)
	return cmd
}

type strategyFunc func(cmd *cobra.Command, s *migration.GooseStrategy, db *gorm.DB, log logger.Interface) error

// withStrategy loads config, opens the database and hands fn a goose
// strategy for the configured driver.
func withStrategy(fn strategyFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(env)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Sync()

		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()

		strategy, err := migration.NewGooseStrategy(cfg.Database.Driver)
		if err != nil {
			return err
		}
		return fn(cmd, strategy, database.Get(), logger.WithComponent("migrate"))
	}
}

func printStatus(cmd *cobra.Command, s *migration.GooseStrategy, db *gorm.DB, _ logger.Interface) error {
	version, err := s.GetVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "environment: %s\nversion:     %d\n\n", env, version)
	if err := s.Status(db); err != nil {
		return fmt.Errorf("failed to get detailed status: %w", err)
	}
	return nil
}
