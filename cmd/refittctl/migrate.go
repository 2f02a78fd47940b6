package main

import (
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/refitt/refitt-api/internal/app"
	"github.com/refitt/refitt-api/internal/storage/postgres"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up [steps]",
			Short: "Apply pending migrations, all of them by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					return migrate(cmd, 0)
				}
				steps, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				return migrate(cmd, steps)
			},
		},
		&cobra.Command{
			Use:   "down <steps>",
			Short: "Roll back the given number of migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				return migrate(cmd, -steps)
			},
		},
	)
	return cmd
}

func parseSteps(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, errors.Errorf("steps must be a positive integer, got %q", arg)
	}
	return n, nil
}

// migrate applies all pending migrations when steps is 0, otherwise steps
// migrations forward or back.
func migrate(cmd *cobra.Command, steps int) error {
	cfg, err := app.LoadCLIConfig()
	if err != nil {
		return err
	}
	m, err := postgres.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errors.Wrap(err, "read schema version")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
