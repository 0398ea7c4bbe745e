package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/helixir/author-matching-service/internal/database"
)

type migrateOptions struct {
	path   string
	asJSON bool
}

type migrateState struct {
	Migration database.MigrationStatus `json:"migration"`
	Report    *database.SchemaReport   `json:"report,omitempty"`
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply and inspect schema migrations",
	}
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "Override the migrations directory")
	cmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print the schema state as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, ctx, opts, func(m *database.Migrator) error { return m.Up() })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, ctx, opts, func(m *database.Migrator) error { return m.Down() })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations, or roll back when n is negative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			return runMigration(cmd, ctx, opts, func(m *database.Migrator) error { return m.Steps(n) })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied version and the matching tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, ctx, opts, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied to clear a dirty schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return runMigration(cmd, ctx, opts, func(m *database.Migrator) error { return m.Force(v) })
		},
	})

	return cmd
}

func runMigration(cmd *cobra.Command, ctx *commandContext, opts *migrateOptions, action func(*database.Migrator) error) error {
	cfg, logger, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	db, err := ctx.ensureDB(cmd.Context())
	if err != nil {
		return err
	}

	dir := cfg.Database.MigrationPath
	if opts.path != "" {
		dir = opts.path
	}
	migrator, err := database.NewMigrator(db, dir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if action != nil {
		if err := action(migrator); err != nil {
			return err
		}
	}

	state := migrateState{}
	if state.Migration, err = migrator.Status(); err != nil {
		return err
	}
	// The tables exist only on a clean run of at least the first migration.
	if !state.Migration.Clean && !state.Migration.Dirty {
		if state.Report, err = database.Report(cmd.Context(), db); err != nil {
			return err
		}
	}

	if opts.asJSON {
		return writeJSON(cmd, state)
	}
	printMigrateState(cmd.OutOrStdout(), state)
	return nil
}

func parseSteps(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid step count %q", arg)
	}
	if n == 0 {
		return 0, errors.New("step count must not be zero")
	}
	return n, nil
}

func parseForceVersion(arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q", arg)
	}
	return v, nil
}

func printMigrateState(w io.Writer, state migrateState) {
	switch {
	case state.Migration.Clean:
		fmt.Fprintln(w, "No migrations applied")
		return
	case state.Migration.Dirty:
		fmt.Fprintf(w, "Version: %d (dirty, run migrate force after fixing the schema)\n", state.Migration.Version)
		return
	}
	fmt.Fprintf(w, "Version: %d\n", state.Migration.Version)

	r := state.Report
	if r == nil {
		return
	}
	fmt.Fprintf(w, "Researchers:  %d active of %d\n", r.ActiveResearchers, r.Researchers)
	fmt.Fprintf(w, "Publications: %s\n", formatCounts(r.Publications))
	fmt.Fprintf(w, "Decisions:    %s\n", formatCounts(r.Decisions))
	fmt.Fprintf(w, "Review queue: %d\n", r.ReviewQueue)
}

func formatCounts(counts map[string]int64) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", k, counts[k])
	}
	return out
}
