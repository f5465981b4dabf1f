package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/waitlist-foundry/config"
	"github.com/akeren/waitlist-foundry/domain/admin"
	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/storage"
	"github.com/akeren/waitlist-foundry/internal/transfer"
	"github.com/akeren/waitlist-foundry/pkg/migrations"
	"github.com/akeren/waitlist-foundry/pkg/utils"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const commandTimeout = 5 * time.Minute

const migrationsDirFlag = "migrations-dir"

var migrateFlags = map[string]cobraflags.Flag{
	migrationsDirFlag: &cobraflags.StringFlag{
		Name:  migrationsDirFlag,
		Value: "",
		Usage: "Read SQL migrations from this directory instead of the built-in set (or MIGRATIONS_DIR)",
	},
}

const formatFlag = "format"

var importFlags = map[string]cobraflags.Flag{
	formatFlag: &cobraflags.StringFlag{
		Name:  formatFlag,
		Value: "",
		Usage: "Input format, csv or json (default: from the file extension)",
	},
}

func newMigrateCommand(logger *log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run SQL migrations for the configured backend and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend := config.GetStorageBackend()
			if backend == config.BackendFirestore {
				return errors.New("migrations apply to SQL backends only")
			}

			db, err := config.NewDatabase(logger, &config.DBConfig{Dialect: backend})
			if err != nil {
				return fmt.Errorf("connect for migration: %w", err)
			}
			defer config.CloseDatabase(db, logger)

			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("get SQL DB instance for migration: %w", err)
			}

			dir := migrateFlags[migrationsDirFlag].GetString()
			if dir == "" {
				dir = utils.GetEnvTrimmedOrDefault("MIGRATIONS_DIR", "")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := migrations.Up(ctx, sqlDB, migrations.Config{Dir: dir, Dialect: backend, Logger: logger}); err != nil {
				return fmt.Errorf("database migration failed: %w", err)
			}

			logger.Info("Database migrations completed", "backend", backend)
			return nil
		},
	}

	cobraflags.RegisterMap(cmd, migrateFlags)
	return cmd
}

func newImportCommand(logger *log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import entries from a CSV export or a JSON array, skipping existing emails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			rows, err := readImportFile(path, importFlags[formatFlag].GetString())
			if err != nil {
				return err
			}

			return withStore(cmd.Context(), logger, func(ctx context.Context, store storage.Store) error {
				result, err := admin.NewAdminService(logger, store).Import(ctx, rows)
				if err != nil {
					return err
				}

				count, err := store.Count(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported: %d\nSkipped:  %d\nFailed:   %d\n", result.Imported, result.Skipped, len(result.Failed))
				for _, f := range result.Failed {
					fmt.Fprintf(out, "  row %d (%s): %s\n", f.Index+1, f.Email, f.Reason)
				}
				fmt.Fprintf(out, "Waitlist now has %d entries\n", count)
				return nil
			})
		},
	}

	cobraflags.RegisterMap(cmd, importFlags)
	return cmd
}

func readImportFile(path, format string) ([]transfer.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	switch format {
	case "json":
		return transfer.DecodeJSON(f)
	case "csv", "":
		return transfer.ReadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
}

func newExportCommand(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export every entry to CSV, oldest first (use - for stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), logger, func(ctx context.Context, store storage.Store) error {
				file, err := admin.NewAdminService(logger, store).ExportCSV(ctx)
				if err != nil {
					return err
				}

				target := file.FileName
				if len(args) == 1 {
					target = args[0]
				}

				if target == "-" {
					_, err := cmd.OutOrStdout().Write(file.Body)
					return err
				}

				if err := os.WriteFile(target, file.Body, 0o600); err != nil {
					return fmt.Errorf("write export: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", file.Rows, target)
				return nil
			})
		},
	}
}

func newCountCommand(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of entries on the waitlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), logger, func(ctx context.Context, store storage.Store) error {
				count, err := store.Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func newDeleteCommand(logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry by id (no-op when it does not exist)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid id %q", args[0])
			}

			return withStore(cmd.Context(), logger, func(ctx context.Context, store storage.Store) error {
				if err := admin.NewAdminService(logger, store).DeleteUser(ctx, uint(id)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %d\n", id)
				return nil
			})
		},
	}
}

// withStore opens the configured backend for the duration of fn.
func withStore(parent context.Context, logger *log.Logger, fn func(ctx context.Context, store storage.Store) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	store, _, err := config.NewStore(ctx, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err)
		}
	}()

	return fn(ctx, store)
}
