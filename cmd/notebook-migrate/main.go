// Package main is the entry point for the notebook database migration tool.
// It applies the schema migrations and the single-user to multiuser
// ownership migration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/config"
	"github.com/prn-tf/notebook-server/internal/lock"
	"github.com/prn-tf/notebook-server/internal/logging"
	"github.com/prn-tf/notebook-server/internal/migration"
	"github.com/prn-tf/notebook-server/internal/repository"
	"github.com/prn-tf/notebook-server/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	flags := pflag.NewFlagSet(command, pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the configuration file")
	yes := flags.Bool("yes", false, "confirm a destructive command")

	switch command {
	case "version":
		fmt.Printf("Notebook Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "help", "-h", "--help":
		printUsage()
		return

	case "up", "down", "status":
		_ = flags.Parse(os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if command == "down" && !*yes {
		fmt.Fprintln(os.Stderr, "down removes the owner columns and the bootstrap administrator; pass --yes to continue")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	backend, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	// status only reads, so it runs without the shared lock and cache.
	var locker lock.Locker = lock.NewNoOpLocker()
	var opts []migration.Option
	if command != "status" {
		coord, err := storage.OpenCoordination(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer coord.Close()
		locker = coord.Locker
		opts = append(opts, migration.WithCache(coord.Cache))
	}

	schema, err := backend.Schema()
	if err != nil {
		return err
	}

	migrator := migration.NewOwnershipMigrator(
		schema,
		backend.Repositories(),
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		locker,
		cfg.Bootstrap,
		logger,
		opts...,
	)

	switch command {
	case "up":
		return runUp(ctx, migrator, logger)
	case "down":
		if err := migrator.Down(ctx); err != nil {
			return err
		}
		fmt.Println("Ownership migration reverted.")
		return nil
	default:
		return runStatus(ctx, migrator, schema)
	}
}

func runUp(ctx context.Context, migrator *migration.OwnershipMigrator, logger zerolog.Logger) error {
	result, err := migrator.Up(ctx)
	if err != nil {
		return err
	}

	if result.AdminCreated {
		fmt.Printf("Created bootstrap administrator %q. Change its password after first login.\n", result.Admin.Username)
	}
	if !result.Backfilled {
		fmt.Println("Ownership backfill already applied; nothing to do.")
		return nil
	}
	fmt.Printf("Assigned %d notebooks, %d sources and %d notes to %q.\n",
		result.Notebooks, result.Sources, result.Notes, result.Admin.Username)
	logger.Debug().Str("admin_id", result.Admin.ID).Msg("migration finished")
	return nil
}

func runStatus(ctx context.Context, migrator *migration.OwnershipMigrator, schema *repository.SchemaMigrator) error {
	st, err := migrator.Status(ctx)
	if err != nil {
		return err
	}
	migrations, err := schema.Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
	for _, m := range migrations {
		applied := "pending"
		if m.Applied {
			applied = m.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nSchema version: %d\n", st.SchemaVersion)
	if st.Admin != nil {
		fmt.Printf("Administrator:  %s (%s)\n", st.Admin.Username, st.Admin.ID)
	} else {
		fmt.Println("Administrator:  none")
	}
	if st.Backfilled {
		fmt.Printf("Backfill:       applied %s\n", st.BackfilledAt.Format(time.RFC3339))
	} else {
		fmt.Println("Backfill:       pending")
	}
	return nil
}

func printUsage() {
	fmt.Println(`Notebook Migration Tool

Usage:
  notebook-migrate <command> [flags]

Commands:
  up          Apply schema migrations, create the bootstrap administrator
              and assign unowned rows to it
  down        Revert the ownership migration (requires --yes)
  status      Show schema and ownership migration status
  version     Print version information
  help        Show this help message

Flags:
  -c, --config string   Path to the configuration file
      --yes             Confirm a destructive command

Environment Variables:
  NOTEBOOK_DATABASE_DRIVER         sqlite or postgres
  NOTEBOOK_BOOTSTRAP_USERNAME      Administrator created by "up"
  NOTEBOOK_BOOTSTRAP_PASSWORD      Its initial password

Examples:
  notebook-migrate up
  notebook-migrate status --config /etc/notebook/config.yaml
  notebook-migrate down --yes`)
}
