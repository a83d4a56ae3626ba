// Package main is the entry point for the notebook admin CLI.
// It manages identities directly against the configured database.
package main

import (
	"context"
	"errors"
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
	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/logging"
	"github.com/prn-tf/notebook-server/internal/service"
	"github.com/prn-tf/notebook-server/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// PasswordEnv supplies the password for "user create" when --password is omitted.
const PasswordEnv = "NOTEBOOK_ADMIN_PASSWORD"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "version":
		fmt.Printf("Notebook Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		if err := runUser(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runUser(args []string) error {
	if len(args) < 1 {
		printUsage()
		return errors.New("missing user subcommand")
	}
	sub := args[0]
	if sub == "help" || sub == "-h" || sub == "--help" {
		printUsage()
		return nil
	}

	flags := pflag.NewFlagSet("user "+sub, pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the configuration file")
	username := flags.StringP("username", "u", "", "username of the identity")
	email := flags.StringP("email", "e", "", "email address (create)")
	password := flags.StringP("password", "p", "", "initial password (create), defaults to $"+PasswordEnv)
	fullName := flags.String("full-name", "", "display name (create)")
	admin := flags.Bool("admin", false, "grant administrator rights (create)")
	limit := flags.Int("limit", 50, "maximum rows to print (list)")
	offset := flags.Int("offset", 0, "rows to skip (list)")
	_ = flags.Parse(args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeFn, err := openUserService(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	switch sub {
	case "create":
		pw := *password
		if pw == "" {
			pw = os.Getenv(PasswordEnv)
		}
		input := service.CreateUserInput{
			Username: *username,
			Email:    *email,
			Password: pw,
			IsAdmin:  *admin,
		}
		if *fullName != "" {
			input.FullName = fullName
		}
		out, err := users.Create(ctx, input)
		if err != nil {
			return err
		}
		fmt.Printf("Created user %s (%s)\n", out.User.Username, out.User.ID)
		return nil

	case "list":
		out, err := users.List(ctx, service.ListUsersInput{Limit: *limit, Offset: *offset})
		if err != nil {
			return err
		}
		printUsers(out)
		return nil

	case "activate", "deactivate", "promote", "demote":
		if *username == "" {
			return errors.New("--username is required")
		}
		user, err := users.GetByUsername(ctx, *username)
		if err != nil {
			return err
		}
		switch sub {
		case "activate":
			user, err = users.SetActive(ctx, user.ID, true)
		case "deactivate":
			user, err = users.SetActive(ctx, user.ID, false)
		case "promote":
			user, err = users.SetAdmin(ctx, user.ID, true)
		case "demote":
			user, err = users.SetAdmin(ctx, user.ID, false)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: active=%t admin=%t\n", user.Username, user.IsActive, user.IsAdmin)
		return nil

	default:
		return fmt.Errorf("unknown user subcommand %q", sub)
	}
}

// openUserService connects to the configured database and returns a
// UserService over it. The schema must already be migrated.
func openUserService(ctx context.Context, configPath string) (*service.UserService, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	backend, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}

	coord, err := storage.OpenCoordination(ctx, cfg.Redis, logger)
	if err != nil {
		backend.Close()
		logCloser.Close()
		return nil, nil, err
	}

	users := service.NewUserService(
		backend.Repositories().User,
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		coord.Cache,
		logger.Level(zerolog.WarnLevel),
	)

	closeFn := func() {
		coord.Close()
		backend.Close()
		logCloser.Close()
	}
	return users, closeFn, nil
}

func printUsers(out *service.ListUsersOutput) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tACTIVE\tADMIN\tLAST LOGIN")
	for _, u := range out.Users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\n", u.ID, u.Username, u.Email, u.IsActive, u.IsAdmin, lastLogin(u))
	}
	_ = w.Flush()

	if out.HasMore {
		fmt.Printf("\n%d of %d users shown, use --offset for more\n", len(out.Users), out.TotalCount)
	}
}

func lastLogin(u *domain.User) string {
	if u.LastLogin == nil {
		return "never"
	}
	return u.LastLogin.Format(time.RFC3339)
}

func printUsage() {
	fmt.Println(`Notebook Admin CLI

Usage:
  notebook-admin <command> [arguments]

Commands:
  user create       Create an identity (--username, --email, --password, --admin)
  user list         List identities (--limit, --offset)
  user activate     Re-enable an identity (--username)
  user deactivate   Disable an identity; its tokens stop working (--username)
  user promote      Grant administrator rights (--username)
  user demote       Revoke administrator rights (--username)
  version           Print version information
  help              Show this help message

Every command accepts -c/--config to point at the configuration file.

Examples:
  notebook-admin user create --username alice --email alice@example.com --password s3cret-pass
  notebook-admin user list
  notebook-admin user deactivate --username alice

Use "notebook-admin user <subcommand> --help" for more information about a command.`)
}
