package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/internal/repository"
	"github.com/noah-isme/ekskul-api/internal/service"
	"github.com/noah-isme/ekskul-api/pkg/config"
	"github.com/noah-isme/ekskul-api/pkg/database"
	"github.com/noah-isme/ekskul-api/pkg/logger"
)

const usage = `usage: ekskul-admin <command> [flags]

commands:
  migrate up|down|status        apply or inspect schema migrations
  adduser -email -name -role    create an approved account (password is prompted)
  approve -email                approve a pending admin/coordinator
  reject -email                 reject a pending admin/coordinator
  reconcile-points              rebuild history and recompute every user's points
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(context.Background(), cfg, logr, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger, command string, args []string, out io.Writer) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if command == "migrate" {
		direction := "up"
		if len(args) > 0 {
			direction = args[0]
		}
		return database.Migrate(db.DB, direction)
	}

	users := service.NewUserService(repository.NewUserRepository(db), repository.NewActivityRepository(db), nil, logr)
	return dispatch(ctx, users, command, args, out, readPassword)
}

type accountAdmin interface {
	Provision(ctx context.Context, req service.ProvisionUserRequest, cost int) (*models.User, error)
	SetRoleStatus(ctx context.Context, email string, status models.RoleStatus) (*models.User, error)
	ReconcilePoints(ctx context.Context) (int64, error)
}

func dispatch(ctx context.Context, users accountAdmin, command string, args []string, out io.Writer, password func() (string, error)) error {
	switch command {
	case "adduser":
		fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		name := fs.String("name", "", "display name")
		role := fs.String("role", string(models.RoleStudent), "student, admin or coordinator")
		if err := fs.Parse(args); err != nil {
			return err
		}
		secret, err := password()
		if err != nil {
			return err
		}
		user, err := users.Provision(ctx, service.ProvisionUserRequest{
			Name: *name, Email: *email, Password: secret, Role: models.UserRole(*role),
		}, 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s (%s) id=%s\n", user.Email, user.Role, user.ID)
		return nil

	case "approve", "reject":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *email == "" {
			return errors.New("-email is required")
		}
		status := models.RoleStatusApproved
		if command == "reject" {
			status = models.RoleStatusRejected
		}
		user, err := users.SetRoleStatus(ctx, *email, status)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", user.Email, user.RoleStatus)
		return nil

	case "reconcile-points":
		n, err := users.ReconcilePoints(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "corrected points for %d user(s)\n", n)
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		raw, err := io.ReadAll(io.LimitReader(os.Stdin, 1024))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
