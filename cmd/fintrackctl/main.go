// Command fintrackctl is the operator CLI: it applies migrations, creates
// accounts and runs the recurring sweep by hand.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"

	"golang.org/x/term"
)

const usage = `usage: fintrackctl <command> [flags]

commands:
  migrate [-down N] [-version]
                              apply pending schema migrations, roll back N
                              steps or print the schema version (sqlite only)
  adduser -email E [-first F] [-last L] [-currency C]
                              create an account; the password is read from stdin
  generate [-as-of D] [-user N]
                              generate due recurring transactions as of D (default today)
`

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// open returns the store and the function releasing it.
	open func(ctx context.Context) (storage.Store, func() error, error)
	// sqlitePath is empty unless the sqlite backend is configured.
	sqlitePath string
	loc        *time.Location
	now        func() time.Time
	bcryptCost int
}

func main() {
	cfg, logger := cli.Bootstrap()
	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		open: func(ctx context.Context) (storage.Store, func() error, error) {
			res := cli.InitStore(ctx, logger, cfg)
			return res.Store, res.Cleanup, nil
		},
		loc:        cfg.Location(),
		now:        time.Now,
		bcryptCost: cfg.BcryptCost,
	}
	if cfg.DataBackend == "sqlite" {
		a.sqlitePath = cfg.SQLiteDBPath
	}
	os.Exit(a.run(context.Background(), os.Args[1:]))
}

// run executes one command and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "migrate":
		err = a.migrate(ctx, args[1:])
	case "adduser":
		err = a.addUser(ctx, args[1:])
	case "generate":
		err = a.generate(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return 0
	default:
		fmt.Fprintf(a.stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) newServices(store storage.Store) *services.Services {
	return services.New(store, services.Options{
		Hasher:   auth.NewPasswordHasher(a.bcryptCost),
		Location: a.loc,
		Clock:    a.now,
	})
}

// migrate relies on the backends applying pending migrations when opened.
// Rollback and version inspection go through the sqlite migrator.
func (a *app) migrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	down := fs.Int("down", 0, "roll back N migrations")
	version := fs.Bool("version", false, "print the current schema version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *down < 0 {
		return errors.New("-down must be positive")
	}
	if *down > 0 || *version {
		if a.sqlitePath == "" {
			return errors.New("-down and -version need DATA_BACKEND=sqlite")
		}
		dsn := storage.SQLiteDSN(a.sqlitePath)
		if *down > 0 {
			if err := storage.RollbackMigrations(dsn, *down); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "rolled back %d migration(s)\n", *down)
		}
		v, dirty, err := storage.MigrationVersion(dsn)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		fmt.Fprintf(a.stdout, "schema version %d (dirty: %t)\n", v, dirty)
		return nil
	}

	_, closeStore, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	fmt.Fprintln(a.stdout, "schema is up to date")
	return nil
}

func (a *app) addUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	email := fs.String("email", "", "account email (required)")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	currency := fs.String("currency", core.DefaultCurrency, "ISO currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}

	password, err := a.readPassword()
	if err != nil {
		return err
	}

	store, closeStore, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	u, err := a.newServices(store).Auth.CreateAccount(ctx, services.RegisterInput{
		Email:     *email,
		Password:  password,
		FirstName: *first,
		LastName:  *last,
		Currency:  *currency,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "created user %d (%s)\n", u.ID, u.Email)
	return nil
}

func (a *app) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	asOfFlag := fs.String("as-of", "", "sweep date YYYY-MM-DD (default today)")
	userFlag := fs.Int64("user", 0, "limit the sweep to one user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	asOf := core.DateOf(a.now().In(a.loc))
	if *asOfFlag != "" {
		d, err := core.ParseDate(*asOfFlag)
		if err != nil {
			return fmt.Errorf("-as-of: %w", err)
		}
		asOf = d
	}
	scope := services.AllUsers
	if *userFlag > 0 {
		scope = services.ForUser(*userFlag)
	}

	store, closeStore, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := a.newServices(store).Recurring.GenerateDue(ctx, asOf, scope)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "generated %d transaction(s) as of %s\n", res.Generated, res.AsOf)
	for _, e := range res.Errors {
		fmt.Fprintf(a.stdout, "  recurring %d (%s): %s\n", e.RecurringID, e.Description, e.Message)
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d recurring transaction(s) failed", len(res.Errors))
	}
	return nil
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise, so the command also works in scripts.
func (a *app) readPassword() (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.stderr, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
