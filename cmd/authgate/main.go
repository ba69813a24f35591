// ABOUTME: Admin CLI for authgate credential management
// ABOUTME: Opens the governed database directly and drives a Session per invocation

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/authgate/internal/config"
	"github.com/2389/authgate/internal/store"
	"github.com/2389/authgate/internal/userauth"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(args)
	case "login":
		err = cmdLogin(args)
	case "users":
		err = cmdUsers(args)
	case "audit":
		err = cmdAudit(args)
	case "version":
		fmt.Println("authgate", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: authgate <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                  Show whether the database requires authentication")
	fmt.Println("  login <username>        Verify credentials against the database")
	fmt.Println("  users list              List accounts")
	fmt.Println("  users add [flags] <username>    Create an account (--admin for admin privilege)")
	fmt.Println("  users change [flags] <username> Change an account's credential or admin flag")
	fmt.Println("  users delete [flags] <username> Delete an account")
	fmt.Println("  audit                   Show recent credential-table mutations")
	fmt.Println()
	yellow.Println("Common flags:")
	fmt.Println("  --db PATH               Database file (overrides config)")
	fmt.Println("  --as USER               Act as this account (prompts for its password)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  AUTHGATE_CONFIG          Config file path (default: ~/.config/authgate/authgate.yaml)")
	fmt.Println("  AUTHGATE_PASSWORD        Password for --as (skips the prompt)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  authgate users add --db app.db --admin alice")
	fmt.Println("  authgate users add --db app.db --as alice bob")
	fmt.Println("  authgate login --db app.db bob")
}

// getConfigPath returns the path to the authgate config file.
// Priority: AUTHGATE_CONFIG env var > XDG_CONFIG_HOME/authgate/authgate.yaml > ~/.config/authgate/authgate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("AUTHGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "authgate.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "authgate", "authgate.yaml")
}

// loadConfig resolves configuration: the config file when present,
// defaults otherwise. A --db flag value overrides the configured path.
func loadConfig(dbOverride string) (*config.Config, error) {
	cfg := config.Default()
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if dbOverride != "" {
		cfg.Database.Path = dbOverride
	}
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("no database given: set --db or database.path in %s", path)
	}
	setupLogging(cfg.Logging)
	return cfg, nil
}

func setupLogging(lc config.LoggingConfig) {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openSession opens the database and, when the database requires
// authentication and an acting user is given, logs the session in.
func openSession(ctx context.Context, cfg *config.Config, actAs, password string) (*userauth.Session, *store.SQLiteStore, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	opts := userauth.DefaultOptions()
	if cfg.Auth.ProtectLastAdmin != nil {
		opts.ProtectLastAdmin = *cfg.Auth.ProtectLastAdmin
	}
	sess := userauth.NewSession(db, opts)

	enabled, err := sess.AuthEnabled(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	if enabled {
		if actAs == "" {
			db.Close()
			return nil, nil, fmt.Errorf("database requires authentication: pass --as <username>")
		}
		if password == "" {
			password, err = promptPassword(fmt.Sprintf("Password for %s: ", actAs))
			if err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		if err := sess.Authenticate(ctx, actAs, []byte(password)); err != nil {
			db.Close()
			return nil, nil, err
		}
	} else if actAs != "" {
		// Harmless on an auth-free database; the tier is admin either way.
		_ = sess.Authenticate(ctx, actAs, []byte(password))
	}

	return sess, db, nil
}

// promptPassword reads a password without echo when stdin is a
// terminal, falling back to a plain line read otherwise.
func promptPassword(prompt string) (string, error) {
	if pw := os.Getenv("AUTHGATE_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dbPath := fs.String("db", "", "database file")
	fs.Parse(args)

	cfg, err := loadConfig(*dbPath)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	enabled, err := db.UserTableExists(ctx, userauth.MainDB)
	if err != nil {
		return err
	}

	fmt.Printf("Database: %s\n", cfg.Database.Path)
	if !enabled {
		color.Yellow("Authentication: disabled (no credential table; every connection is admin)")
		return nil
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		return err
	}
	admins, err := db.CountAdmins(ctx)
	if err != nil {
		return err
	}

	color.Green("Authentication: enabled")
	fmt.Printf("Accounts: %d (%d admin)\n", len(users), admins)
	return nil
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	dbPath := fs.String("db", "", "database file")
	password := fs.String("password", "", "password (prompted if empty)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: authgate login [flags] <username>")
	}
	username := fs.Arg(0)

	cfg, err := loadConfig(*dbPath)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	pw := *password
	if pw == "" {
		pw, err = promptPassword(fmt.Sprintf("Password for %s: ", username))
		if err != nil {
			return err
		}
	}

	sess := userauth.NewSession(db, userauth.DefaultOptions())
	if err := sess.Authenticate(context.Background(), username, []byte(pw)); err != nil {
		return err
	}

	color.Green("Authenticated as %s (%s)", username, sess.Tier())
	return nil
}

func cmdUsers(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: authgate users <list|add|change|delete> [args]")
	}

	sub := args[0]
	args = args[1:]

	switch sub {
	case "list":
		return cmdUsersList(args)
	case "add":
		return cmdUsersAdd(args)
	case "change":
		return cmdUsersChange(args)
	case "delete":
		return cmdUsersDelete(args)
	default:
		return fmt.Errorf("unknown users subcommand: %s", sub)
	}
}

func cmdUsersList(args []string) error {
	fs := flag.NewFlagSet("users list", flag.ExitOnError)
	dbPath := fs.String("db", "", "database file")
	fs.Parse(args)

	cfg, err := loadConfig(*dbPath)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.ListUsers(context.Background())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No accounts (authentication disabled)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tADMIN")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%v\n", u.Username, u.IsAdmin)
	}
	return w.Flush()
}

func cmdUsersAdd(args []string) error {
	fs := flag.NewFlagSet("users add", flag.ExitOnError)
	dbPath := fs.String("db", "", "database file")
	admin := fs.Bool("admin", false, "grant admin privilege")
	actAs := fs.String("as", "", "acting account")
	actPassword := fs.String("as-password", "", "acting account password")
	password := fs.String("password", "", "new account password (prompted if empty)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: authgate users add [flags] <username>")
	}
	username := fs.Arg(0)

	cfg, err := loadConfig(*dbPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, db, err := openSession(ctx, cfg, *actAs, *actPassword)
	if err != nil {
		return err
	}
	defer db.Close()

	pw := *password
	if pw == "" {
		pw, err = promptPassword(fmt.Sprintf("New password for %s: ", username))
		if err != nil {
			return err
		}
	}

	if err := sess.AddUser(ctx, username, *admin, []byte(pw)); err != nil {
		return err
	}

	color.Green("Created account %s (admin=%v)", username, *admin)
	if sess.Username() == username && *actAs == "" {
		fmt.Println("Authentication is now enabled for this database.")
	}
	return nil
}

func cmdUsersChange(args []string) error {
	fs := flag.NewFlagSet("users change", flag.ExitOnError)
	dbPath := fs.String("db", "", "database file")
	admin := fs.Bool("admin", false, "grant admin privilege")
	actAs := fs.String("as", "", "acting account")
	actPassword := fs.String("as-password", "", "acting account password")
	password := fs.String("password", "", "new password (prompted if empty)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: authgate users change [flags] <username>")
	}
	username := fs.Arg(0)

	cfg, err := loadConfig(*dbPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, db, err := openSession(ctx, cfg, *actAs, *actPassword)
	if err != nil {
		return err
	}
	defer db.Close()

	pw := *password
	if pw == "" {
		pw, err = promptPassword(fmt.Sprintf("New password for %s: ", username))
		if err != nil {
			return err
		}
	}

	if err := sess.ChangeUser(ctx, username, *admin, []byte(pw)); err != nil {
		if errors.Is(err, userauth.ErrLastAdmin) {
			return fmt.Errorf("%w (pass --admin to keep the flag, or promote another account first)", err)
		}
		return err
	}

	color.Green("Updated account %s (admin=%v)", username, *admin)
	return nil
}

func cmdUsersDelete(args []string) error {
	fs := flag.NewFlagSet("users delete", flag.ExitOnError)
	dbPath := fs.String("db", "", "database file")
	actAs := fs.String("as", "", "acting account")
	actPassword := fs.String("as-password", "", "acting account password")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: authgate users delete [flags] <username>")
	}
	username := fs.Arg(0)

	cfg, err := loadConfig(*dbPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, db, err := openSession(ctx, cfg, *actAs, *actPassword)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sess.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, userauth.ErrUnauthorized) && username == sess.Username() {
			return fmt.Errorf("%w: an account can never delete itself", err)
		}
		return err
	}

	color.Green("Deleted account %s", username)
	return nil
}

func cmdAudit(args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dbPath := fs.String("db", "", "database file")
	limit := fs.Int("limit", 50, "max entries to show")
	fs.Parse(args)

	cfg, err := loadConfig(*dbPath)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.ListAudit(context.Background(), *limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tACTION\tTARGET")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Actor, e.Action, e.Target)
	}
	return w.Flush()
}
