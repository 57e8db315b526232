package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"chatty/cmd/internal/auth/tokens"
	"chatty/cmd/internal/storage/migrations"
)

// ErrUsage marks command-line mistakes; the caller prints usage and exits 2.
var ErrUsage = errors.New("usage")

const usage = `usage: chatty [-config file] <command> [flags]

commands:
  serve                         run the ops HTTP server (/healthz, /readyz, /metrics)
  migrate [up|status|version]   manage the database schema (default: up)
  keygen [-kind k]              print signing material: paseto | hmac | jwt-secret | rsa
  sessions list -user ID [-all] list a user's refresh sessions
  sessions revoke-all -user ID  revoke every active session of a user
`

// Run executes the chatty command line. It returns an error instead of calling
// os.Exit so deferred cleanup runs.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chatty", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = io.WriteString(stderr, usage) }
	configPath := fs.String("config", "", "YAML config file (default $CHATTY_CONFIG_FILE)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return fmt.Errorf("%w: missing command", ErrUsage)
	}
	cmd, cmdArgs := rest[0], rest[1:]

	switch cmd {
	case "keygen":
		return runKeygen(cmdArgs, stdout, stderr)
	case "help", "-h", "--help":
		_, _ = io.WriteString(stdout, usage)
		return nil
	case "serve", "migrate", "sessions":
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	log := NewLogger(cfg.Log.Level, cfg.Log.Format, stderr)

	switch cmd {
	case "serve":
		return runServe(ctx, cfg, log)
	case "migrate":
		return runMigrate(ctx, cfg, log, cmdArgs, stdout)
	default:
		return runSessions(ctx, cfg, log, cmdArgs, stdout, stderr)
	}
}

func runServe(ctx context.Context, cfg Config, log *slog.Logger) error {
	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}

func runMigrate(ctx context.Context, cfg Config, log *slog.Logger, args []string, stdout io.Writer) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}
	if cfg.Store != StorePostgres {
		return fmt.Errorf("migrate: a database is required (set CHATTY_DATABASE_URL)")
	}

	pool, err := NewDBPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	m, err := migrations.Open(ctx, pool, cfg.Database.Schema)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch action {
	case "up":
		res, err := m.Up(ctx)
		if err != nil {
			log.Error("db.migrate.fail", "err", err)
			return err
		}
		for _, r := range res {
			_, _ = fmt.Fprintf(stdout, "applied %05d %s (%s)\n", r.Source.Version, r.Source.Path, r.Duration.Round(time.Millisecond))
		}
		log.Info("db.migrate.ok", "schema", m.Schema(), "applied", len(res))
		return nil

	case "status":
		st, err := m.Status(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, s := range st {
			applied := "-"
			if !s.AppliedAt.IsZero() {
				applied = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			_, _ = fmt.Fprintf(tw, "%05d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
		}
		return tw.Flush()

	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "%d\n", v)
		return nil

	default:
		return fmt.Errorf("%w: unknown migrate action %q", ErrUsage, action)
	}
}

func runKeygen(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kind := fs.String("kind", "paseto", "paseto | hmac | jwt-secret | rsa")
	bits := fs.Int("bits", 3072, "RSA key size for -kind rsa")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	switch strings.ToLower(strings.TrimSpace(*kind)) {
	case "paseto":
		_, err := fmt.Fprintf(stdout, "CHATTY_PASETO_V4_SECRET_KEY_HEX=%s\n", tokens.GeneratePasetoV4SecretKeyHex())
		return err
	case "hmac":
		s, err := tokens.GenerateSecret(48)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "CHATTY_TOKEN_HMAC_KEY=%s\n", s)
		return err
	case "jwt-secret":
		s, err := tokens.GenerateSecret(48)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "CHATTY_JWT_SECRET=%s\n", s)
		return err
	case "rsa":
		pem, err := tokens.GenerateRSAPrivateKeyPEM(*bits)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, pem)
		return err
	default:
		return fmt.Errorf("%w: unknown key kind %q", ErrUsage, *kind)
	}
}

func runSessions(ctx context.Context, cfg Config, log *slog.Logger, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: sessions needs list or revoke-all", ErrUsage)
	}
	action := args[0]

	fs := flag.NewFlagSet("sessions "+action, flag.ContinueOnError)
	fs.SetOutput(stderr)
	userID := fs.String("user", "", "user id")
	all := fs.Bool("all", false, "include revoked and expired sessions (list only)")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if strings.TrimSpace(*userID) == "" {
		return fmt.Errorf("%w: -user is required", ErrUsage)
	}
	if action != "list" && action != "revoke-all" {
		return fmt.Errorf("%w: unknown sessions action %q", ErrUsage, action)
	}

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return sessionsCommand(ctx, a, action, *userID, *all, stdout)
}

func sessionsCommand(ctx context.Context, a *App, action, userID string, all bool, stdout io.Writer) error {
	switch action {
	case "list":
		list := a.Auth().ListActiveSessions
		if all {
			list = a.Auth().ListSessions
		}
		views, err := list(ctx, userID)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "TOKEN ID\tCREATED\tEXPIRES\tIP\tREVOKED\tREUSED")
		for _, v := range views {
			ip := "-"
			if v.CreatedByIP != nil {
				ip = *v.CreatedByIP
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n",
				v.TokenID,
				v.CreatedAt.UTC().Format(time.RFC3339),
				v.ExpiresAt.UTC().Format(time.RFC3339),
				ip,
				v.IsRevoked,
				v.IsReused,
			)
		}
		return tw.Flush()

	default:
		n, err := a.Auth().LogoutAllSessions(ctx, userID, "")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "revoked %d session(s) for %s\n", n, userID)
		return err
	}
}
