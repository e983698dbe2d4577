package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/erazemk/garderoba/internal/admin"
	"github.com/erazemk/garderoba/internal/advice"
	"github.com/erazemk/garderoba/internal/api"
	"github.com/erazemk/garderoba/internal/bootstrap"
	"github.com/erazemk/garderoba/internal/config"
	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/localstate"
	"github.com/erazemk/garderoba/internal/mailer"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/session"
	"github.com/erazemk/garderoba/internal/store"
	"github.com/erazemk/garderoba/internal/workflow"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

// tokenPurgeInterval is how often expired revocations are dropped.
const tokenPurgeInterval = time.Hour

func main() {
	fs := flag.NewFlagSet("garderoba", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var dbPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")

	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")

	var adminEmail string
	fs.StringVar(&adminEmail, "user", "", "")
	fs.StringVar(&adminEmail, "u", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: garderoba [flags]

Flags:
  -c, -config <path>      YAML config file (default: garderoba.yaml if present)
  -d, -db <path>          SQLite database path (default: garderoba.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <email>       admin email on first run (default: admin@garderoba.local)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every setting can also be given as a GARDEROBA_* environment variable,
e.g. GARDEROBA_REDIS_ADDR or GARDEROBA_ADVICE_API_KEY.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		cfg.Server.DBPath = dbPath
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if adminEmail != "" {
		cfg.Server.AdminEmail = adminEmail
	}
	if logPath != "" {
		cfg.Server.LogPath = logPath
	}

	closeLog, err := setupLogger(cfg.Server.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.Server.DBPath); os.IsNotExist(err) {
		database, password, err := bootstrap.Init(ctx, cfg.Server.DBPath, cfg.Server.AdminEmail)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		bootstrap.PrintResult(cfg.Server.DBPath, cfg.Server.AdminEmail, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.Server.DBPath)

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	devices, changes, closeRedis, err := setupState(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeRedis()

	mail, err := setupMailer(ctx, cfg.Mail)
	if err != nil {
		return err
	}

	sessions := session.New(database, jwtSecret, mail)
	sessions.CodeTTL = cfg.Session.CodeTTL
	sessions.ResendCooldown = cfg.Session.ResendCooldown

	wf := workflow.New(database, devices, changes)
	wf.MinScanDuration = cfg.Scan.MinDuration

	deps := api.Deps{
		DB:       database,
		Sessions: sessions,
		Devices:  devices,
		Feed:     changes,
		Workflow: wf,
		Admin:    &admin.Service{DB: database, Feed: changes},
	}
	if cfg.Advice.APIKey != "" {
		deps.Advice = advice.NewClient(advice.Config{
			APIKey:  cfg.Advice.APIKey,
			BaseURL: cfg.Advice.BaseURL,
			Model:   cfg.Advice.Model,
			Timeout: cfg.Advice.Timeout,
		})
		slog.Info("outfit suggestions enabled", "model", cfg.Advice.Model)
	} else {
		slog.Warn("no advice API key configured, outfit suggestions disabled")
	}

	go watchSessions(ctx, sessions)
	go purgeTokens(ctx, database)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(deps))
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}

// setupState picks Redis for device local state and the change feed when an
// address is configured, and in-process implementations otherwise.
func setupState(ctx context.Context, cfg config.RedisConfig) (localstate.Devices, feed.Feed, func(), error) {
	if cfg.Addr == "" {
		slog.Info("no redis configured, keeping local state and change feed in memory")
		return localstate.NewMemoryDevices(), feed.NewMemory(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	slog.Info("redis connected", "addr", cfg.Addr, "channel", cfg.Channel)
	return localstate.RedisDevices{Client: client}, feed.NewRedis(client, cfg.Channel), func() { client.Close() }, nil
}

func setupMailer(ctx context.Context, cfg config.MailConfig) (mailer.Mailer, error) {
	if cfg.Sender == "" {
		slog.Warn("no mail sender configured, verification codes will be logged")
		return mailer.Log{}, nil
	}
	m, err := mailer.NewSES(ctx, cfg.Region, cfg.Sender)
	if err != nil {
		return nil, err
	}
	slog.Info("sending mail through SES", "region", cfg.Region, "from", cfg.Sender)
	return m, nil
}

// watchSessions records session events.
func watchSessions(ctx context.Context, sessions *session.Service) {
	events, cancel := sessions.Subscribe(ctx)
	defer cancel()
	for e := range events {
		metrics.SessionEvents.WithLabelValues(string(e.Kind)).Inc()
		slog.Info("session event", "kind", e.Kind, "email", e.Email)
	}
}

func purgeTokens(ctx context.Context, database *sql.DB) {
	t := time.NewTicker(tokenPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := store.PurgeExpiredTokens(ctx, database, now)
			if err != nil {
				slog.Error("purging expired tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired tokens", "count", n)
			}
		}
	}
}
