// Command garderobactl administers a garderoba database from the shell:
// initializing it, importing the garment catalog and handling access
// requests without the web dashboard.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/erazemk/garderoba/internal/config"
	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/feed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env holds what the persistent flags resolve to.
type env struct {
	configPath string
	dbPath     string
	cfg        *config.Config
}

func rootCmd() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:   "garderobactl",
		Short: "Administer a garderoba database",
		Long: `Administer a garderoba database.

Examples:
  garderobactl init --admin-email admin@example.com
  garderobactl catalog import catalog.yaml
  garderobactl requests list
  garderobactl requests resolve <id> 482913
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return err
			}
			if e.dbPath != "" {
				cfg.Server.DBPath = e.dbPath
			}
			e.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVarP(&e.dbPath, "db", "d", "", "Path to SQLite database (overrides config)")

	cmd.AddCommand(initCmd(e))
	cmd.AddCommand(catalogCmd(e))
	cmd.AddCommand(requestsCmd(e))

	return cmd
}

// open opens an existing database and brings its schema up to date.
func (e *env) open() (*sql.DB, error) {
	if _, err := os.Stat(e.cfg.Server.DBPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("database %s does not exist, run garderobactl init first", e.cfg.Server.DBPath)
	}

	database, err := db.Open(e.cfg.Server.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return database, nil
}

// publisher returns the Redis change feed so running servers see what this
// command changed. Without Redis there is nobody to tell.
func (e *env) publisher(ctx context.Context) (feed.Publisher, func(), error) {
	rc := e.cfg.Redis
	if rc.Addr == "" {
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", rc.Addr, err)
	}
	return feed.NewRedis(client, rc.Channel), func() { client.Close() }, nil
}
