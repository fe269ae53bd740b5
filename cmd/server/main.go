/*
main.go - Application entry point

COMMANDS:
  serve       Start the HTTP API (default when no command is given)
  seed-admin  Create the admin user if it does not exist
  expire      Run the credit expiry sweep for one user now

STARTUP SEQUENCE (serve):
  1. Load config (.env, then environment, then flags)
  2. Build the slog logger
  3. Open and migrate the SQLite store
  4. Wire booking service, handler and router
  5. Start the background expiry sweep
  6. Start server with graceful shutdown

GLOBAL FLAGS:
  --db     SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the expiry sweep
  4. Close database connection

EXAMPLES:
  ./server serve --port 3000 --db ./data/gym.db
  ./server seed-admin
  ./server expire --user 6f1c...

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
*/
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/gym-credit/booking"
	"github.com/warp/gym-credit/clock"
	"github.com/warp/gym-credit/config"
	"github.com/warp/gym-credit/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Gym membership credit ledger and reservation service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.Flags().String("port", "", "HTTP server port (overrides PORT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built from config and flags.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *sqlite.Store
	service *booking.Service
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DB.Path = db
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	loc, err := cfg.Server.Location()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: booking.New(store, clock.NewRealClock(loc), loc, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("close database", "error", err)
	}
}
