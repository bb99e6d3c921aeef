package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/sgr-room/matchd/internal/adminhttp"
	"github.com/sgr-room/matchd/internal/hostdriver"
	"github.com/sgr-room/matchd/internal/leaderboard"
	"github.com/sgr-room/matchd/internal/room"
	"github.com/sgr-room/matchd/internal/store"
	"github.com/sgr-room/matchd/internal/supervisor"
)

func newServeCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Supervisor and admin HTTP surface.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *Config) error {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := store.Open(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := store.RunMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	st := store.New(db)

	registry := leaderboard.NewRegistry(st, nil, log)

	lookupLB := func(ctx context.Context, abbreviation string) (int64, error) {
		return lookupLeaderboardID(ctx, db, abbreviation)
	}

	dial := func(ctx context.Context, params room.Parameters) (hostdriver.Driver, error) {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
		defer cancel()
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, cfg.bridgeURL, nil)
		if err != nil {
			return nil, fmt.Errorf("dial bridge: %w", err)
		}
		driver := hostdriver.NewWSDriver(conn)
		if _, err := driver.Execute(ctx, hostdriver.ScriptCreateRoom, params); err != nil {
			driver.Close()
			return nil, fmt.Errorf("create room: %w", err)
		}
		return driver, nil
	}

	sup := supervisor.New(dial, lookupLB, registry, log)

	router := adminhttp.NewRouter(sup, log)
	srv := &http.Server{Addr: cfg.adminBind, Handler: router}

	go func() {
		<-ctx.Done()
		sup.CloseAll(context.Background())
		srv.Close()
	}()

	log.Info("matchd listening", "admin", cfg.adminBind, "bridge", cfg.bridgeURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// lookupLeaderboardID resolves an abbreviation to a leaderboard row id.
func lookupLeaderboardID(ctx context.Context, db *sql.DB, abbreviation string) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `SELECT id FROM leaderboard WHERE abbreviation = ?`, abbreviation).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("leaderboard %q: %w", abbreviation, err)
	}
	return id, nil
}
