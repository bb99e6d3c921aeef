package leaderboard

import (
	"context"
	"time"
)

// Store is the persistence boundary a Service needs. internal/store
// provides a database/sql-backed implementation; tests can supply an
// in-memory fake.
type Store interface {
	// LoadSettings fetches a leaderboard's settings by id.
	LoadSettings(ctx context.Context, id int64) (Settings, error)

	// RunUpdate runs fn inside one transaction, committing it if fn
	// returns nil and rolling it back otherwise.
	RunUpdate(ctx context.Context, id int64, fn func(tx UpdateTx) error) error

	// TopPlayers returns up to limit players ordered by DisplayRating
	// descending, for leaderboard refresh rendering.
	TopPlayers(ctx context.Context, id int64, limit int) ([]PlayerRecord, error)

	// CurrentSeason returns the active season number for id, creating
	// season 1 if none exists.
	CurrentSeason(ctx context.Context, id int64) (int, error)

	// SavedMessages returns the persisted refresh message ids for id.
	SavedMessages(ctx context.Context, id int64) ([]int64, error)

	// SaveMessages persists the refresh message id list for id.
	SaveMessages(ctx context.Context, id int64, messageIDs []int64) error
}

// UpdateTx is the transactional surface RunUpdate's callback uses to load
// players, apply the computed ratings, and append the game record.
type UpdateTx interface {
	FetchOrCreatePlayers(ctx context.Context, lbID int64, names []string, settings Settings, today time.Time) ([]PlayerRecord, error)
	ApplyRatings(ctx context.Context, players []PlayerRecord) error
	SaveGame(ctx context.Context, game Game, teams []GameTeam) error
}
