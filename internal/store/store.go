// Package store is the database/sql persistence layer behind
// internal/leaderboard.Store, backed by modernc.org/sqlite the way
// srv.Server.setUpDatabase opens and migrates its database: a single
// *sql.DB, an embedded CREATE TABLE IF NOT EXISTS bootstrap, no separate
// migration tool.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sgr-room/matchd/internal/leaderboard"
)

// Open opens (creating if absent) the sqlite database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS leaderboard (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	abbreviation  TEXT NOT NULL UNIQUE,
	settings      TEXT NOT NULL,
	channel       INTEGER NOT NULL,
	match_channel INTEGER,
	messages      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS lb_players (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	lb_id           INTEGER NOT NULL REFERENCES leaderboard(id),
	name            TEXT NOT NULL,
	rating          REAL NOT NULL,
	rating_deviation REAL NOT NULL,
	display_rating  REAL NOT NULL,
	last_updated    TEXT NOT NULL,
	UNIQUE (lb_id, name)
);

CREATE TABLE IF NOT EXISTS lb_seasons (
	lb_id      INTEGER NOT NULL REFERENCES leaderboard(id),
	season_num INTEGER NOT NULL,
	start      TEXT NOT NULL,
	hard_reset INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (lb_id, season_num)
);

CREATE TABLE IF NOT EXISTS lb_games (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	lb_id      INTEGER NOT NULL REFERENCES leaderboard(id),
	season_num INTEGER NOT NULL,
	day        TEXT NOT NULL,
	score      TEXT,
	ties       TEXT
);

CREATE TABLE IF NOT EXISTS lb_game_teams (
	game_id    INTEGER NOT NULL REFERENCES lb_games(id),
	team       INTEGER NOT NULL,
	player_ids TEXT NOT NULL,
	old_rating TEXT NOT NULL,
	new_rating TEXT NOT NULL,
	PRIMARY KEY (game_id, team)
);
`

// RunMigrations bootstraps the schema. Idempotent.
func RunMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Store implements leaderboard.Store over a *sql.DB.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

const dateLayout = "2006-01-02"

// settingsJSON holds the tunable rating knobs that don't get their own
// column; name/abbreviation/channel/match_channel are columns proper so
// the UNIQUE(abbreviation) constraint and plain lookups don't need to
// unmarshal JSON first.
type settingsJSON struct {
	Algorithm          leaderboard.Algorithm `json:"algorithm"`
	MeanRating         float64               `json:"mean_rating"`
	RatingScale        float64               `json:"rating_scale"`
	UnratedDeviation   float64               `json:"unrated_deviation"`
	DeviationPerDay    float64               `json:"deviation_per_day"`
	ConservativeRating float64               `json:"cre"`
}

func (s *Store) LoadSettings(ctx context.Context, id int64) (leaderboard.Settings, error) {
	var (
		name, abbr, raw string
		channel         int64
		matchChannel    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, abbreviation, settings, channel, match_channel FROM leaderboard WHERE id = ?`, id,
	).Scan(&name, &abbr, &raw, &channel, &matchChannel)
	if err != nil {
		return leaderboard.Settings{}, err
	}
	var sj settingsJSON
	if err := json.Unmarshal([]byte(raw), &sj); err != nil {
		return leaderboard.Settings{}, fmt.Errorf("decode leaderboard settings %d: %w", id, err)
	}
	return leaderboard.Settings{
		ID:                 id,
		Name:               name,
		Abbreviation:       abbr,
		Algorithm:          sj.Algorithm,
		MeanRating:         sj.MeanRating,
		RatingScale:        sj.RatingScale,
		UnratedDeviation:   sj.UnratedDeviation,
		DeviationPerDay:    sj.DeviationPerDay,
		ConservativeRating: sj.ConservativeRating,
		Channel:            channel,
		MatchChannel:       matchChannel.Int64,
	}, nil
}

// CreateLeaderboard inserts a new leaderboard row from settings and
// returns its id. Nothing in this repository calls it.
func (s *Store) CreateLeaderboard(ctx context.Context, settings leaderboard.Settings) (int64, error) {
	raw, err := json.Marshal(settingsJSON{
		Algorithm:          settings.Algorithm,
		MeanRating:         settings.MeanRating,
		RatingScale:        settings.RatingScale,
		UnratedDeviation:   settings.UnratedDeviation,
		DeviationPerDay:    settings.DeviationPerDay,
		ConservativeRating: settings.ConservativeRating,
	})
	if err != nil {
		return 0, err
	}
	var matchChannel any
	if settings.MatchChannel != 0 {
		matchChannel = settings.MatchChannel
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leaderboard (name, abbreviation, settings, channel, match_channel) VALUES (?, ?, ?, ?, ?)`,
		settings.Name, settings.Abbreviation, string(raw), settings.Channel, matchChannel,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) RunUpdate(ctx context.Context, id int64, fn func(leaderboard.UpdateTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&sqlUpdateTx{tx: tx, lbID: id}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) TopPlayers(ctx context.Context, id int64, limit int) ([]leaderboard.PlayerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rating, rating_deviation, display_rating, last_updated
		 FROM lb_players WHERE lb_id = ? ORDER BY display_rating DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leaderboard.PlayerRecord
	for rows.Next() {
		var p leaderboard.PlayerRecord
		var lastUpdated string
		if err := rows.Scan(&p.ID, &p.Name, &p.Rating, &p.RatingDeviation, &p.DisplayRating, &lastUpdated); err != nil {
			return nil, err
		}
		p.LastUpdated, _ = time.Parse(dateLayout, lastUpdated)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CurrentSeason(ctx context.Context, id int64) (int, error) {
	var season sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(season_num) FROM lb_seasons WHERE lb_id = ?`, id).Scan(&season)
	if err != nil {
		return 0, err
	}
	if season.Valid {
		return int(season.Int64), nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lb_seasons (lb_id, season_num, start, hard_reset) VALUES (?, 1, ?, 0)`,
		id, time.Now().UTC().Format(dateLayout))
	return 1, err
}

func (s *Store) SavedMessages(ctx context.Context, id int64) ([]int64, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, `SELECT messages FROM leaderboard WHERE id = ?`, id).Scan(&raw); err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) SaveMessages(ctx context.Context, id int64, messageIDs []int64) error {
	raw, err := json.Marshal(messageIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE leaderboard SET messages = ? WHERE id = ?`, string(raw), id)
	return err
}

// sqlUpdateTx implements leaderboard.UpdateTx over one *sql.Tx.
type sqlUpdateTx struct {
	tx   *sql.Tx
	lbID int64
}

func (t *sqlUpdateTx) FetchOrCreatePlayers(ctx context.Context, lbID int64, names []string, settings leaderboard.Settings, today time.Time) ([]leaderboard.PlayerRecord, error) {
	out := make([]leaderboard.PlayerRecord, len(names))
	for i, name := range names {
		var p leaderboard.PlayerRecord
		var lastUpdated string
		err := t.tx.QueryRowContext(ctx,
			`SELECT id, name, rating, rating_deviation, display_rating, last_updated
			 FROM lb_players WHERE lb_id = ? AND name = ?`, lbID, name,
		).Scan(&p.ID, &p.Name, &p.Rating, &p.RatingDeviation, &p.DisplayRating, &lastUpdated)

		switch {
		case err == sql.ErrNoRows:
			p = leaderboard.PlayerRecord{
				Name:            name,
				Rating:          settings.MeanRating,
				RatingDeviation: settings.UnratedDeviation * settings.RatingScale,
				DisplayRating:   settings.MeanRating - settings.UnratedDeviation*settings.RatingScale*settings.ConservativeRating,
				LastUpdated:     today,
			}
			res, err := t.tx.ExecContext(ctx,
				`INSERT INTO lb_players (lb_id, name, rating, rating_deviation, display_rating, last_updated)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				lbID, p.Name, p.Rating, p.RatingDeviation, p.DisplayRating, p.LastUpdated.Format(dateLayout))
			if err != nil {
				return nil, err
			}
			p.ID, err = res.LastInsertId()
			if err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			p.LastUpdated, _ = time.Parse(dateLayout, lastUpdated)
		}
		out[i] = p
	}
	return out, nil
}

func (t *sqlUpdateTx) ApplyRatings(ctx context.Context, players []leaderboard.PlayerRecord) error {
	for _, p := range players {
		_, err := t.tx.ExecContext(ctx,
			`UPDATE lb_players SET rating = ?, rating_deviation = ?, display_rating = ?, last_updated = ? WHERE id = ?`,
			p.Rating, p.RatingDeviation, p.DisplayRating, p.LastUpdated.Format(dateLayout), p.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlUpdateTx) SaveGame(ctx context.Context, game leaderboard.Game, teams []leaderboard.GameTeam) error {
	var scoreJSON, tiesJSON any
	if game.Score != nil {
		b, err := json.Marshal(game.Score)
		if err != nil {
			return err
		}
		scoreJSON = string(b)
	}
	if game.Ties != nil {
		b, err := json.Marshal(game.Ties)
		if err != nil {
			return err
		}
		tiesJSON = string(b)
	}

	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO lb_games (lb_id, season_num, day, score, ties) VALUES (?, ?, ?, ?, ?)`,
		t.lbID, game.Season, game.Day.Format(dateLayout), scoreJSON, tiesJSON)
	if err != nil {
		return err
	}
	gameID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, team := range teams {
		playerIDs, err := json.Marshal(team.PlayerIDs)
		if err != nil {
			return err
		}
		oldRating, err := json.Marshal(team.OldRating)
		if err != nil {
			return err
		}
		newRating, err := json.Marshal(team.NewRating)
		if err != nil {
			return err
		}
		_, err = t.tx.ExecContext(ctx,
			`INSERT INTO lb_game_teams (game_id, team, player_ids, old_rating, new_rating) VALUES (?, ?, ?, ?, ?)`,
			gameID, team.Team, string(playerIDs), string(oldRating), string(newRating))
		if err != nil {
			return err
		}
	}
	return nil
}
