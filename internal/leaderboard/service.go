package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// refreshInterval is the minimum spacing between leaderboard refreshes for
// one leaderboard id (spec §4.5, §5 rate limits).
const refreshInterval = 120 * time.Second

// maxRefreshTimer stands in for "no refresh scheduled".
const maxRefreshTimer = 365 * 24 * time.Hour

// MatchSink publishes the detailed match string to the external match-log
// channel (spec §1's "Channel Sink" collaborator). Optional: a nil sink is
// a valid no-op configuration.
type MatchSink interface {
	PublishMatch(ctx context.Context, leaderboardID int64, detailed string) error
}

type updateRequest struct {
	teams [][]string
	ties  []bool
	reply chan updateResult
}

type updateResult struct {
	summary string
	err     error
}

// Service serializes rating updates for one leaderboard id: one goroutine,
// one id, mirroring the Room Controller's per-entity isolation (spec §5).
// Its refcount lives in Registry, not here, so acquiring a handle and
// tearing the Service down can never interleave (see Registry.release).
type Service struct {
	id       int64
	settings Settings
	store    Store
	sink     MatchSink
	log      *slog.Logger

	requests chan updateRequest
	stop     chan struct{}
}

// newService constructs a Service for id. Call run in its own goroutine,
// then hand out handles via Registry.Acquire.
func newService(id int64, settings Settings, store Store, sink MatchSink, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		id:       id,
		settings: settings,
		store:    store,
		sink:     sink,
		log:      log,
		requests: make(chan updateRequest),
		stop:     make(chan struct{}),
	}
}

func (s *Service) run(ctx context.Context) {
	timer := time.NewTimer(maxRefreshTimer)
	if !timer.Stop() {
		<-timer.C
	}
	canUpdate, needsUpdate := true, false

	rearm := func(d time.Duration) {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.stop:
			return

		case req, ok := <-s.requests:
			if !ok {
				return
			}
			summary, err := s.handleUpdate(ctx, req.teams, req.ties)
			req.reply <- updateResult{summary: summary, err: err}

			if err == nil {
				if canUpdate {
					s.refresh(ctx)
					rearm(refreshInterval)
					canUpdate = false
				} else {
					needsUpdate = true
				}
			}

		case <-timer.C:
			if needsUpdate {
				s.refresh(ctx)
				rearm(refreshInterval)
				needsUpdate = false
			} else {
				canUpdate = true
			}
		}
	}
}

// handleUpdate implements spec §4.5's rating update: fetch-or-create
// players inside one transaction, apply the rating math, persist, and
// render the reply.
func (s *Service) handleUpdate(ctx context.Context, teamNames [][]string, ties []bool) (string, error) {
	if len(teamNames) < 1 || len(ties) != len(teamNames)-1 {
		return "", fmt.Errorf("leaderboard: invalid update: %d teams, %d ties", len(teamNames), len(ties))
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var teamsData [][]PlayerRecord
	var detailed, summary string

	// Resolved before the transaction opens: CurrentSeason goes through the
	// store's own connection, which a single-connection pool cannot hand
	// out while RunUpdate holds it.
	season, err := s.store.CurrentSeason(ctx, s.id)
	if err != nil {
		return "", err
	}

	err = s.store.RunUpdate(ctx, s.id, func(tx UpdateTx) error {
		var err error
		teamsData, err = fetchTeams(ctx, tx, s.id, teamNames, s.settings, today)
		if err != nil {
			return err
		}

		applyRatings(s.settings, teamsData, ties, today)

		flat := make([]PlayerRecord, 0)
		for _, team := range teamsData {
			flat = append(flat, team...)
		}
		if err := tx.ApplyRatings(ctx, flat); err != nil {
			return err
		}

		game, gameTeams := buildGameRecord(s.id, season, today, teamsData, ties)
		return tx.SaveGame(ctx, game, gameTeams)
	})
	if err != nil {
		return "", err
	}

	detailed, summary = MatchString(teamsData, nil, ties)
	if s.sink != nil {
		_ = s.sink.PublishMatch(ctx, s.id, detailed)
	}
	return summary, nil
}

func fetchTeams(ctx context.Context, tx UpdateTx, lbID int64, teamNames [][]string, settings Settings, today time.Time) ([][]PlayerRecord, error) {
	out := make([][]PlayerRecord, len(teamNames))
	for i, names := range teamNames {
		players, err := tx.FetchOrCreatePlayers(ctx, lbID, names, settings, today)
		if err != nil {
			return nil, err
		}
		for j := range players {
			players[j].OldRating = players[j].DisplayRating
		}
		out[i] = players
	}
	return out, nil
}

func buildGameRecord(lbID int64, season int, day time.Time, teamsData [][]PlayerRecord, ties []bool) (Game, []GameTeam) {
	game := Game{LeaderboardID: lbID, Season: season, Day: day, Ties: ties}
	teams := make([]GameTeam, len(teamsData))
	for i, team := range teamsData {
		gt := GameTeam{Team: i}
		for _, p := range team {
			gt.PlayerIDs = append(gt.PlayerIDs, p.ID)
			gt.OldRating = append(gt.OldRating, p.OldRating)
			gt.NewRating = append(gt.NewRating, p.DisplayRating)
		}
		teams[i] = gt
	}
	return game, teams
}

// refresh loads the top 500 players and renders them into leaderboard
// messages of at most 2000 UTF-16 units each. The rendered messages are not
// posted anywhere, and no message ids are read or saved. A store failure
// is logged and dropped; the next eligible refresh loads again.
func (s *Service) refresh(ctx context.Context) {
	players, err := s.store.TopPlayers(ctx, s.id, 500)
	if err != nil {
		s.log.Warn("leaderboard refresh: load players failed", "leaderboard", s.id, "err", err)
		return
	}
	lines := FormatLeaderboard(players)
	messages := SplitMessages(lines, 2000)
	_ = messages // rendered only; MatchSink carries match strings, not board messages
}

// Handle is a room's reference to a shared Service. It satisfies the
// narrow LeaderboardClient interface Room Controllers depend on.
type Handle struct {
	registry *Registry
	id       int64
	svc      *Service
}

// Update sends teams/ties to the owning Service and waits for its rendered
// summary.
func (h *Handle) Update(ctx context.Context, teams [][]string, ties []bool) (string, error) {
	reply := make(chan updateResult, 1)
	select {
	case h.svc.requests <- updateRequest{teams: teams, ties: ties, reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-reply:
		return res.summary, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Release drops this handle's strong reference.
func (h *Handle) Release() { h.registry.release(h.id, h.svc) }
