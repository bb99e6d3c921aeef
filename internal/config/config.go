// Package config loads RoomParameters and LeaderboardSettings documents
// from TOML files, the way Seednode-partybox's config.go layers viper over
// its flag/env surface, adapted here to file-based settings documents
// instead of CLI flags.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sgr-room/matchd/internal/leaderboard"
	"github.com/sgr-room/matchd/internal/room"
)

// roomDoc mirrors the TOML shape of spec §6's "Room parameters", with
// durations expressed in seconds (matching the Rust source's wire format).
type roomDoc struct {
	Name                    string   `mapstructure:"name"`
	Password                string   `mapstructure:"password"`
	MaxPlayers              int      `mapstructure:"max_players"`
	MinLevel                int      `mapstructure:"min_level"`
	Mode                    string   `mapstructure:"mode"`
	Queue                   string   `mapstructure:"queue"`
	Rounds                  int      `mapstructure:"rounds"`
	Maps                    []string `mapstructure:"maps"`
	StrikeCount             int      `mapstructure:"strike_num"`
	StrikeTimeSec           int      `mapstructure:"strike_time"`
	TeamSize                int      `mapstructure:"team_size"`
	TeamNum                 int      `mapstructure:"team_num"`
	FFAMin                  int      `mapstructure:"ffa_min"`
	FFAMax                  int      `mapstructure:"ffa_max"`
	IdleTimeSec             int      `mapstructure:"idle_time"`
	PickTimeSec             int      `mapstructure:"pick_time"`
	ReadyTimeSec            int      `mapstructure:"ready_time"`
	GameTimeSec             int      `mapstructure:"game_time"`
	Headless                bool     `mapstructure:"headless"`
	Unlisted                bool     `mapstructure:"unlisted"`
	LeaderboardAbbreviation string   `mapstructure:"leaderboard"`
}

var modeNames = map[string]room.Mode{
	"football":    room.ModeFootball,
	"simple":      room.ModeSimple,
	"deatharrows": room.ModeDeathArrows,
	"arrows":      room.ModeArrows,
	"grapple":     room.ModeGrapple,
	"vtol":        room.ModeVTOL,
	"classic":     room.ModeClassic,
}

var queueNames = map[string]room.QueueKind{
	"singles": room.QueueSingles,
	"teams":   room.QueueTeams,
	"ffa":     room.QueueFFA,
}

// LoadRoomParameters reads one room-parameters TOML document from path,
// overlaying it on room.Defaults() so unset fields keep the spec §6
// defaults.
func LoadRoomParameters(path string) (room.Parameters, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetDefault("strike_num", 2)
	v.SetDefault("team_size", 2)
	v.SetDefault("team_num", 2)
	v.SetDefault("ffa_min", 2)
	v.SetDefault("ffa_max", 7)
	v.SetDefault("idle_time", 0)
	v.SetDefault("pick_time", 60)
	v.SetDefault("ready_time", 60)
	v.SetDefault("strike_time", 20)
	v.SetDefault("game_time", 600)
	v.SetDefault("headless", true)
	v.SetDefault("unlisted", true)
	v.SetDefault("mode", "simple")
	v.SetDefault("queue", "singles")

	if err := v.ReadInConfig(); err != nil {
		return room.Parameters{}, fmt.Errorf("config: read room parameters %s: %w", path, err)
	}

	var doc roomDoc
	if err := v.Unmarshal(&doc); err != nil {
		return room.Parameters{}, fmt.Errorf("config: decode room parameters %s: %w", path, err)
	}

	mode, ok := modeNames[normalizeKey(doc.Mode)]
	if !ok {
		return room.Parameters{}, fmt.Errorf("config: unknown mode %q", doc.Mode)
	}
	queue, ok := queueNames[normalizeKey(doc.Queue)]
	if !ok {
		return room.Parameters{}, fmt.Errorf("config: unknown queue kind %q", doc.Queue)
	}

	p := room.Defaults()
	p.Name = doc.Name
	p.Password = doc.Password
	p.MaxPlayers = doc.MaxPlayers
	p.MinLevel = doc.MinLevel
	p.Mode = mode
	p.Queue = queue
	p.Rounds = doc.Rounds
	p.Maps = doc.Maps
	p.StrikeCount = doc.StrikeCount
	p.StrikeTime = time.Duration(doc.StrikeTimeSec) * time.Second
	p.TeamSize = doc.TeamSize
	p.TeamNum = doc.TeamNum
	p.FFAMin = doc.FFAMin
	p.FFAMax = doc.FFAMax
	p.IdleTime = time.Duration(doc.IdleTimeSec) * time.Second
	p.PickTime = time.Duration(doc.PickTimeSec) * time.Second
	p.ReadyTime = time.Duration(doc.ReadyTimeSec) * time.Second
	p.GameTime = time.Duration(doc.GameTimeSec) * time.Second
	p.Headless = doc.Headless
	p.Unlisted = doc.Unlisted
	p.LeaderboardAbbreviation = doc.LeaderboardAbbreviation
	return p, nil
}

// leaderboardDoc mirrors spec §6's "Leaderboard settings" TOML shape.
type leaderboardDoc struct {
	Name               string  `mapstructure:"name"`
	Abbreviation       string  `mapstructure:"abbreviation"`
	Algorithm          string  `mapstructure:"algorithm"`
	MeanRating         float64 `mapstructure:"mean_rating"`
	RatingScale        float64 `mapstructure:"rating_scale"`
	UnratedDeviation   float64 `mapstructure:"unrated_deviation"`
	DeviationPerDay    float64 `mapstructure:"deviation_per_day"`
	ConservativeRating float64 `mapstructure:"cre"`
	Channel            int64   `mapstructure:"channel"`
	MatchChannel       int64   `mapstructure:"match_channel"`
}

// LoadLeaderboardSettings reads one leaderboard-settings TOML document.
func LoadLeaderboardSettings(path string) (leaderboard.Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("algorithm", "OpenSkill")
	v.SetDefault("cre", 0)

	if err := v.ReadInConfig(); err != nil {
		return leaderboard.Settings{}, fmt.Errorf("config: read leaderboard settings %s: %w", path, err)
	}

	var doc leaderboardDoc
	if err := v.Unmarshal(&doc); err != nil {
		return leaderboard.Settings{}, fmt.Errorf("config: decode leaderboard settings %s: %w", path, err)
	}
	if doc.Algorithm != "" && doc.Algorithm != string(leaderboard.AlgorithmOpenSkill) {
		return leaderboard.Settings{}, fmt.Errorf("config: unsupported leaderboard algorithm %q", doc.Algorithm)
	}

	return leaderboard.Settings{
		Name:               doc.Name,
		Abbreviation:       doc.Abbreviation,
		Algorithm:          leaderboard.AlgorithmOpenSkill,
		MeanRating:         doc.MeanRating,
		RatingScale:        doc.RatingScale,
		UnratedDeviation:   doc.UnratedDeviation,
		DeviationPerDay:    doc.DeviationPerDay,
		ConservativeRating: doc.ConservativeRating,
		Channel:            doc.Channel,
		MatchChannel:       doc.MatchChannel,
	}, nil
}

func normalizeKey(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, byte(r))
	}
	return string(out)
}
