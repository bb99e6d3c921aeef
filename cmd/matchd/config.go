package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the process-wide flags, bound through viper the way
// Seednode-partybox's Config does: pflag for CLI surface, viper for
// MATCHD_-prefixed environment overrides.
type Config struct {
	adminBind   string
	bridgeURL   string
	dbPath      string
	dialTimeout time.Duration
	verbose     bool
}

func newRootCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MATCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "matchd",
		Short:         "Room Controller and Leaderboard Service supervisor.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := root.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVar(&cfg.adminBind, "admin-bind", "127.0.0.1:8090", "admin HTTP listen/target address (env: MATCHD_ADMIN_BIND)")
	fs.StringVar(&cfg.dbPath, "db", "matchd.sqlite3", "path to the sqlite database (env: MATCHD_DB)")
	fs.StringVar(&cfg.bridgeURL, "bridge-url", "ws://127.0.0.1:9001/bridge", "websocket URL of the game-host bridge (env: MATCHD_BRIDGE_URL)")
	fs.DurationVar(&cfg.dialTimeout, "dial-timeout", 10*time.Second, "timeout dialing the game-host bridge (env: MATCHD_DIAL_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: MATCHD_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})

	// Copy MATCHD_* environment values onto flags not given on the command
	// line, so cfg sees them.
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		fs.VisitAll(func(f *pflag.Flag) {
			if err == nil && !f.Changed && v.IsSet(f.Name) {
				err = f.Value.Set(v.GetString(f.Name))
			}
		})
		return err
	}

	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newOpenCmd(cfg))
	root.AddCommand(newCloseAllCmd(cfg))
	root.AddCommand(newForceCloseAllCmd(cfg))

	root.CompletionOptions.HiddenDefaultCmd = true
	return root
}
