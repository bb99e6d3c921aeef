package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sgr-room/matchd/internal/config"
)

func newOpenCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "open <room-parameters.toml>",
		Short: "Open a room from a TOML parameters document.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := config.LoadRoomParameters(args[0])
			if err != nil {
				return err
			}
			body, err := json.Marshal(params)
			if err != nil {
				return err
			}
			resp, err := http.Post(fmt.Sprintf("http://%s/rooms", cfg.adminBind), "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("open room: admin returned %s", resp.Status)
			}
			var out struct{ ID string }
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			fmt.Println(out.ID)
			return nil
		},
	}
}

func newCloseAllCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "close-all",
		Short: "Gracefully close every open room.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAdmin(cfg, "/rooms/close-all")
		},
	}
}

func newForceCloseAllCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "force-close-all",
		Short: "Immediately close every open room.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAdmin(cfg, "/rooms/force-close-all")
		},
	}
}

func postAdmin(cfg *Config, path string) error {
	resp, err := http.Post(fmt.Sprintf("http://%s%s", cfg.adminBind, path), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: admin returned %s", path, resp.Status)
	}
	return nil
}
