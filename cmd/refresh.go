package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var refreshAddr string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Clear the spot cache of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 10 * time.Second}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, refreshAddr+"/spots/refresh", nil)
		if err != nil {
			return eris.Wrap(err, "create refresh request")
		}

		resp, err := client.Do(req)
		if err != nil {
			return eris.Wrap(err, "call refresh endpoint")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("refresh: unexpected status %d", resp.StatusCode)
		}

		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return eris.Wrap(err, "decode refresh response")
		}

		fmt.Println(body.Message)
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshAddr, "addr", "http://localhost:8000", "base address of the running server")
	rootCmd.AddCommand(refreshCmd)
}
