package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aulemarouille/green-spots-back/internal/cache"
	"github.com/aulemarouille/green-spots-back/internal/spots"
	"github.com/aulemarouille/green-spots-back/internal/staticdata"
	"github.com/aulemarouille/green-spots-back/pkg/datagouv"
)

var fetchJSON bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one aggregation pass and print the result",
	Long:  "Fetches charging stations and static spots once, bypassing any long-lived server, and prints a summary. Useful to check datasets and the upstream API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := datagouv.New(datagouv.Options{
			BaseURL:     cfg.DataGouv.BaseURL,
			Timeout:     cfg.DataGouv.Timeout(),
			Departments: cfg.DataGouv.Departments,
			Workers:     cfg.DataGouv.Workers,
			PageSize:    cfg.DataGouv.PageSize,
		})
		defer client.Close()

		svc := spots.NewService(
			client,
			staticdata.NewLoader(cfg.Static.DataDir),
			cache.NewMemory(),
			cfg.Cache.TTL(),
		)

		resp := svc.GetAllSpots(cmd.Context())

		if fetchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		if resp.Error != "" {
			fmt.Printf("aggregation failed: %s\n", resp.Error)
			return nil
		}

		fmt.Printf("%d spots in %s\n", resp.TotalCount, resp.Region)
		for _, typ := range resp.Types {
			fmt.Printf("  %-20s %d\n", typ, resp.TypeCounts[typ])
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the full response as JSON")
	rootCmd.AddCommand(fetchCmd)
}
