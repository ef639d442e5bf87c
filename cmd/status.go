package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/lockpad/internal/adapters/radio/link"
	statusadapter "github.com/bnema/lockpad/internal/adapters/render/status"
	"github.com/bnema/lockpad/internal/application"
)

func newStatusCmd(app *app) *cobra.Command {
	var (
		addr       string
		asJSON     bool
		staleAfter time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running peripheral",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = app.cfg.Link.ListenAddr
			}

			status, err := link.FetchStatus(cmd.Context(), app.httpClient, addr)
			if err != nil {
				return err
			}

			return writeStatusOutput(cmd, app, status, staleAfter, asJSON)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Peripheral address (defaults to link.listen_addr)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 5*time.Second, "Flag snapshots older than this as stale")

	return cmd
}

func writeStatusOutput(cmd *cobra.Command, app *app, status application.Status, staleAfter time.Duration, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	rendered, err := app.statusRenderer(status, statusadapter.RenderOptions{
		Now:        app.now(),
		StaleAfter: staleAfter,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
