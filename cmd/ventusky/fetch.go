package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFetchCommand() *cobra.Command {
	var output string
	var flagKeys map[string]string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the ventusky page of a position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, flagKeys)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			service, err := newService(cfg, log)
			if err != nil {
				return err
			}
			url := service.ForecastURL(cfg.Location.Latitude, cfg.Location.Longitude)
			fmt.Fprintf(cmd.OutOrStdout(), "Fetching %s ...\n", url)

			document, err := service.FetchHTML(cmd.Context(), cfg.Location.Latitude, cfg.Location.Longitude)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, []byte(document), 0o644); err != nil {
				return fmt.Errorf("failed writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s (%d bytes)\n", output, len(document))
			return nil
		},
	}
	flagKeys = positionFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "test.html", "output file")
	return cmd
}
