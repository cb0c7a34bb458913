package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/roemer/goventusky"
	"github.com/spf13/cobra"
)

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [page.html] [weather.json]",
		Short: "Parse a saved ventusky page into JSON",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, output := "test.html", "weather.json"
			if len(args) > 0 {
				input = args[0]
			}
			if len(args) > 1 {
				output = args[1]
			}

			document, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed reading %s: %w", input, err)
			}
			result, err := ventusky.Parse(string(document))
			if err != nil {
				return err
			}

			data, err := encodeResult(result)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed writing %s: %w", output, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parsed %d days → %s\n", len(result.Forecast), output)
			fmt.Fprintf(out, "Location: %s\n", result.Location)
			if len(result.Forecast) > 0 {
				fmt.Fprintf(out, "Date range: %s to %s\n", result.Forecast[0].Date, result.Forecast[len(result.Forecast)-1].Date)
			}
			return nil
		},
	}
}

func newForecastCommand() *cobra.Command {
	var flagKeys map[string]string

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Fetch and parse the forecast of a position and print it as JSON",
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
			closeRedis, err := addRedisCache(service, cfg)
			if err != nil {
				return err
			}
			defer closeRedis()

			result, err := service.Forecast(cmd.Context(), cfg.Location.Latitude, cfg.Location.Longitude)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), result)
		},
	}
	flagKeys = positionFlags(cmd)
	return cmd
}

// encodeResult renders the result as indented JSON, keeping non-ASCII text readable.
func encodeResult(result *ventusky.ForecastResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeResult(&buf, result); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeResult(w io.Writer, result *ventusky.ForecastResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed encoding the forecast: %w", err)
	}
	return nil
}
