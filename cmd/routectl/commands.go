package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/reliefroute/backend/internal/ai"
	"github.com/reliefroute/backend/internal/app"
	"github.com/reliefroute/backend/internal/config"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Store != config.StorePostgres {
				return errors.New("migrate needs STORE=postgres")
			}
			_, closeStore, err := app.OpenStore(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer closeStore()
			c.logger.Info().Msg("schema up to date")
			return nil
		},
	}
}

func (c *cli) recomputeWeightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-weights",
		Short: "Learn a new weight vector from recent feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			w, updated, err := a.Weights.Recompute(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"weights": w, "updated": updated})
		},
	}
}

func (c *cli) recomputeReliabilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-reliability",
		Short: "Rebuild responder reliability from resolved feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Recomputer.Reliability.Recompute(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
}

func (c *cli) anomaliesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Score recent requests for spam and duplicates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			a, err := c.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			flags, err := a.Anomalies.Detect(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "how many recent requests to scan (0 uses ANOMALY_WINDOW)")
	return cmd
}

func (c *cli) classifyCmd() *cobra.Command {
	var in ai.Input
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a request without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Combined() == "" {
				return errors.New("provide at least one of --text, --ocr, --transcript")
			}
			a, err := c.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return printJSON(cmd.OutOrStdout(), a.Processing.Classify(cmd.Context(), in))
		},
	}
	cmd.Flags().StringVar(&in.Text, "text", "", "message text")
	cmd.Flags().StringVar(&in.OCRText, "ocr", "", "text recognised from an image")
	cmd.Flags().StringVar(&in.Transcript, "transcript", "", "voice transcript")
	return cmd
}
