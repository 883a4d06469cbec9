package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reliefroute/backend/internal/app"
	"github.com/reliefroute/backend/internal/config"
	"github.com/reliefroute/backend/internal/logging"
)

type cli struct {
	v      *viper.Viper
	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "routectl",
		Short: "Operator tasks for the relief routing backend",
		Long: `routectl runs maintenance tasks against the same store the server uses:
schema migration, learning recomputes, anomaly scans and ad-hoc classification.

Settings come from .env and the environment; flags override both.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.String("database-url", "", "Postgres connection string (DATABASE_URL)")
	flags.String("store", "", "postgres or memory (STORE)")
	flags.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	_ = c.v.BindPFlag("DATABASE_URL", flags.Lookup("database-url"))
	_ = c.v.BindPFlag("STORE", flags.Lookup("store"))
	_ = c.v.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))

	root.AddCommand(
		c.migrateCmd(),
		c.recomputeWeightsCmd(),
		c.recomputeReliabilityCmd(),
		c.anomaliesCmd(),
		c.classifyCmd(),
	)
	return root
}

func (c *cli) load(logOut io.Writer) error {
	c.v.SetConfigFile(".env")
	c.v.SetConfigType("env")
	c.v.AutomaticEnv()
	_ = c.v.ReadInConfig()

	cfg, err := config.FromViper(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.NewWithWriter(logOut, cfg.LogLevel, "routectl")
	return nil
}

func (c *cli) build(ctx context.Context) (*app.App, error) {
	return app.Build(ctx, c.cfg, c.logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
