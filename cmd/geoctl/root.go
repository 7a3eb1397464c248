package main

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/order-geo-service/internal/config"
	"github.com/couchcryptid/order-geo-service/internal/observability"
	"github.com/couchcryptid/order-geo-service/internal/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// env is the state shared by subcommands, set up before each run.
var env struct {
	cfg    *config.Config
	logger *slog.Logger
	svc    *service.Components
}

var rootCmd = &cobra.Command{
	Use:   "geoctl",
	Short: "Resolve delivery addresses and estimate order ETAs",
	Long: `
geoctl runs addresses through the LocationIQ, OpenCage and Nominatim cascade
and computes delivery or pickup time estimates. Configuration is read from the
environment (and a local .env file) exactly as geod reads it.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		env.cfg = cfg
		env.logger = observability.NewLogger(cfg)

		env.svc, err = service.Build(contextOf(cmd), cfg, observability.NewMetrics(), env.logger)
		return err
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if env.svc == nil {
			return nil
		}
		return env.svc.Close()
	},
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(geocodeCmd, geocodeFileCmd, estimateCmd)
}
