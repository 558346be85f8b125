package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agri-identity/agrigate/internal/bootstrap"
	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/version"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signalContext()
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var registryFile string

	// loadConfig reads the environment and applies flag overrides.
	loadConfig := func() *config.Config {
		cfg := config.Load()
		if registryFile != "" {
			cfg.ServiceRegistryFile = registryFile
		}
		logger.Init(logger.Config{
			Env:         cfg.LogEnv,
			Level:       cfg.LogLevel,
			ServiceName: "agrigate",
			Version:     version.GetVersion(),
		})
		return cfg
	}

	root := &cobra.Command{
		Use:           "agrigate",
		Short:         "Consent and authorization service for the farmer identity portal",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&registryFile, "registry", "",
		"service registry YAML (overrides SERVICE_REGISTRY_FILE)")

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the consent server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			defer func() { _ = logger.Sync() }()

			if err := bootstrap.Run(cmd.Context(), cfg); err != nil {
				logger.L().Error("server failed", logger.Err(err))
				return err
			}
			return nil
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the service registry into the database and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			defer func() { _ = logger.Sync() }()

			n, err := bootstrap.Seed(cmd.Context(), cfg)
			if err != nil {
				logger.L().Error("seed failed", logger.Err(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d services\n", n)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			version.Fprint(cmd.OutOrStdout())
		},
	}

	root.AddCommand(serverCmd, seedCmd, versionCmd)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM, which aborts startup
// and seeding. Once serving, graceful handles the signals.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
