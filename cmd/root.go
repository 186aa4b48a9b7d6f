package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/agrishikyo-relay/internal/app"
	"github.com/JakeFAU/agrishikyo-relay/internal/config"
	"github.com/JakeFAU/agrishikyo-relay/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory; tests replace it.
var newApp = func(cfgFile string, opts app.Options) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger, opts)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "agrishikyo",
		Short: "Relays netアグリ市況 wholesale prices to Slack.",
		Long: `agrishikyo signs in to the netアグリ市況 market-data site with headless Chrome,
extracts the per-kilogram average prices of selected commodities for the
major city markets and posts them as one Slack message.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["skipApp"] == "true" {
				return nil
			}
			appInstance, err := newApp(cfgFile, app.Options{DryRun: dryRun, Out: cmd.OutOrStdout()})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml, /etc/agrishikyo or $HOME/.agrishikyo)")

	run := newRunCmd()
	run.Flags().BoolVar(&dryRun, "dry-run", false, "print the table instead of posting it to Slack")
	cmd.AddCommand(run, newScheduleCmd(), newVersionCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		// The app logger may not exist yet when config loading failed.
		logger, lerr := logging.New(false)
		if lerr != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
