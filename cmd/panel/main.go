package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nyanpass/panel/internal/app"
	"github.com/nyanpass/panel/internal/config"
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := newRootCmd().ExecuteContext(ctx); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// cliState is shared by every subcommand.
type cliState struct {
	configPath string
	appCfg     config.AppConfig
}

func newRootCmd() *cobra.Command {
	state := &cliState{}
	root := &cobra.Command{
		Use:           "panel",
		Short:         "NyanPass billing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, errEnv := config.LoadFromEnv()
			if errEnv != nil {
				return errEnv
			}
			if strings.TrimSpace(state.configPath) != "" {
				appCfg.ConfigPath = config.ResolveConfigPath(state.configPath)
			}
			state.appCfg = appCfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&state.configPath, "config", "c", "", "config file path (or env CONFIG_PATH)")

	root.AddCommand(
		newServeCmd(state),
		newMigrateCmd(state),
		newAdminCmd(state),
		newCodesCmd(state),
		newCouponsCmd(state),
	)
	return root
}

func newServeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, expiry sweeper and settings watcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunServer(cmd.Context(), state.appCfg)
		},
	}
}

func newMigrateCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if errMigrate := app.Migrate(cmd.Context(), state.appCfg); errMigrate != nil {
				return errMigrate
			}
			cmd.Println("migration complete")
			return nil
		},
	}
}
