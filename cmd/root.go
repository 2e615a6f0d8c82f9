package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	notifycmd "github.com/tphakala/quack-go/cmd/notify"
	"github.com/tphakala/quack-go/cmd/serve"
	settingscmd "github.com/tphakala/quack-go/cmd/settings"
	synccmd "github.com/tphakala/quack-go/cmd/sync"
	"github.com/tphakala/quack-go/cmd/today"
	"github.com/tphakala/quack-go/cmd/version"
	"github.com/tphakala/quack-go/internal/app"
	"github.com/tphakala/quack-go/internal/buildinfo"
	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	rt := &app.Runtime{Build: build}
	var configFile string
	var debug bool
	var central *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "quack",
		Short:         "quack-go duck catalog engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&rt.ServerOverride, "server", "", "Server base address for this run, not persisted")

	rootCmd.AddCommand(
		serve.Command(rt),
		synccmd.Command(rt),
		today.Command(rt),
		settingscmd.Command(rt),
		notifycmd.Command(rt),
		version.Command(rt),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := conf.Load(conf.LoadOptions{
			ConfigFile: configFile,
			Flags:      cmd.Flags(),
		})
		if err != nil {
			return err
		}
		rt.Settings = settings

		central, err = logger.NewCentralLogger(&settings.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logger.SetGlobal(central)

		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if central != nil {
			return central.Close()
		}
		return nil
	}

	return rootCmd
}
