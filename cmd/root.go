package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fieldscan",
	Short: "Field inspection agent: record site events offline, sync them later",
	Long: `fieldscan is a field-inspection agent. It records inspection events
(location, description, photos, audio, risk assessment, structural defect
details) into a local store, then packages and uploads them to your
inspection backend when you have connectivity.

Get started:
  fieldscan onboard    Interactive setup wizard
  fieldscan doctor     Verify storage, database, and backend connectivity
  fieldscan event new  Record a new inspection event
  fieldscan risk       Run the risk assessment wizard for an event
  fieldscan sync       Upload pending events to the backend
  fieldscan ui         Launch the terminal dashboard`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.fieldscan/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		onboardCmd,
		eventCmd,
		riskCmd,
		defectCmd,
		attachCmd,
		matrixCmd,
		syncCmd,
		uiCmd,
		configCmd,
		doctorCmd,
		registerCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
