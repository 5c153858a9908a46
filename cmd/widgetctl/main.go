// Command widgetctl hosts text widgets in a document and pushes events to
// running hosts.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/toolink/widgets/config"
)

const appName = "widgetctl"

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Host and drive widgets",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to the YAML config")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level")
	rootCmd.AddCommand(renderCmd, serveCmd, pushCmd)
}

// loadConfig reads --config, or returns the defaults when it is not set,
// and configures logging from it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		var err error
		if cfg, err = config.Load(flagConfig); err != nil {
			return nil, err
		}
	}
	setupLogging(cfg.Level())
	return cfg, nil
}

func setupLogging(level zerolog.Level) {
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg(appName + " failed")
		os.Exit(1)
	}
}
