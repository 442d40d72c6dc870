package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	lenient    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "rowfilter",
		Short:         "Filter table rows with rules like '(foo AND ~bar) OR baz'",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel == "" {
				return nil
			}
			return setLogLevel(opts.logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data", "data", "Path to data directory for caching")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides the config file)")
	cmd.PersistentFlags().BoolVar(&opts.lenient, "lenient", false, "Degrade malformed rules instead of rejecting them")

	cmd.AddCommand(
		newMatchCmd(opts),
		newExplainCmd(opts),
		newQueryCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

func setLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

func main() {
	log.SetOutput(os.Stderr)

	if err := newRootCmd().Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
