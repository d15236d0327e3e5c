// Package cmd wires the command line: serve runs the API, migrate manages
// the database schema.
package cmd

import (
	"writingstuff/config"
	"writingstuff/pkg/logger"

	"github.com/spf13/cobra"
)

var cfgPath string

func Execute() error {
	root := &cobra.Command{
		Use:           "writingstuff",
		Short:         "Document editing and PDF analysis backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is env only)")

	root.AddCommand(serveCMD(), migrateCMD())
	return root.Execute()
}

// loadConfig reads the configuration and initialises the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}
