package main

import (
	"github.com/spf13/cobra"

	"github.com/kalambet/neron/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration from the environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("%v", err)
			return err
		}

		printSuccess("Configuration valid")
		printStatus("Server", "%s on port %d", cfg.Server.Name, cfg.Server.Port)
		printStatus("Issuer", "%s", cfg.Server.Issuer())
		printStatus("Embedding model", "%s (%d dims)", cfg.Voyage.Model, cfg.Voyage.Dimension)
		printStatus("Database", "%s@%s:%d/%s", cfg.DB.User, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
		printStatus("Pool", "%d-%d connections", cfg.DB.MinConns, cfg.DB.MaxConns)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
}
