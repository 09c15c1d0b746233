package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/starsweep/internal/config"
	"github.com/nao1215/starsweep/internal/log"
	"github.com/spf13/cobra"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig builds the configuration shared by every command: defaults,
// then the configuration file, then .env and the environment, then the
// global flags. Command-specific flags are applied by the caller.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configPath

	// An explicit path must exist; the implicit lookup may find nothing.
	found := config.FindConfigFile(configPath)
	switch {
	case found != "":
		file, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		cfg.ApplyFile(file)
	case configPath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	config.LoadDotEnv()
	cfg.ApplyEnv(os.LookupEnv)

	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.SetDataDir(dataDir)
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// setupLogger creates the redacting logger and installs it as the default.
func setupLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
	if asJSON, err := cmd.Flags().GetBool("log-json"); err == nil && asJSON {
		logger = log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	slog.SetDefault(logger)
	return logger
}
