package main

import (
	"fmt"

	"github.com/jihwankim/ce-driver/pkg/config"
)

// loadConfig loads the configuration file named by --config, falling
// back to config.DefaultConfig()'s defaults when no file is present;
// CLI flags are applied on top of whatever this returns.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
