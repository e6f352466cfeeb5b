// Package config содержит логику чтения конфигурации консоли партнёра.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации консоли партнёра.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	PortalAPIAddress string `env:"PORTAL_API_ADDRESS"`
	StateFile        string `env:"STATE_FILE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Непустые переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envPortalAddress := cfg.PortalAPIAddress
	envStateFile := cfg.StateFile

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for the console HTTP server")
	flag.StringVar(&cfg.PortalAPIAddress, "p", "", "portal API base address")
	flag.StringVar(&cfg.StateFile, "s", "console-state.json", "path to the credential state file")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envPortalAddress != "" {
		cfg.PortalAPIAddress = envPortalAddress
	}
	if envStateFile != "" {
		cfg.StateFile = envStateFile
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.StateFile == "" {
		cfg.StateFile = "console-state.json"
	}

	return cfg, nil
}
