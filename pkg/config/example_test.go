package config_test

import (
	"fmt"

	"github.com/wonny/hedgefund/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Engine mode: %s\n", cfg.Engine.Mode)
	fmt.Printf("Default model: %s (%s)\n", cfg.Defaults.ModelName, cfg.Defaults.ModelProvider)
}
