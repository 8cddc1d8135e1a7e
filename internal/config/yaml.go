package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// configPath finds the YAML file from -c/-config, falling back to CONFIG_PATH.
func configPath(args []string, getenv func(string) string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		for _, name := range []string{"-c", "--c", "-config", "--config"} {
			if arg == name && i+1 < len(args) {
				return args[i+1]
			}
			if v, ok := strings.CutPrefix(arg, name+"="); ok {
				return v
			}
		}
	}
	return getenv("CONFIG_PATH")
}

// parseYAML overlays the keys present in the file; absent keys keep their
// current value.
func parseYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
