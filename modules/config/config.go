package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FromYamlFile reads the yaml file at path into out.
func FromYamlFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, out)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}
