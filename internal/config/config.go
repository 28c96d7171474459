package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ImagePath  string `yaml:"image"`
	Mountpoint string `yaml:"mountpoint"`
	AllowOther bool   `yaml:"allow_other"`
	ReadOnly   bool   `yaml:"read_only"`
	LogLevel   string `yaml:"log_level"`
}

func Load() *Config {
	return &Config{
		ImagePath:  getEnv("WFS_IMAGE", ""),
		Mountpoint: getEnv("WFS_MOUNTPOINT", ""),
		AllowOther: getEnvBool("WFS_ALLOW_OTHER", false),
		ReadOnly:   getEnvBool("WFS_READONLY", false),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

// MergeFile overlays settings from a YAML file onto the config. Fields
// absent from the file keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		v := strings.ToLower(value)
		return v == "true" || v == "1" || v == "yes"
	}
	return defaultValue
}
