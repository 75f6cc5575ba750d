package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML config file format: a flat list of
// top-level settings rather than nested per-origin config, since this
// tool drives one client-side pipeline rather than proxying for many
// origins.
type Config struct {
	Requests []string      `yaml:"requests"`
	Journal  JournalConfig `yaml:"journal"`
	Store    StoreConfig   `yaml:"store"`
	MaxSize  int64         `yaml:"maxSize"`
	Shared   bool          `yaml:"shared"`
}

type JournalConfig struct {
	// Kind is one of "memory" (default), "binary", or "sqlite".
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

type StoreConfig struct {
	// Kind is one of "memory" (default) or "fs".
	Kind     string `yaml:"kind"`
	Root     string `yaml:"root"`
	Compress bool   `yaml:"compress"`
}

func loadConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
