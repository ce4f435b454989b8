// Package config loads the YAML service configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"irisapi/logging"
)

type Config struct {
	Http struct {
		Port         int           `yaml:"port"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Model struct {
		Type      string `yaml:"type"`
		Path      string `yaml:"path"`
		EagerLoad bool   `yaml:"eager_load"`
		Watch     bool   `yaml:"watch"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"model"`
	Training struct {
		DataPath     string  `yaml:"data_path"`
		TestRatio    float64 `yaml:"test_ratio"`
		Seed         int64   `yaml:"seed"`
		MaxIter      int     `yaml:"max_iter"`
		LearningRate float64 `yaml:"learning_rate"`
		MaxTreeDepth int     `yaml:"max_tree_depth"`
		MetricsPath  string  `yaml:"metrics_path"`
	} `yaml:"training"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log logging.Config `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Http.Port = 5000
	c.Http.Timeout = 30 * time.Second
	c.Http.MaxBodyBytes = 1 << 20
	c.Model.Type = "logistic_regression"
	c.Model.Path = "models/iris_logistic_regression_model.json"
	c.Model.Watch = true
	c.Model.CacheSize = 1024
	c.Training.TestRatio = 0.2
	c.Training.Seed = 42
	c.Training.MaxIter = 500
	c.Training.LearningRate = 0.5
	c.Training.MaxTreeDepth = 5
	c.Training.MetricsPath = "metrics.txt"
	c.Database.Path = "data/training.db"
	c.Log.Level = "info"
	c.Log.Format = "console"
	return &c
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Model.CacheSize < 0 {
		return errors.New("model.cache_size must not be negative")
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		return fmt.Errorf("training.test_ratio %v must be in (0, 1)", c.Training.TestRatio)
	}
	return nil
}
