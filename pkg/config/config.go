// Package config loads the daemon's ambient configuration file,
// batchrunner.yaml, the layer the distilled spec omits: where the state
// file and log root live, and the default Settings values a fresh
// snapshot starts with.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Eddy3D-Dev/Eddy3D-BatchRunner/pkg/logging"
)

// Config is the daemon's top-level configuration, loaded from
// batchrunner.yaml in the daemon's working directory (or a path given on
// the command line).
type Config struct {
	StatePath           string `yaml:"state_path"`
	LogRoot             string `yaml:"log_root"`
	AutoRetryFailedJobs bool   `yaml:"auto_retry_failed_jobs"`
	ShowConsoleWindow   bool   `yaml:"show_console_window"`
	ListenAddr          string `yaml:"listen_addr"`
	CertsDir            string `yaml:"certs_dir"`
	Debug               bool   `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		StatePath:           "batchrunner_state.json",
		LogRoot:             "logs",
		AutoRetryFailedJobs: false,
		ShowConsoleWindow:   false,
		ListenAddr:          "",
		CertsDir:            "",
		Debug:               false,
	}
}

// Load reads path and overlays it on Default(). A missing file is not an
// error: the daemon runs with defaults, matching the teacher's general
// preference for best-effort ambient setup over hard failures on missing
// optional files.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Debugf("config: no config file at %s, using defaults", path)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	if !filepath.IsAbs(cfg.StatePath) {
		cfg.StatePath = filepath.Join(filepath.Dir(path), cfg.StatePath)
	}
	if !filepath.IsAbs(cfg.LogRoot) {
		cfg.LogRoot = filepath.Join(filepath.Dir(path), cfg.LogRoot)
	}

	return cfg, nil
}
