package commands

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/logging"
)

// Global CLI flags
var (
	// ConfigPath is the YAML config file (default ~/.hakichain/config.yaml)
	ConfigPath string

	// OutputFormat controls output format: "" (auto) or "json"
	OutputFormat string

	// Mock forces in-memory contracts regardless of config
	Mock bool
)

// loadConfig loads configuration and applies the logging section.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPathOrDefault())
	if err != nil {
		return nil, err
	}
	if Mock {
		cfg.Chain.Mock = true
	}

	// CLI output goes to stdout; logs stay on stderr.
	logging.Setup(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	return cfg, nil
}

func configPathOrDefault() string {
	if ConfigPath != "" {
		return ConfigPath
	}
	return config.DefaultConfigPath()
}

// loadConfigQuiet loads config, returning defaults on error.
func loadConfigQuiet() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

func jsonOutput() bool {
	return OutputFormat == "json"
}

func ValidateOutputFormat() error {
	switch OutputFormat {
	case "", "json":
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want json)", OutputFormat)
	}
}

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// GetVersion returns the version string
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

// GetCommit returns the git commit
func GetCommit() string {
	if Commit != "unknown" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				if len(setting.Value) > 8 {
					return setting.Value[:8]
				}
				return setting.Value
			}
		}
	}
	return "unknown"
}

func GetGoVersion() string {
	return runtime.Version()
}
