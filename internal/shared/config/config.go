package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"gopkg.in/ini.v1"

	"liuproxy_checker/internal/shared/types"
)

const (
	// IniFileName 是行为配置文件的文件名。
	IniFileName = "checker.ini"

	// xdgSubdir is the directory looked up under the XDG config home.
	xdgSubdir = "liuproxy_checker"
)

// ErrConfigNotFound is returned when no config directory holds checker.ini.
var ErrConfigNotFound = errors.New("configuration file not found")

// Default returns a config populated with the built-in defaults.
func Default() *types.Config {
	return &types.Config{
		CommonConf: types.CommonConf{Workers: 32},
		CheckerConf: types.CheckerConf{
			EchoURL:               "http://httpbin.org/ip",
			GeoURL:                "http://ip-api.com/json",
			ConnectTimeoutSeconds: 10,
			GeoTimeoutSeconds:     5,
			PublishIntervalMillis: 100,
			PublishMode:           "poll",
		},
		WebConf:     types.WebConf{WebPort: 8090},
		LogConf:     types.LogConf{Level: "info"},
		StorageConf: types.StorageConf{ProxiesFile: "proxies.txt"},
	}
}

// LoadIni 加载 checker.ini 行为配置文件，覆盖 cfg 中已有的默认值。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnvInt(&cfg.CommonConf.Workers, "CHECKER_WORKERS")
	overrideFromEnvInt(&cfg.WebConf.WebPort, "CHECKER_WEB_PORT")
	return validate(cfg)
}

// Load resolves the config directory, then reads checker.ini from it.
// A missing file is not an error: defaults (plus env overrides) are used.
func Load(configDir string) (*types.Config, string, error) {
	cfg := Default()
	dir, err := FindConfigDir(configDir)
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, "", err
		}
		overrideFromEnvInt(&cfg.CommonConf.Workers, "CHECKER_WORKERS")
		overrideFromEnvInt(&cfg.WebConf.WebPort, "CHECKER_WEB_PORT")
		return cfg, configDir, nil
	}
	if err := LoadIni(cfg, filepath.Join(dir, IniFileName)); err != nil {
		return nil, "", fmt.Errorf("failed to load %s: %w", IniFileName, err)
	}
	return cfg, dir, nil
}

// FindConfigDir searches for checker.ini in the following order:
// the explicit directory, ./configs, then $XDG_CONFIG_HOME/liuproxy_checker.
func FindConfigDir(configDir string) (string, error) {
	if configDir != "" {
		if _, err := os.Stat(filepath.Join(configDir, IniFileName)); err != nil {
			if os.IsNotExist(err) {
				return "", ErrConfigNotFound
			}
			return "", err
		}
		return configDir, nil
	}

	if _, err := os.Stat(filepath.Join("configs", IniFileName)); err == nil {
		return "configs", nil
	}

	if p, err := xdg.SearchConfigFile(filepath.Join(xdgSubdir, IniFileName)); err == nil {
		return filepath.Dir(p), nil
	}
	return "", ErrConfigNotFound
}

func validate(cfg *types.Config) error {
	if cfg.Workers < 0 {
		return fmt.Errorf("common.workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.ConnectTimeoutSeconds <= 0 || cfg.GeoTimeoutSeconds <= 0 {
		return fmt.Errorf("checker timeouts must be positive")
	}
	if cfg.PublishIntervalMillis <= 0 {
		return fmt.Errorf("checker.publish_interval_ms must be positive")
	}
	switch cfg.PublishMode {
	case "poll", "notify":
	default:
		return fmt.Errorf("unknown checker.publish_mode %q", cfg.PublishMode)
	}
	return nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
