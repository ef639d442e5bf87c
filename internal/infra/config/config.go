package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".lockpad"
	envPrefix  = "LOCKPAD"
)

type Config struct {
	Devices   DevicesConfig   `mapstructure:"devices"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Cloud     CloudConfig     `mapstructure:"cloud"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Expiry    ExpiryConfig    `mapstructure:"expiry"`
	Lock      LockConfig      `mapstructure:"lock"`
	Link      LinkConfig      `mapstructure:"link"`
	Advertise AdvertiseConfig `mapstructure:"advertise"`
	Log       LoggerConfig    `mapstructure:"log"`
	Trace     TracerConfig    `mapstructure:"trace"`
}

type DevicesConfig struct {
	Path string `mapstructure:"path"`
}

type SecretsConfig struct {
	Path string `mapstructure:"path"`
	// Backend is one of "chain" (pass with file fallback), "pass" or "file".
	Backend string `mapstructure:"backend"`
}

type CloudConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	TokenPath      string        `mapstructure:"token_path"`
	LockPath       string        `mapstructure:"lock_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LockTimeout    time.Duration `mapstructure:"lock_timeout"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

type ExpiryConfig struct {
	Threshold       time.Duration `mapstructure:"threshold"`
	Interval        time.Duration `mapstructure:"interval"`
	AssemblyTimeout time.Duration `mapstructure:"assembly_timeout"`
}

type LockConfig struct {
	Workers    int     `mapstructure:"workers"`
	QueueSize  int     `mapstructure:"queue_size"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
}

type LinkConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type AdvertiseConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	LocalName string `mapstructure:"local_name"`
	CompanyID uint16 `mapstructure:"company_id"`
	// Data is the hex-encoded manufacturer payload.
	Data string `mapstructure:"data"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type TracerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
}

// Dir returns the directory holding config.toml and the default data files.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(homeDir, configDir), nil
}

// Load reads config.toml from the lockpad config directory (or the file set
// with v.SetConfigFile), applies LOCKPAD_* environment overrides and fills
// every unset key with its default. A missing config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, dir)

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("devices.path", filepath.Join(dir, "devices.toml"))
	v.SetDefault("secrets.path", filepath.Join(dir, "secrets"))
	v.SetDefault("secrets.backend", "chain")

	v.SetDefault("cloud.base_url", "http://localhost:8080")
	v.SetDefault("cloud.token_path", "/api/devices/request")
	v.SetDefault("cloud.lock_path", "/api/rcu/lock/")
	v.SetDefault("cloud.request_timeout", 30*time.Second)
	v.SetDefault("cloud.lock_timeout", 11*time.Second)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)
	v.SetDefault("breaker.interval", 60*time.Second)

	v.SetDefault("expiry.threshold", 20*time.Second)
	v.SetDefault("expiry.interval", time.Second)
	v.SetDefault("expiry.assembly_timeout", 30*time.Second)

	v.SetDefault("lock.workers", 2)
	v.SetDefault("lock.queue_size", 16)
	v.SetDefault("lock.rate_per_sec", 5.0)

	v.SetDefault("link.listen_addr", "127.0.0.1:7420")

	v.SetDefault("advertise.enabled", true)
	v.SetDefault("advertise.local_name", "Xiaomi")
	v.SetDefault("advertise.company_id", 0xFFFF)
	v.SetDefault("advertise.data", "038f")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.exporter", "stdout")
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Devices.Path) == "" {
		errs = append(errs, errors.New("devices.path is required"))
	}
	switch c.Secrets.Backend {
	case "chain", "pass", "file":
	default:
		errs = append(errs, fmt.Errorf("secrets.backend %q is not one of chain, pass, file", c.Secrets.Backend))
	}
	if c.Expiry.Threshold <= 0 {
		errs = append(errs, errors.New("expiry.threshold must be positive"))
	}
	if c.Expiry.Interval <= 0 {
		errs = append(errs, errors.New("expiry.interval must be positive"))
	}
	if c.Expiry.AssemblyTimeout < 0 {
		errs = append(errs, errors.New("expiry.assembly_timeout must not be negative"))
	}
	if c.Lock.Workers <= 0 {
		errs = append(errs, errors.New("lock.workers must be positive"))
	}
	if c.Lock.QueueSize <= 0 {
		errs = append(errs, errors.New("lock.queue_size must be positive"))
	}
	if c.Lock.RatePerSec < 0 {
		errs = append(errs, errors.New("lock.rate_per_sec must not be negative"))
	}
	if strings.TrimSpace(c.Link.ListenAddr) == "" {
		errs = append(errs, errors.New("link.listen_addr is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}
