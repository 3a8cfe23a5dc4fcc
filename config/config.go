package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/hubfold/tokend/token"
)

// Config is the configuration for the tokend server.
type Config struct {
	LogLevel           string `hcl:"log_level,optional"`
	LogFormat          string `hcl:"log_format,optional"`
	LogFile            string `hcl:"log_file,optional"`
	LogRotationPeriod  int    `hcl:"log_rotation_period,optional"`
	LogRotateMegabytes int    `hcl:"log_rotate_megabytes,optional"`
	LogRotateMaxFiles  int    `hcl:"log_rotate_max_files,optional"`

	Listeners []ListenerBlock `hcl:"listener,block"`
	Storage   *StorageBlock   `hcl:"storage,block"`
	Tokens    *TokensBlock    `hcl:"tokens,block"`
	Audit     *AuditBlock     `hcl:"audit,block"`
}

// AuditBlock enables the audit trail of token lifecycle operations
type AuditBlock struct {
	Path       string `hcl:"path"`
	MaxSizeMB  int    `hcl:"max_size_megabytes,optional"`
	MaxAgeDays int    `hcl:"max_age_days,optional"`
	MaxBackups int    `hcl:"max_backups,optional"`
}

type StorageBlock struct {
	Type string `hcl:"type,label"` // "inmem" or "file"

	// File storage specific config
	Path string `hcl:"path,optional"`
}

// Config returns the storage configuration as a map
func (s *StorageBlock) Config() map[string]string {
	config := make(map[string]string)
	config["type"] = s.Type
	if s.Path != "" {
		config["path"] = s.Path
	}
	return config
}

// TokensBlock tunes the token lifecycle. Durations accept the forms
// parseutil understands: bare seconds or suffixed values like "60s"
// and "24h".
type TokensBlock struct {
	InstanceSecret string `hcl:"instance_secret"`

	SessionLifetime   string `hcl:"session_lifetime,optional"`
	RememberLifetime  string `hcl:"remember_lifetime,optional"`
	WipeLifetime      string `hcl:"wipe_lifetime,optional"`
	PermanentLifetime string `hcl:"permanent_lifetime,optional"`
	ActivityDebounce  string `hcl:"activity_debounce,optional"`
	SweepInterval     string `hcl:"sweep_interval,optional"`

	KeyBits                int   `hcl:"key_bits,optional"`
	StoreEncryptedPassword *bool `hcl:"store_encrypted_password,optional"`
	CacheSize              int64 `hcl:"cache_size,optional"`
	DisableMetrics         bool  `hcl:"disable_metrics,optional"`
}

// TokenConfig converts the block into a token.Config, starting from
// the defaults and overriding only what the file sets.
func (t *TokensBlock) TokenConfig() (*token.Config, error) {
	cfg := token.DefaultConfig()
	if t == nil {
		return cfg, nil
	}

	cfg.InstanceSecret = t.InstanceSecret

	if t.SessionLifetime != "" {
		d, err := parseutil.ParseDurationSecond(t.SessionLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid session_lifetime: %w", err)
		}
		cfg.SessionLifetime = d
	}
	if t.RememberLifetime != "" {
		d, err := parseutil.ParseDurationSecond(t.RememberLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid remember_lifetime: %w", err)
		}
		cfg.RememberLifetime = d
	}
	if t.WipeLifetime != "" {
		d, err := parseutil.ParseDurationSecond(t.WipeLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid wipe_lifetime: %w", err)
		}
		cfg.WipeLifetime = d
	}
	if t.PermanentLifetime != "" {
		d, err := parseutil.ParseDurationSecond(t.PermanentLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid permanent_lifetime: %w", err)
		}
		cfg.PermanentLifetime = d
	}
	if t.ActivityDebounce != "" {
		d, err := parseutil.ParseDurationSecond(t.ActivityDebounce)
		if err != nil {
			return nil, fmt.Errorf("invalid activity_debounce: %w", err)
		}
		cfg.ActivityDebounce = d
	}

	if t.KeyBits != 0 {
		cfg.KeyBits = t.KeyBits
	}
	if t.StoreEncryptedPassword != nil {
		cfg.StoreEncryptedPassword = *t.StoreEncryptedPassword
	}
	if t.CacheSize != 0 {
		cfg.CacheSize = t.CacheSize
	}
	cfg.EnableMetrics = !t.DisableMetrics

	return cfg, nil
}

// SweepIntervalDuration parses the janitor interval. Zero means use
// the built-in default.
func (t *TokensBlock) SweepIntervalDuration() (time.Duration, error) {
	if t == nil || t.SweepInterval == "" {
		return 0, nil
	}
	d, err := parseutil.ParseDurationSecond(t.SweepInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid sweep_interval: %w", err)
	}
	return d, nil
}

type ListenerBlock struct {
	Name            string `hcl:"name,label"`
	Protocol        string `hcl:"protocol"`
	Address         string `hcl:"address"`
	TLSCertFile     string `hcl:"tls_cert_file,optional"`
	TLSKeyFile      string `hcl:"tls_key_file,optional"`
	TLSClientCAFile string `hcl:"tls_client_ca_file,optional"`
	TLSEnabled      bool   `hcl:"tls_enabled,optional"`
}

func LoadConfig(configFile string) (*Config, error) {
	var config Config

	err := hclsimple.DecodeFile(configFile, nil, &config)
	if err != nil {
		return nil, err
	}
	if config.Tokens == nil || config.Tokens.InstanceSecret == "" {
		return nil, fmt.Errorf("tokens block with instance_secret is required")
	}
	return &config, nil
}

// GetListenerByName returns a listener by its name (label)
func (c *Config) GetListenerByName(name string) (*ListenerBlock, error) {
	for _, listener := range c.Listeners {
		if listener.Name == name {
			return &listener, nil
		}
	}
	return nil, fmt.Errorf("listener '%s' not found", name)
}

// GetApiListener is a convenience method to get the api listener
func (c *Config) GetApiListener() (*ListenerBlock, error) {
	return c.GetListenerByName("api")
}
