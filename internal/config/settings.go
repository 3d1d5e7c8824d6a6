package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"honeypress/internal/support"
)

type Config struct {
	Detection DetectionConfig `json:"detection"`
	Reporting ReportingConfig `json:"reporting"`
	Retention RetentionConfig `json:"retention"`
	Whitelist WhitelistConfig `json:"whitelist"`
	Network   NetworkConfig   `json:"network"`
}

type DetectionConfig struct {
	LogRatePerMinute int   `json:"log_rate_per_minute"`
	PostDataMaxBytes int   `json:"post_data_max_bytes"`
	BodyLimitBytes   int64 `json:"body_limit_bytes"`
}

type ReportingConfig struct {
	APIURL                string `json:"api_url"`
	APIKey                string `json:"api_key"`
	APIKeyHeader          string `json:"api_key_header"`
	ReportsPerMinute      int    `json:"reports_per_minute"`
	BatchSize             int    `json:"batch_size"`
	ConnectTimeoutSeconds uint32 `json:"connect_timeout_seconds"`
	TimeoutSeconds        uint32 `json:"timeout_seconds"`
	BackoffBaseSeconds    uint32 `json:"backoff_base_seconds"`
	BackoffMaxSeconds     uint32 `json:"backoff_max_seconds"`
	DiagnosticLog         string `json:"diagnostic_log"`
	DiagnosticLogMaxBytes int64  `json:"diagnostic_log_max_bytes"`
	QueueTimer            Timer  `json:"queue_timer"`
}

type RetentionConfig struct {
	Days         int   `json:"days"`
	CleanupTimer Timer `json:"cleanup_timer"`
}

type WhitelistConfig struct {
	RefreshTimer Timer `json:"refresh_timer"`
}

type NetworkConfig struct {
	TrustedProxies []string `json:"trusted_proxies"`
	CDNHeader      string   `json:"cdn_header"`
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

const (
	DefaultSettingsPath = "data/settings.json"

	envSettingsPath   = "SETTINGS_PATH"
	envAPIKey         = "REPORT_API_KEY"
	envAPIURL         = "REPORT_API_URL"
	envTrustedProxies = "TRUSTED_PROXIES"
)

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue  atomic.Value
	settingsPath atomic.Value
	configMu     sync.Mutex

	listenerMu     sync.Mutex
	listeners      []changeListener
	nextListenerID int
)

type changeListener struct {
	id int
	fn func(Config)
}

func init() {
	cfg, err := DefaultConfig()
	if err != nil {
		cfg = Config{}
	}
	configValue.Store(cfg)
	settingsPath.Store(DefaultSettingsPath)
}

// DefaultConfig decodes the embedded default settings.
func DefaultConfig() (Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode defaults: %w", err)
	}
	return cfg, nil
}

// SettingsPath returns SETTINGS_PATH or the default location.
func SettingsPath() string {
	return support.GetEnv(envSettingsPath, DefaultSettingsPath)
}

// ReadSettings loads path, writing the embedded defaults there first when the
// file does not exist. Keys missing from the file keep their default values.
// REPORT_API_KEY, REPORT_API_URL and TRUSTED_PROXIES override the file.
func ReadSettings(path string) error {
	if path == "" {
		path = DefaultSettingsPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: read settings: %w", err)
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if err := writeFile(path, defaultConfig); err != nil {
			return err
		}
		data = defaultConfig
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("config: decode settings: %w", err)
	}

	settingsPath.Store(path)
	if err := applyConfigUpdate(applyEnvOverrides(cfg), configUpdateOptions{source: "file"}); err != nil {
		return err
	}

	log.Debug("Settings file loaded successfully", "path", path)
	return nil
}

// SetConfig applies newConfig, persists it to the settings file and
// publishes it to other instances when Redis sync is enabled.
func SetConfig(newConfig Config) error {
	return applyConfigUpdate(newConfig, configUpdateOptions{persistToFile: true, broadcast: true, source: "local"})
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

// OnChange registers fn to receive every configuration applied from the
// settings file, SetConfig or Redis. The returned func unregisters it.
func OnChange(fn func(Config)) func() {
	listenerMu.Lock()
	defer listenerMu.Unlock()

	nextListenerID++
	id := nextListenerID
	listeners = append(listeners, changeListener{id: id, fn: fn})

	return func() {
		listenerMu.Lock()
		defer listenerMu.Unlock()
		for i, l := range listeners {
			if l.id == id {
				listeners = append(listeners[:i:i], listeners[i+1:]...)
				return
			}
		}
	}
}

func notifyListeners(cfg Config) {
	listenerMu.Lock()
	current := append([]changeListener(nil), listeners...)
	listenerMu.Unlock()

	for _, l := range current {
		l.fn(cfg)
	}
}

func applyEnvOverrides(cfg Config) Config {
	if key := strings.TrimSpace(support.GetEnv(envAPIKey, "")); key != "" {
		cfg.Reporting.APIKey = key
	}
	if url := strings.TrimSpace(support.GetEnv(envAPIURL, "")); url != "" {
		cfg.Reporting.APIURL = url
	}
	if proxies := support.GetEnvList(envTrustedProxies); len(proxies) > 0 {
		cfg.Network.TrustedProxies = proxies
	}
	return cfg
}

type configUpdateOptions struct {
	persistToFile bool
	broadcast     bool
	source        string
}

func applyConfigUpdate(newConfig Config, opts configUpdateOptions) error {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)
	SetBetweenTime()
	notifyListeners(newConfig)

	var errs []error

	if opts.persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			errs = append(errs, fmt.Errorf("config: encode settings: %w", err))
		} else if err := writeFile(settingsPath.Load().(string), data); err != nil {
			errs = append(errs, err)
		}
	}

	if opts.broadcast {
		payload, err := json.Marshal(newConfig)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: encode broadcast: %w", err))
		} else if err := broadcastConfigUpdate(payload); err != nil {
			errs = append(errs, fmt.Errorf("config: broadcast: %w", err))
		}
	}

	log.Debug("Configuration applied", "source", opts.source)
	return errors.Join(errs...)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write settings: %w", err)
	}
	return nil
}

var ErrInvalidSetting = errors.New("config: invalid setting")

// Validate rejects limits that would stop detection or reporting outright.
func (c Config) Validate() error {
	switch {
	case c.Detection.LogRatePerMinute <= 0:
		return fmt.Errorf("%w: detection.log_rate_per_minute must be positive", ErrInvalidSetting)
	case c.Detection.PostDataMaxBytes <= 0:
		return fmt.Errorf("%w: detection.post_data_max_bytes must be positive", ErrInvalidSetting)
	case c.Detection.BodyLimitBytes <= 0:
		return fmt.Errorf("%w: detection.body_limit_bytes must be positive", ErrInvalidSetting)
	case c.Reporting.ReportsPerMinute <= 0:
		return fmt.Errorf("%w: reporting.reports_per_minute must be positive", ErrInvalidSetting)
	case c.Reporting.BatchSize <= 0:
		return fmt.Errorf("%w: reporting.batch_size must be positive", ErrInvalidSetting)
	case c.Retention.Days <= 0:
		return fmt.Errorf("%w: retention.days must be positive", ErrInvalidSetting)
	}
	return nil
}

// Seconds converts a whole-second setting to a duration.
func Seconds(n uint32) time.Duration {
	return time.Duration(n) * time.Second
}
