// Package config loads and saves the agent configuration.
//
// The config lives at ~/.fieldscan/config.json. Values can be overridden
// at runtime via FIELDSCAN_* environment variables, e.g.
// FIELDSCAN_BACKEND_URL or FIELDSCAN_DATABASE_PATH.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the fieldscan agent.
type Config struct {
	Backend   BackendConfig   `json:"backend"   mapstructure:"backend"`
	Project   ProjectConfig   `json:"project"   mapstructure:"project"`
	Database  DatabaseConfig  `json:"database"  mapstructure:"database"`
	Storage   StorageConfig   `json:"storage"   mapstructure:"storage"`
	Sync      SyncConfig      `json:"sync"      mapstructure:"sync"`
	RiskModel RiskModelConfig `json:"riskmodel" mapstructure:"riskmodel"`
	Notify    NotifyConfig    `json:"notify"    mapstructure:"notify"`
}

// BackendConfig describes the remote inspection backend.
type BackendConfig struct {
	URL         string `json:"url"          mapstructure:"url"`
	APIKey      string `json:"api_key"      mapstructure:"api_key"`
	AgentKey    string `json:"agent_key"    mapstructure:"agent_key"`
	DisplayName string `json:"display_name" mapstructure:"display_name"`
	Enabled     bool   `json:"enabled"      mapstructure:"enabled"`
}

// ProjectConfig identifies the project and inspector recorded on events.
type ProjectConfig struct {
	Code      string `json:"code"      mapstructure:"code"`
	Inspector string `json:"inspector" mapstructure:"inspector"`
}

// DatabaseConfig selects the local relational store.
// Driver is "sqlite3" (default, file under the agent home) or "mysql"
// for crews sharing one store on a site server.
type DatabaseConfig struct {
	Driver string `json:"driver" mapstructure:"driver"`
	Path   string `json:"path"   mapstructure:"path"` // sqlite file path
	DSN    string `json:"dsn"    mapstructure:"dsn"`  // mysql DSN
}

// StorageConfig controls where event media is kept on disk.
type StorageConfig struct {
	EventsDir string `json:"events_dir" mapstructure:"events_dir"`
}

// SyncConfig controls upload behaviour.
type SyncConfig struct {
	Schedule    string `json:"schedule"     mapstructure:"schedule"` // cron spec for --watch
	MaxAttempts int    `json:"max_attempts" mapstructure:"max_attempts"`
	PollSeconds int    `json:"poll_seconds" mapstructure:"poll_seconds"`
}

// RiskModelConfig controls where the risk matrix comes from.
type RiskModelConfig struct {
	CachePath string `json:"cache_path" mapstructure:"cache_path"`
	Offline   bool   `json:"offline"    mapstructure:"offline"` // never hit the backend
}

// NotifyConfig selects the channels told about sync outcomes. Channels
// with no credentials configured stay silent.
type NotifyConfig struct {
	MinPriority string   `json:"min_priority" mapstructure:"min_priority"` // least urgent priority to notify on, e.g. "P2"
	Events      []string `json:"events"       mapstructure:"events"`       // event types to send (empty = defaults)

	Slack    SlackNotifyConfig    `json:"slack"    mapstructure:"slack"`
	Telegram TelegramNotifyConfig `json:"telegram" mapstructure:"telegram"`
	Email    EmailNotifyConfig    `json:"email"    mapstructure:"email"`
	Webhook  WebhookNotifyConfig  `json:"webhook"  mapstructure:"webhook"`
}

// SlackNotifyConfig points at a Slack incoming webhook.
type SlackNotifyConfig struct {
	WebhookURL string `json:"webhook_url" mapstructure:"webhook_url"`
}

// TelegramNotifyConfig drives the Telegram Bot API.
type TelegramNotifyConfig struct {
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
	ChatID   string `json:"chat_id"   mapstructure:"chat_id"`
}

// EmailNotifyConfig drives SMTP delivery.
type EmailNotifyConfig struct {
	SMTPHost string `json:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort int    `json:"smtp_port" mapstructure:"smtp_port"`
	Username string `json:"username"  mapstructure:"username"`
	Password string `json:"password"  mapstructure:"password"`
	From     string `json:"from"      mapstructure:"from"`
	To       string `json:"to"        mapstructure:"to"`
	UseTLS   bool   `json:"use_tls"   mapstructure:"use_tls"`
}

// WebhookNotifyConfig posts to a generic HTTP endpoint, optionally
// signing the payload with HMAC-SHA256.
type WebhookNotifyConfig struct {
	URL    string `json:"url"    mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// HomeDir returns the agent home directory (~/.fieldscan).
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".fieldscan"), nil
}

// ConfigPath resolves the effective config file path. An explicit path
// wins; otherwise the default under the agent home is used.
func ConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureDir creates the agent home and its media directory.
func EnsureDir() error {
	dir, err := HomeDir()
	if err != nil {
		return err
	}
	for _, d := range []string{dir, filepath.Join(dir, "events")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}

// Load reads the config file and applies environment overrides.
// A missing file yields a config with defaults applied, so first-run
// commands work before 'fieldscan onboard' has been completed.
func Load(explicit string) (*Config, error) {
	path, err := ConfigPath(explicit)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("FIELDSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults are registered on the viper instance so AutomaticEnv can
	// resolve FIELDSCAN_* variables even for keys absent from the file.
	home, _ := HomeDir()
	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; anything else (bad JSON, permissions) is not.
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config as indented JSON, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// setDefaults populates viper with out-of-the-box values. Every key the
// agent reads is registered here, which is what lets AutomaticEnv pick
// up FIELDSCAN_* overrides on a fresh install.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.agent_key", "")
	v.SetDefault("backend.display_name", "")
	v.SetDefault("backend.enabled", false)

	v.SetDefault("project.code", "")
	v.SetDefault("project.inspector", "")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")

	v.SetDefault("sync.schedule", "@every 15m")
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.poll_seconds", 2)

	v.SetDefault("riskmodel.offline", false)

	v.SetDefault("notify.min_priority", "")
	v.SetDefault("notify.events", []string{})
	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.email.smtp_host", "")
	v.SetDefault("notify.email.smtp_port", 0)
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.to", "")
	v.SetDefault("notify.email.use_tls", false)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")

	if home != "" {
		v.SetDefault("database.path", filepath.Join(home, "fieldscan.db"))
		v.SetDefault("storage.events_dir", filepath.Join(home, "events"))
		v.SetDefault("riskmodel.cache_path", filepath.Join(home, "risk-matrix.yaml"))
	}
}
