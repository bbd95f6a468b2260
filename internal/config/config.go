package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"BulletinDispatch/internal/infrastructure/storage"
)

const (
	configPathEnv     = "BULLETIN_DISPATCH_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	smtpHostEnv       = "SMTP_HOST"
	smtpPortEnv       = "SMTP_PORT"
	smtpUsernameEnv   = "SMTP_USERNAME"
	smtpPasswordEnv   = "SMTP_PASSWORD"
	smtpFromEnv       = "SMTP_FROM"
	artifactDirEnv    = "ARTIFACT_DIR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Artifacts     ArtifactConfig     `yaml:"artifacts"`
	Mail          MailConfig         `yaml:"mail"`
	Report        ReportConfig       `yaml:"report"`
	Dispatch      DispatchConfig     `yaml:"dispatch"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig sets the slog level (error, warn, info, debug).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig selects the bulletin store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ArtifactConfig points at the directory generated reports are written to.
type ArtifactConfig struct {
	Dir string `yaml:"dir"`
}

// MailConfig describes the SMTP submission account.
type MailConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	FromName string        `yaml:"fromName"`
	Timeout  time.Duration `yaml:"timeout"`
	TLS      string        `yaml:"tls"`
}

// Configured reports whether enough is set to attempt a send.
func (m MailConfig) Configured() bool {
	return m.Host != "" && m.From != ""
}

// ReportConfig controls report rendering. FontRegular/FontBold point at a
// TTF pair for scripts the embedded font does not cover.
type ReportConfig struct {
	Locale      string `yaml:"locale"`
	Title       string `yaml:"title"`
	FontRegular string `yaml:"fontRegular"`
	FontBold    string `yaml:"fontBold"`
}

// DispatchConfig bounds group-level concurrency for both jobs.
type DispatchConfig struct {
	Workers int `yaml:"workers"`
}

// NotificationConfig encapsulates outbound operator channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate checks settings every job needs. Mail is checked by the
// dispatcher itself so generation can run without an SMTP account.
func (c Config) Validate() error {
	if _, err := storage.NormalizeDriver(c.Database.Driver); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database dsn is empty")
	}
	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		return fmt.Errorf("config: artifact dir is empty")
	}
	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("config: dispatch workers must be positive, got %d", c.Dispatch.Workers)
	}
	switch strings.ToLower(c.Mail.TLS) {
	case "", "starttls", "ssl":
	default:
		return fmt.Errorf("config: unknown mail tls mode %q", c.Mail.TLS)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(smtpHostEnv); v != "" {
		c.Mail.Host = v
	}

	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err != nil {
			log.Printf("config: ignoring %s=%q: %v", smtpPortEnv, v, err)
		} else {
			c.Mail.Port = port
		}
	}

	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.Mail.Username = v
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Mail.Password = v
	}

	if v := os.Getenv(smtpFromEnv); v != "" {
		c.Mail.From = v
	}

	if v := os.Getenv(artifactDirEnv); v != "" {
		c.Artifacts.Dir = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Artifacts.Dir != "" {
		base.Artifacts.Dir = override.Artifacts.Dir
	}

	if override.Mail.Host != "" {
		base.Mail.Host = override.Mail.Host
	}
	if override.Mail.Port != 0 {
		base.Mail.Port = override.Mail.Port
	}
	if override.Mail.Username != "" {
		base.Mail.Username = override.Mail.Username
	}
	if override.Mail.Password != "" {
		base.Mail.Password = override.Mail.Password
	}
	if override.Mail.From != "" {
		base.Mail.From = override.Mail.From
	}
	if override.Mail.FromName != "" {
		base.Mail.FromName = override.Mail.FromName
	}
	if override.Mail.Timeout != 0 {
		base.Mail.Timeout = override.Mail.Timeout
	}
	if override.Mail.TLS != "" {
		base.Mail.TLS = override.Mail.TLS
	}

	if override.Report.Locale != "" {
		base.Report.Locale = override.Report.Locale
	}
	if override.Report.Title != "" {
		base.Report.Title = override.Report.Title
	}
	if override.Report.FontRegular != "" {
		base.Report.FontRegular = override.Report.FontRegular
	}
	if override.Report.FontBold != "" {
		base.Report.FontBold = override.Report.FontBold
	}

	if override.Dispatch.Workers != 0 {
		base.Dispatch.Workers = override.Dispatch.Workers
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "bulletins.db"},
		Artifacts: ArtifactConfig{Dir: "reports"},
		Mail: MailConfig{
			Port:    587,
			Timeout: 30 * time.Second,
			TLS:     "starttls",
		},
		Report:   ReportConfig{Locale: "es"},
		Dispatch: DispatchConfig{Workers: 4},
	}
}
