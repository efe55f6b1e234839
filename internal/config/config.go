package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Outlook   OutlookConfig   `yaml:"outlook" mapstructure:"outlook"`
	Epicor    EpicorConfig    `yaml:"epicor" mapstructure:"epicor"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ledger    LedgerConfig    `yaml:"ledger" mapstructure:"ledger"`
	Poll      PollConfig      `yaml:"poll" mapstructure:"poll"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// OutlookConfig holds Microsoft Graph credentials and mailbox settings.
type OutlookConfig struct {
	TenantID     string `yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	MailboxID    string `yaml:"mailbox_id" mapstructure:"mailbox_id"`
	Folder       string `yaml:"folder" mapstructure:"folder"`
	CCRecipient  string `yaml:"cc_recipient" mapstructure:"cc_recipient"`
}

// EpicorConfig holds Epicor Kinetic REST API settings.
type EpicorConfig struct {
	Server         string  `yaml:"server" mapstructure:"server"`
	Instance       string  `yaml:"instance" mapstructure:"instance"`
	VendorInstance string  `yaml:"vendor_instance" mapstructure:"vendor_instance"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	Username       string  `yaml:"username" mapstructure:"username"`
	Password       string  `yaml:"password" mapstructure:"password"`
	Company        string  `yaml:"company" mapstructure:"company"`
	ChannelID      string  `yaml:"channel_id" mapstructure:"channel_id"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds AI oracle settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	ClassifyModel string `yaml:"classify_model" mapstructure:"classify_model"`
	ExtractModel  string `yaml:"extract_model" mapstructure:"extract_model"`
	MaxTokens     int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LedgerConfig configures the processed-message ledger.
type LedgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PollConfig configures the mailbox polling loop.
type PollConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
	PageSize     int `yaml:"page_size" mapstructure:"page_size"`
}

// PipelineConfig configures per-message processing behavior.
type PipelineConfig struct {
	AutoCommit             bool `yaml:"auto_commit" mapstructure:"auto_commit"`
	CommitVendorConfidence int  `yaml:"commit_vendor_confidence" mapstructure:"commit_vendor_confidence"`
}

// ServerConfig configures the embedded read-through HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APINBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credentials default to empty so their env keys bind.
	v.SetDefault("outlook.tenant_id", "")
	v.SetDefault("outlook.client_id", "")
	v.SetDefault("outlook.client_secret", "")
	v.SetDefault("outlook.mailbox_id", "")
	v.SetDefault("outlook.cc_recipient", "")
	v.SetDefault("epicor.server", "")
	v.SetDefault("epicor.instance", "")
	v.SetDefault("epicor.api_key", "")
	v.SetDefault("epicor.username", "")
	v.SetDefault("epicor.password", "")
	v.SetDefault("epicor.channel_id", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 5000)
	v.SetDefault("outlook.folder", "inbox")
	v.SetDefault("epicor.company", "SAINC")
	v.SetDefault("epicor.vendor_instance", "KineticLive")
	v.SetDefault("epicor.rate_limit", 5.0)
	v.SetDefault("anthropic.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.extract_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("ledger.path", "ap-inbox.db")
	v.SetDefault("poll.interval_secs", 60)
	v.SetDefault("poll.page_size", 10)
	v.SetDefault("pipeline.auto_commit", false)
	v.SetDefault("pipeline.commit_vendor_confidence", 90)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
