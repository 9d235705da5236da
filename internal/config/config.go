package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/enrichtable/internal/archive"
)

// Config holds the full application configuration.
type Config struct {
	Producer    ProducerConfig    `yaml:"producer" mapstructure:"producer"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	Session     SessionConfig     `yaml:"session" mapstructure:"session"`
	Archive     archive.Config    `yaml:"archive" mapstructure:"archive"`
	Notion      NotionConfig      `yaml:"notion" mapstructure:"notion"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// ProducerConfig locates the enrichment producer service.
type ProducerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CredentialsConfig holds the third-party capability keys forwarded to the
// producer as request metadata.
type CredentialsConfig struct {
	FirecrawlKey  string `yaml:"firecrawl_key" mapstructure:"firecrawl_key"`
	PerplexityKey string `yaml:"perplexity_key" mapstructure:"perplexity_key"`
}

// SessionConfig tunes stream consumption.
type SessionConfig struct {
	IdleTimeoutSecs  int  `yaml:"idle_timeout_secs" mapstructure:"idle_timeout_secs"`
	QueryTimeoutSecs int  `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	UseAgents        bool `yaml:"use_agents" mapstructure:"use_agents"`
}

// NotionConfig holds optional Notion field-registry settings.
type NotionConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	FieldDB string `yaml:"field_db" mapstructure:"field_db"`
}

// ServerConfig configures the stub producer server.
type ServerConfig struct {
	Port       int `yaml:"port" mapstructure:"port"`
	RowDelayMS int `yaml:"row_delay_ms" mapstructure:"row_delay_ms"`
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
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("producer.base_url", "http://localhost:8080")
	v.SetDefault("session.idle_timeout_secs", 900)
	v.SetDefault("session.query_timeout_secs", 120)
	v.SetDefault("session.use_agents", false)
	v.SetDefault("archive.driver", "sqlite")
	v.SetDefault("archive.path", "enrichtable.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.row_delay_ms", 400)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the configuration required for a given run mode. Modes:
// "run" and "ask" need a reachable producer and a usable archive; "serve"
// needs a valid listen port.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run", "ask":
		if c.Producer.BaseURL == "" {
			problems = append(problems, "producer.base_url is required")
		}
		problems = append(problems, c.archiveProblems()...)
		if c.Session.IdleTimeoutSecs <= 0 {
			problems = append(problems, "session.idle_timeout_secs must be > 0")
		}
		if c.Session.QueryTimeoutSecs <= 0 {
			problems = append(problems, "session.query_timeout_secs must be > 0")
		}
	case "export", "runs":
		problems = append(problems, c.archiveProblems()...)
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RowDelayMS < 0 {
			problems = append(problems, "server.row_delay_ms must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) archiveProblems() []string {
	switch c.Archive.Driver {
	case "", "sqlite":
		return nil
	case "postgres":
		if c.Archive.DatabaseURL == "" {
			return []string{"archive.database_url is required for the postgres driver"}
		}
		return nil
	default:
		return []string{"archive.driver must be sqlite or postgres"}
	}
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
