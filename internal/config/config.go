package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Roles      RolesConfig      `yaml:"roles" mapstructure:"roles"`
	Seed       SeedConfig       `yaml:"seed" mapstructure:"seed"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects where player records live.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	Path           string `yaml:"path" mapstructure:"path"`
	Locale         string `yaml:"locale" mapstructure:"locale"`
	BackupExisting bool   `yaml:"backup_existing" mapstructure:"backup_existing"`
	WriteBOM       bool   `yaml:"write_bom" mapstructure:"write_bom"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchConfig configures request pacing, failure handling and the document
// strategy.
type FetchConfig struct {
	TimeoutSecs          int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinDelayMS           int      `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	DelayIncrementMS     int      `yaml:"delay_increment_ms" mapstructure:"delay_increment_ms"`
	MaxDelayMS           int      `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	BackoffEvery         int      `yaml:"backoff_every" mapstructure:"backoff_every"`
	UserAgents           []string `yaml:"user_agents" mapstructure:"user_agents"`
	MaxAttempts          int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffMS       int      `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	MaxRetryBackoffMS    int      `yaml:"max_retry_backoff_ms" mapstructure:"max_retry_backoff_ms"`
	MaxConsecutiveErrors int      `yaml:"max_consecutive_errors" mapstructure:"max_consecutive_errors"`
	ErrorCooldownSecs    int      `yaml:"error_cooldown_secs" mapstructure:"error_cooldown_secs"`
	RejectWhenOpen       bool     `yaml:"reject_when_open" mapstructure:"reject_when_open"`
	// FixtureDir serves documents from disk instead of the network.
	FixtureDir string `yaml:"fixture_dir" mapstructure:"fixture_dir"`
}

// SourceConfig configures one upstream source.
type SourceConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Name    string `yaml:"name" mapstructure:"name"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SourcesConfig lists the sources in lookup order.
type SourcesConfig struct {
	Infobox  SourceConfig `yaml:"infobox" mapstructure:"infobox"`
	Wikitext SourceConfig `yaml:"wikitext" mapstructure:"wikitext"`
	RoleHint SourceConfig `yaml:"role_hint" mapstructure:"role_hint"`
}

// ValidationConfig holds the domain rules. An empty nationality list means
// the built-in reference set.
type ValidationConfig struct {
	MinIdentityLen int      `yaml:"min_identity_len" mapstructure:"min_identity_len"`
	MaxIdentityLen int      `yaml:"max_identity_len" mapstructure:"max_identity_len"`
	MinAge         int      `yaml:"min_age" mapstructure:"min_age"`
	MaxAge         int      `yaml:"max_age" mapstructure:"max_age"`
	Nationalities  []string `yaml:"nationalities" mapstructure:"nationalities"`
}

// RolesConfig configures the curated role fallback. An empty path means the
// embedded table.
type RolesConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// SeedConfig names the identity list for a sync pass.
type SeedConfig struct {
	Path    string   `yaml:"path" mapstructure:"path"`
	Players []string `yaml:"players" mapstructure:"players"`
}

// ReportConfig configures the statistics report.
type ReportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	TopN int    `yaml:"top_n" mapstructure:"top_n"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures post-pass alerts. An empty webhook URL
// disables delivery.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinProcessed         int     `yaml:"min_processed" mapstructure:"min_processed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing precedence.
func Load() (*Config, error) {
	// .env fills the process environment without overriding it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.path", "output/players.csv")
	v.SetDefault("store.locale", "")
	v.SetDefault("store.backup_existing", true)
	v.SetDefault("store.write_bom", false)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.min_delay_ms", 1000)
	v.SetDefault("fetch.delay_increment_ms", 100)
	v.SetDefault("fetch.max_delay_ms", 2000)
	v.SetDefault("fetch.backoff_every", 50)
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.max_attempts", 1)
	v.SetDefault("fetch.retry_backoff_ms", 5000)
	v.SetDefault("fetch.max_retry_backoff_ms", 60000)
	v.SetDefault("fetch.max_consecutive_errors", 10)
	v.SetDefault("fetch.error_cooldown_secs", 60)
	v.SetDefault("fetch.reject_when_open", false)
	v.SetDefault("fetch.fixture_dir", "")
	v.SetDefault("sources.infobox.enabled", true)
	v.SetDefault("sources.infobox.name", "liquipedia")
	v.SetDefault("sources.infobox.base_url", "https://liquipedia.net/counterstrike")
	v.SetDefault("sources.wikitext.enabled", true)
	v.SetDefault("sources.wikitext.name", "liquipedia_api")
	v.SetDefault("sources.wikitext.base_url", "https://liquipedia.net/counterstrike/api.php")
	v.SetDefault("sources.role_hint.enabled", true)
	v.SetDefault("sources.role_hint.name", "hltv")
	v.SetDefault("sources.role_hint.base_url", "https://www.hltv.org/stats/players")
	v.SetDefault("validation.min_identity_len", 2)
	v.SetDefault("validation.max_identity_len", 20)
	v.SetDefault("validation.min_age", 15)
	v.SetDefault("validation.max_age", 50)
	v.SetDefault("validation.nationalities", []string{})
	v.SetDefault("roles.enabled", true)
	v.SetDefault("roles.table_path", "")
	v.SetDefault("seed.path", "")
	v.SetDefault("seed.players", []string{})
	v.SetDefault("report.path", "output/statistics_report.txt")
	v.SetDefault("report.top_n", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_processed", 5)
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

var (
	knownDrivers = map[string]bool{"csv": true, "sqlite": true, "postgres": true}
	knownLocales = map[string]bool{"": true, "en": true, "zh": true}
)

// Validate checks that the settings a command mode needs are usable.
// Modes: "sync", "serve", "read".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "sync", "serve", "read":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.validateStore()...)

	if mode == "sync" {
		errs = append(errs, c.validateFetch()...)

		if c.Validation.MinIdentityLen < 1 {
			errs = append(errs, "validation.min_identity_len must be >= 1")
		}
		if c.Validation.MaxIdentityLen < c.Validation.MinIdentityLen {
			errs = append(errs, "validation.max_identity_len must be >= min_identity_len")
		}
		if c.Validation.MinAge > c.Validation.MaxAge {
			errs = append(errs, "validation.min_age must be <= max_age")
		}
		if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if c.Report.TopN < 1 {
		errs = append(errs, "report.top_n must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	driver := strings.ToLower(c.Store.Driver)
	if !knownDrivers[driver] {
		errs = append(errs, "store.driver must be one of csv, sqlite, postgres")
	}
	if !knownLocales[strings.ToLower(c.Store.Locale)] {
		errs = append(errs, "store.locale must be en or zh")
	}
	switch driver {
	case "csv", "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	return errs
}

func (c *Config) validateFetch() []string {
	var errs []string
	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MinDelayMS < 0 {
		errs = append(errs, "fetch.min_delay_ms must be >= 0")
	}
	if c.Fetch.MaxDelayMS < c.Fetch.MinDelayMS {
		errs = append(errs, "fetch.max_delay_ms must be >= fetch.min_delay_ms")
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, "fetch.max_attempts must be >= 1")
	}
	if !c.Sources.Infobox.Enabled && !c.Sources.Wikitext.Enabled {
		errs = append(errs, "sources: at least one of infobox or wikitext must be enabled")
	}
	return errs
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
