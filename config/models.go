package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Queue     QueueConfig     `mapstructure:"queue"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Jira      JiraConfig      `mapstructure:"jira"`
	RepoTools RepoToolsConfig `mapstructure:"repotools"`
	App       AppConfig       `mapstructure:"app"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// Validate ensures required fields are present.
func (c Config) Validate() error {
	if c.Server.Port == 0 {
		return errors.New("server.port is required")
	}
	switch c.Queue.Backend {
	case "postgres":
		if c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.DBName == "" {
			return errors.New("postgres credentials are required")
		}
		if c.Postgres.Host == "" {
			return errors.New("postgres.host is required")
		}
	case "memory":
	default:
		return fmt.Errorf("queue.backend must be postgres or memory, got %q", c.Queue.Backend)
	}
	if c.Queue.Workers <= 0 {
		return errors.New("queue.workers must be positive")
	}
	if c.GitHub.Token == "" {
		return errors.New("github.token is required")
	}
	if c.Jira.URL == "" {
		return errors.New("jira.url is required")
	}
	switch c.RepoTools.Source {
	case "github":
		if !strings.Contains(c.RepoTools.Repo, "/") {
			return errors.New("repotools.repo must be owner/name")
		}
	case "dir":
		if c.RepoTools.Dir == "" {
			return errors.New("repotools.dir is required for the dir source")
		}
	default:
		return fmt.Errorf("repotools.source must be github or dir, got %q", c.RepoTools.Source)
	}
	return nil
}

// ServerAddr returns host:port for HTTP server binding.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ServerConfig contains HTTP server options.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AdminToken protects the rescan and process_pr endpoints. Empty disables them.
	AdminToken string `mapstructure:"admin_token"`
}

// HTTPConfig contains transport settings.
type HTTPConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// PostgresConfig describes database connection parameters.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	// MigrationsDir overrides the migrations built into the binary.
	MigrationsDir  string        `mapstructure:"migrations_dir"`
	MigrateTimeout time.Duration `mapstructure:"migrate_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	MaxConns       int32         `mapstructure:"max_conns"`
	MinConns       int32         `mapstructure:"min_conns"`
}

// DSN returns a Postgres connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// QueueConfig configures the job store and worker pool.
type QueueConfig struct {
	Backend      string        `mapstructure:"backend"`
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	// RetryDelay is the first retry delay; later ones grow exponentially.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// GitHubConfig configures the GitHub API client and webhook receiver.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
	// APIURL points at a GitHub Enterprise API; empty means api.github.com.
	APIURL        string        `mapstructure:"api_url"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	BotLogin      string        `mapstructure:"bot_login"`
	Timeout       time.Duration `mapstructure:"request_timeout"`
}

// JiraConfig configures the Jira REST client.
type JiraConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	APIToken string `mapstructure:"api_token"`
	// URLField is the custom field holding the PR url. Jira has several fields
	// named "URL", so it is configured by id.
	URLField string        `mapstructure:"url_field"`
	Timeout  time.Duration `mapstructure:"request_timeout"`
}

// BrowseURL returns the link base for issue keys.
func (j JiraConfig) BrowseURL() string {
	return strings.TrimRight(j.URL, "/") + "/browse/"
}

// RepoToolsConfig locates people.yaml, orgs.yaml and labels.yaml.
type RepoToolsConfig struct {
	Source   string        `mapstructure:"source"`
	Repo     string        `mapstructure:"repo"`
	Ref      string        `mapstructure:"ref"`
	Dir      string        `mapstructure:"dir"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AppConfig holds settings about this service itself.
type AppConfig struct {
	PublicURL         string `mapstructure:"public_url"`
	DefaultRescanRepo string `mapstructure:"default_rescan_repo"`
}

// TelemetryConfig toggles OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Stdout      bool   `mapstructure:"stdout"`
	ServiceName string `mapstructure:"service_name"`
	// OTLPEndpoint receives metrics over OTLP/HTTP when set (host:port).
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}
