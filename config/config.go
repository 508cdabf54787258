// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envFile = "config/.env"

// NewConfig loads configuration from environment using viper with typed defaults and validation.
func NewConfig() (*Config, error) {
	v := viper.New()
	if envMap, err := godotenv.Read(envFile); err == nil {
		for k, v := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, v)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("http.request_timeout", 10*time.Second)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.db_name", "openedx_webhooks")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.migrations_dir", "")
	v.SetDefault("postgres.migrate_timeout", 10*time.Second)
	v.SetDefault("postgres.query_timeout", 2*time.Second)
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)

	v.SetDefault("queue.backend", "postgres")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.poll_interval", time.Second)
	v.SetDefault("queue.job_timeout", 5*time.Minute)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.retry_delay", 10*time.Second)

	v.SetDefault("github.api_url", "")
	v.SetDefault("github.request_timeout", 30*time.Second)

	v.SetDefault("jira.url", "https://openedx.atlassian.net")
	v.SetDefault("jira.url_field", "customfield_10904")
	v.SetDefault("jira.request_timeout", 30*time.Second)

	v.SetDefault("repotools.source", "github")
	v.SetDefault("repotools.repo", "edx/repo-tools-data")
	v.SetDefault("repotools.ref", "master")
	v.SetDefault("repotools.cache_ttl", 15*time.Minute)

	v.SetDefault("app.public_url", "https://openedx-webhooks.herokuapp.com")
	v.SetDefault("app.default_rescan_repo", "edx/edx-platform")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
	v.SetDefault("telemetry.service_name", "openedx-webhooks")
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"logging.level",
		"server.host",
		"server.port",
		"server.shutdown_timeout",
		"server.admin_token",
		"http.request_timeout",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.db_name",
		"postgres.ssl_mode",
		"postgres.migrations_dir",
		"postgres.migrate_timeout",
		"postgres.query_timeout",
		"postgres.max_conns",
		"postgres.min_conns",
		"queue.backend",
		"queue.workers",
		"queue.poll_interval",
		"queue.job_timeout",
		"queue.max_attempts",
		"queue.retry_delay",
		"github.token",
		"github.api_url",
		"github.webhook_secret",
		"github.bot_login",
		"github.request_timeout",
		"jira.url",
		"jira.username",
		"jira.api_token",
		"jira.url_field",
		"jira.request_timeout",
		"repotools.source",
		"repotools.repo",
		"repotools.ref",
		"repotools.dir",
		"repotools.cache_ttl",
		"app.public_url",
		"app.default_rescan_repo",
		"telemetry.enabled",
		"telemetry.stdout",
		"telemetry.service_name",
		"telemetry.otlp_endpoint",
	}

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
