// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          App                     `mapstructure:"app"`
	Camunda      Camunda                 `mapstructure:"camunda"`
	Database     Database                `mapstructure:"database"`
	Integrations Integrations            `mapstructure:"integrations"`
	Cron         Cron                    `mapstructure:"cron"`
	Logging      Logging                 `mapstructure:"logging"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
}

type App struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type Camunda struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type Database struct {
	Postgres      Postgres      `mapstructure:"postgres"`
	Redis         Redis         `mapstructure:"redis"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
}

type Postgres struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p Postgres) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type Redis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Enabled   bool     `mapstructure:"enabled"`
}

// Integrations holds the external collaborator endpoints and AWS settings.
type Integrations struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
		SES struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
	} `mapstructure:"aws"`

	Gateways struct {
		PDFRenderURL    string `mapstructure:"pdf_render_url"`
		DistributionURL string `mapstructure:"distribution_url"`
		MailboxURL      string `mapstructure:"mailbox_url"`
		ReachabilityURL string `mapstructure:"reachability_url"`
		ContactURL      string `mapstructure:"contact_url"`
		ClinicalURL     string `mapstructure:"clinical_url"`
		TimeoutMS       int    `mapstructure:"timeout_ms"`
	} `mapstructure:"gateways"`
}

// Cron configures the distribution retry job.
type Cron struct {
	DistributionIntervalSeconds int  `mapstructure:"distribution_interval_seconds"`
	Enabled                     bool `mapstructure:"enabled"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}
