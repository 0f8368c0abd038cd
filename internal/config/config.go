package config

import (
	"fmt"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Store backends
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Dispatch modes of the API service
const (
	DispatchInProcess = "inprocess"
	DispatchQueue     = "queue"
)

// Config represents the complete application configuration. Values come
// from the YAML file; fields with an env tag can be overridden by the
// environment.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
	Firestore  FirestoreConfig  `yaml:"firestore"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Redis      RedisConfig      `yaml:"redis"`
	Completion CompletionConfig `yaml:"completion"`
	Job        JobConfig        `yaml:"job"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" env:"APP_ENV"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" env:"LOG_LEVEL"`
	Format       string `yaml:"format" env:"LOG_FORMAT"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// StoreConfig selects the job record backend
type StoreConfig struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND"`
}

// FirestoreConfig holds the Firestore collection and the account used to
// access it
type FirestoreConfig struct {
	BaseURL    string        `yaml:"base_url"`
	ProjectID  string        `yaml:"project_id" env:"FIREBASE_PROJECT_ID"`
	DatabaseID string        `yaml:"database_id"`
	Collection string        `yaml:"collection" env:"FIRESTORE_COLLECTION"`
	Timeout    time.Duration `yaml:"timeout"`
	Auth       FirebaseAuth  `yaml:"auth"`
}

// FirebaseAuth holds the email/password account for Firebase sign-in
type FirebaseAuth struct {
	SignInURL string `yaml:"sign_in_url"`
	APIKey    string `yaml:"api_key" env:"FIREBASE_API_KEY"`
	Email     string `yaml:"email" env:"FIREBASE_EMAIL"`
	Password  string `yaml:"password" env:"FIREBASE_PASSWORD"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"DB_HOST"`
	Port            int           `yaml:"port" env:"DB_PORT"`
	User            string        `yaml:"user" env:"DB_USER"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	Database        string        `yaml:"database" env:"DB_NAME"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host" env:"RABBITMQ_HOST"`
	Port       int              `yaml:"port" env:"RABBITMQ_PORT"`
	User       string           `yaml:"user" env:"RABBITMQ_USER"`
	Password   string           `yaml:"password" env:"RABBITMQ_PASSWORD"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name string `yaml:"name"`
}

// DeadLetterConfig names where rejected job messages go
type DeadLetterConfig struct {
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// RedisConfig holds the connection used for job leases
type RedisConfig struct {
	Addr        string `yaml:"addr" env:"REDIS_ADDR"`
	Password    string `yaml:"password" env:"REDIS_PASSWORD"`
	DB          int    `yaml:"db"`
	LeasePrefix string `yaml:"lease_prefix"`
}

// CompletionConfig holds the completion provider settings
type CompletionConfig struct {
	Endpoint          string        `yaml:"endpoint" env:"COMPLETION_ENDPOINT"`
	APIKey            string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	Model             string        `yaml:"model" env:"COMPLETION_MODEL"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	ResponsePath      string        `yaml:"response_path"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	PromptTemplate    string        `yaml:"prompt_template"`
}

// JobConfig holds the job lifecycle settings
type JobConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffBase    float64       `yaml:"backoff_base"`
	BackoffUnit    time.Duration `yaml:"backoff_unit"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	Dispatch       string        `yaml:"dispatch" env:"JOB_DISPATCH"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ID              string        `yaml:"id" env:"WORKER_ID"`
	Concurrency     int           `yaml:"concurrency"`
	LeaseTTL        time.Duration `yaml:"lease_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads the configuration file, overlays environment variables and
// fills defaults
func Load(configPath string) (*Config, error) {
	return load(configPath, nil)
}

// load is Load with an explicit environment; nil means the process
// environment
func load(configPath string, environ map[string]string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.ParseWithOptions(&config, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills unset fields with their default values
func (c *Config) ApplyDefaults() {
	setDefault(&c.Store.Backend, StoreFirestore)
	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "text")
	setDefault(&c.Logging.Output, "stdout")

	setDefault(&c.Server.ShutdownTimeout, 30*time.Second)

	setDefault(&c.Firestore.Collection, "itineraries")
	setDefault(&c.Firestore.Timeout, 10*time.Second)

	setDefault(&c.Database.SSLMode, "disable")
	setDefault(&c.Database.MaxOpenConns, 10)
	setDefault(&c.Database.MaxIdleConns, 5)

	setDefault(&c.RabbitMQ.VHost, "/")
	setDefault(&c.RabbitMQ.Exchange.Type, "direct")
	setDefault(&c.RabbitMQ.Connection.RetryAttempts, 5)
	setDefault(&c.RabbitMQ.Connection.RetryInterval, 2*time.Second)
	setDefault(&c.RabbitMQ.Connection.Heartbeat, 10*time.Second)

	setDefault(&c.Redis.LeasePrefix, "itinerary:lease:")

	setDefault(&c.Completion.Model, "gpt-4o-mini")
	setDefault(&c.Completion.Temperature, 0.7)
	setDefault(&c.Completion.Timeout, 60*time.Second)

	setDefault(&c.Job.MaxAttempts, 3)
	setDefault(&c.Job.BackoffBase, 2.0)
	setDefault(&c.Job.BackoffUnit, time.Second)
	setDefault(&c.Job.AttemptTimeout, 60*time.Second)
	setDefault(&c.Job.WriteTimeout, 10*time.Second)
	setDefault(&c.Job.Dispatch, DispatchInProcess)

	setDefault(&c.Worker.Concurrency, 4)
	setDefault(&c.Worker.ShutdownTimeout, 30*time.Second)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// ValidateAPIConfig checks the settings the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if err := validatePort("server", c.Server.Port); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateJob(); err != nil {
		return err
	}

	switch c.Job.Dispatch {
	case DispatchInProcess:
		if err := c.validateCompletion(); err != nil {
			return err
		}
	case DispatchQueue:
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid job dispatch %q (must be %s or %s)", c.Job.Dispatch, DispatchInProcess, DispatchQueue)
	}

	return nil
}

// ValidateWorkerConfig checks the settings the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if c.Store.Backend == StoreMemory {
		return fmt.Errorf("memory store cannot be shared with the worker service")
	}
	if err := c.validateJob(); err != nil {
		return err
	}
	if err := c.validateCompletion(); err != nil {
		return err
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.LeaseTTL < 0 {
		return fmt.Errorf("worker lease_ttl must not be negative")
	}

	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreFirestore:
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore project_id is required")
		}
		if c.Firestore.Auth.APIKey == "" {
			return fmt.Errorf("firebase api_key is required")
		}
		if c.Firestore.Auth.Email == "" || c.Firestore.Auth.Password == "" {
			return fmt.Errorf("firebase email and password are required")
		}
	case StorePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if err := validatePort("database", c.Database.Port); err != nil {
			return err
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid store backend %q", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if err := validatePort("rabbitmq", c.RabbitMQ.Port); err != nil {
		return err
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if (c.RabbitMQ.DeadLetter.Exchange == "") != (c.RabbitMQ.DeadLetter.Queue == "") {
		return fmt.Errorf("rabbitmq dead_letter needs both exchange and queue")
	}

	return nil
}

func (c *Config) validateCompletion() error {
	if c.Completion.APIKey == "" {
		return fmt.Errorf("completion api_key is required")
	}
	if c.Completion.RequestsPerSecond < 0 {
		return fmt.Errorf("completion requests_per_second must not be negative")
	}
	return nil
}

func (c *Config) validateJob() error {
	if c.Job.MaxAttempts <= 0 {
		return fmt.Errorf("job max_attempts must be greater than 0")
	}
	if c.Job.BackoffBase < 1 {
		return fmt.Errorf("job backoff_base must be at least 1")
	}
	if c.Job.BackoffUnit <= 0 {
		return fmt.Errorf("job backoff_unit must be greater than 0")
	}
	if c.Job.MaxConcurrent < 0 {
		return fmt.Errorf("job max_concurrent must not be negative")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid %s port: %d (must be between %d and %d)", name, port, MinPort, MaxPort)
	}
	return nil
}
