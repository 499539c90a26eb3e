package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Google    GoogleConfig    `mapstructure:"google"`
	IMAP      IMAPConfig      `mapstructure:"imap"`
	AI        AIConfig        `mapstructure:"ai"`
	Firebase  FirebaseConfig  `mapstructure:"firebase"`
	Chroma    ChromaConfig    `mapstructure:"chroma"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// URL wins over the discrete fields when set.
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	ProjectID    string `mapstructure:"project_id"`
	PubSubTopic  string `mapstructure:"pubsub_topic"`
	Credentials  string `mapstructure:"credentials"`
}

type IMAPConfig struct {
	Address     string `mapstructure:"address"`
	SMTPAddress string `mapstructure:"smtp_address"`
}

type AIConfig struct {
	Provider          string  `mapstructure:"provider"`
	GeminiAPIKey      string  `mapstructure:"gemini_api_key"`
	GeminiModel       string  `mapstructure:"gemini_model"`
	OllamaURL         string  `mapstructure:"ollama_url"`
	OllamaModel       string  `mapstructure:"ollama_model"`
	AnthropicAPIKey   string  `mapstructure:"anthropic_api_key"`
	AnthropicModel    string  `mapstructure:"anthropic_model"`
	AnthropicURL      string  `mapstructure:"anthropic_url"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

type FirebaseConfig struct {
	Credentials string `mapstructure:"credentials"`
}

type ChromaConfig struct {
	URL string `mapstructure:"url"`
}

type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	Concurrency     int  `mapstructure:"concurrency"`
}

type SecurityConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	JWTAccessExpiry  time.Duration `mapstructure:"jwt_access_expiry"`
	JWTRefreshExpiry time.Duration `mapstructure:"jwt_refresh_expiry"`
	EncryptionKey    string        `mapstructure:"encryption_key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env, an optional config.yaml and the environment, in that
// order of increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "inboxpilot")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("google.redirect_uri", "postmessage")
	v.SetDefault("google.pubsub_topic", "gmail-updates")

	v.SetDefault("imap.address", "imap.gmail.com:993")
	v.SetDefault("imap.smtp_address", "smtp.gmail.com:465")

	v.SetDefault("ai.provider", "auto")
	v.SetDefault("ai.gemini_model", "gemini-2.0-flash")
	v.SetDefault("ai.ollama_url", "http://localhost:11434")
	v.SetDefault("ai.ollama_model", "llama3.2")
	v.SetDefault("ai.anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.anthropic_url", "https://api.anthropic.com")
	v.SetDefault("ai.requests_per_minute", 30)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval_minutes", 5)
	v.SetDefault("scheduler.concurrency", 4)

	v.SetDefault("security.jwt_secret", "your-secret-key-change-in-production")
	v.SetDefault("security.jwt_access_expiry", "15m")
	v.SetDefault("security.jwt_refresh_expiry", "168h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindEnvVars keeps the flat variable names used in .env files.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"server.port":                 "PORT",
		"server.allowed_origins":      "ALLOWED_ORIGINS",
		"database.url":                "DATABASE_URL",
		"database.host":               "DB_HOST",
		"database.port":               "DB_PORT",
		"database.user":               "DB_USER",
		"database.password":           "DB_PASSWORD",
		"database.dbname":             "DB_NAME",
		"database.sslmode":            "DB_SSLMODE",
		"google.client_id":            "GOOGLE_CLIENT_ID",
		"google.client_secret":        "GOOGLE_CLIENT_SECRET",
		"google.redirect_uri":         "GOOGLE_REDIRECT_URI",
		"google.project_id":           "GOOGLE_PROJECT_ID",
		"google.pubsub_topic":         "GOOGLE_PUBSUB_TOPIC",
		"google.credentials":          "GOOGLE_APPLICATION_CREDENTIALS",
		"imap.address":                "IMAP_ADDRESS",
		"imap.smtp_address":           "SMTP_ADDRESS",
		"ai.provider":                 "AI_PROVIDER",
		"ai.gemini_api_key":           "GEMINI_API_KEY",
		"ai.gemini_model":             "GEMINI_MODEL",
		"ai.ollama_url":               "OLLAMA_BASE_URL",
		"ai.ollama_model":             "OLLAMA_MODEL",
		"ai.anthropic_api_key":        "ANTHROPIC_API_KEY",
		"ai.anthropic_model":          "ANTHROPIC_MODEL",
		"ai.anthropic_url":            "ANTHROPIC_BASE_URL",
		"ai.requests_per_minute":      "AI_REQUESTS_PER_MINUTE",
		"firebase.credentials":        "FIREBASE_CREDENTIALS",
		"chroma.url":                  "CHROMA_URL",
		"scheduler.enabled":           "SCHEDULER_ENABLED",
		"scheduler.interval_minutes":  "SCHEDULER_INTERVAL_MINUTES",
		"scheduler.concurrency":       "SCHEDULER_CONCURRENCY",
		"security.jwt_secret":         "JWT_SECRET",
		"security.jwt_access_expiry":  "JWT_ACCESS_EXPIRY",
		"security.jwt_refresh_expiry": "JWT_REFRESH_EXPIRY",
		"security.encryption_key":     "TOKEN_ENCRYPTION_KEY",
		"log.level":                   "LOG_LEVEL",
		"log.format":                  "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// DSN returns the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// TopicPath returns the fully qualified Pub/Sub topic Gmail publishes to.
func (c *GoogleConfig) TopicPath() string {
	if c.PubSubTopic == "" || strings.HasPrefix(c.PubSubTopic, "projects/") {
		return c.PubSubTopic
	}
	return fmt.Sprintf("projects/%s/topics/%s", c.ProjectID, c.PubSubTopic)
}

// TopicName returns the short topic id.
func (c *GoogleConfig) TopicName() string {
	parts := strings.Split(c.PubSubTopic, "/")
	return parts[len(parts)-1]
}

// Validate checks the settings every process needs.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.DBName == "") {
		return errors.New("database url or host and dbname are required")
	}
	if c.Security.JWTSecret == "" {
		return errors.New("JWT secret is required")
	}
	if c.Security.EncryptionKey == "" {
		return errors.New("TOKEN_ENCRYPTION_KEY is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.IntervalMinutes <= 0 {
		return errors.New("scheduler interval must be greater than 0")
	}
	return nil
}
