package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_ENCRYPTION_KEY", "k")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Security.JWTAccessExpiry)
	assert.Equal(t, 168*time.Hour, cfg.Security.JWTRefreshExpiry)
	assert.Equal(t, "auto", cfg.AI.Provider)
	assert.Equal(t, 30.0, cfg.AI.RequestsPerMinute)
	assert.Equal(t, "imap.gmail.com:993", cfg.IMAP.Address)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 5, cfg.Scheduler.IntervalMinutes)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFlatEnvNames(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/inbox")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SCHEDULER_INTERVAL_MINUTES", "2")
	t.Setenv("JWT_ACCESS_EXPIRY", "1h")
	t.Setenv("GOOGLE_PROJECT_ID", "proj")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db/inbox", cfg.Database.DSN())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 2, cfg.Scheduler.IntervalMinutes)
	assert.Equal(t, time.Hour, cfg.Security.JWTAccessExpiry)
	assert.Equal(t, "projects/proj/topics/gmail-updates", cfg.Google.TopicPath())
	assert.Equal(t, "gmail-updates", cfg.Google.TopicName())
}

func TestDSNFromFields(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=d sslmode=disable", db.DSN())
}

func TestTopicPathKeepsQualifiedName(t *testing.T) {
	g := GoogleConfig{ProjectID: "proj", PubSubTopic: "projects/other/topics/mail"}
	assert.Equal(t, "projects/other/topics/mail", g.TopicPath())
	assert.Equal(t, "mail", g.TopicName())
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Host: "localhost", DBName: "inbox"},
		Security: SecurityConfig{JWTSecret: "s", EncryptionKey: "k"},
	}
	require.NoError(t, valid.Validate())

	noKey := valid
	noKey.Security.EncryptionKey = ""
	assert.Error(t, noKey.Validate())

	badInterval := valid
	badInterval.Scheduler = SchedulerConfig{Enabled: true}
	assert.Error(t, badInterval.Validate())

	noDB := valid
	noDB.Database = DatabaseConfig{}
	assert.Error(t, noDB.Validate())
}
