package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "inboxpilot-backend/cmd/api"
	accountdomain "inboxpilot-backend/internal/account/domain"
	accountrepo "inboxpilot-backend/internal/account/repository"
	authdelivery "inboxpilot-backend/internal/auth/delivery"
	authdomain "inboxpilot-backend/internal/auth/domain"
	authrepo "inboxpilot-backend/internal/auth/repository"
	authusecase "inboxpilot-backend/internal/auth/usecase"
	classdelivery "inboxpilot-backend/internal/classification/delivery"
	classdomain "inboxpilot-backend/internal/classification/domain"
	classrepo "inboxpilot-backend/internal/classification/repository"
	classusecase "inboxpilot-backend/internal/classification/usecase"
	commanddelivery "inboxpilot-backend/internal/command/delivery"
	commandusecase "inboxpilot-backend/internal/command/usecase"
	"inboxpilot-backend/internal/mailbox"
	"inboxpilot-backend/internal/metrics"
	"inboxpilot-backend/internal/notification"
	"inboxpilot-backend/internal/scheduler"
	"inboxpilot-backend/pkg/ai"
	"inboxpilot-backend/pkg/calendar"
	"inboxpilot-backend/pkg/chroma"
	"inboxpilot-backend/pkg/config"
	"inboxpilot-backend/pkg/database"
	"inboxpilot-backend/pkg/fcm"
	"inboxpilot-backend/pkg/gmail"
	"inboxpilot-backend/pkg/googleauth"
	"inboxpilot-backend/pkg/imapmail"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container holds the wired components shared by the API server and the
// worker commands.
type Container struct {
	Config         *config.Config
	DB             *gorm.DB
	Metrics        *metrics.Metrics
	Accounts       accountrepo.AccountRepository
	Tokens         authrepo.TokenRepository
	FCMTokens      authrepo.FCMTokenRepository
	Google         *googleauth.Service
	Mail           mailbox.Opener
	Calendar       calendar.Opener
	Ollama         *ai.OllamaService
	Settings       *api.RuntimeSettings
	LLM            ai.CompletionClient
	DraftPusher    *notification.DraftPusher
	Classification classusecase.ClassificationUsecase
	Auth           authusecase.AuthUsecase
	Command        commandusecase.CommandUsecase
	Dispatcher     *notification.Dispatcher
}

// SetupLogging applies the log level and format from cfg.
func SetupLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// Build connects to the database and wires every component. reg receives
// the Prometheus metrics.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*Container, error) {
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db,
		&accountdomain.Account{},
		&classdomain.SyncRun{},
		&authdomain.RefreshToken{},
		&authdomain.FCMToken{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := &Container{
		Config:    cfg,
		DB:        db,
		Metrics:   metrics.NewMetrics(reg),
		Accounts:  accountrepo.NewAccountRepository(db, cfg.Security.EncryptionKey),
		Tokens:    authrepo.NewTokenRepository(db),
		FCMTokens: authrepo.NewFCMTokenRepository(db),
	}

	openers := mailbox.Openers{
		mailbox.KindIMAP: imapmail.NewOpener(imapmail.Config{
			IMAPAddress: cfg.IMAP.Address,
			SMTPAddress: cfg.IMAP.SMTPAddress,
		}),
	}
	if cfg.Google.ClientID != "" {
		c.Google = googleauth.NewService(googleauth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
		})
		openers[mailbox.KindGoogle] = gmail.NewOpener(c.Google)
		c.Calendar = calendar.NewOpener(c.Google)
	} else {
		logrus.Warn("[OAuth] GOOGLE_CLIENT_ID not set, Google accounts are disabled")
	}
	c.Mail = openers

	c.Settings = api.NewRuntimeSettings(cfg.AI.OllamaURL, cfg.AI.OllamaModel)
	c.Ollama = ai.NewOllamaServiceWithGetters(c.Settings.BaseURL, c.Settings.Model)
	c.LLM, err = ai.NewCompletionClient(ctx, ai.Config{
		Provider:          ai.ProviderType(cfg.AI.Provider),
		GeminiAPIKey:      cfg.AI.GeminiAPIKey,
		GeminiModel:       cfg.AI.GeminiModel,
		AnthropicAPIKey:   cfg.AI.AnthropicAPIKey,
		AnthropicModel:    cfg.AI.AnthropicModel,
		AnthropicURL:      cfg.AI.AnthropicURL,
		Ollama:            c.Ollama,
		RequestsPerMinute: int(cfg.AI.RequestsPerMinute),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI client: %w", err)
	}
	logrus.Infof("[AI] Completion client ready (provider: %s)", cfg.AI.Provider)

	var index classusecase.EntryIndexer
	if cfg.Chroma.URL != "" && cfg.AI.GeminiAPIKey != "" {
		client, err := chroma.NewChromaClient(ctx, cfg.Chroma.URL, cfg.AI.GeminiAPIKey)
		if err != nil {
			logrus.Warnf("[Chroma] Semantic search disabled: %v", err)
		} else {
			index = classrepo.NewEntryIndex(client)
		}
	} else {
		logrus.Info("[Chroma] Not configured, search falls back to fuzzy matching")
	}

	var drafts classusecase.DraftNotifier
	if cfg.Firebase.Credentials != "" {
		client, err := fcm.NewClient(ctx, cfg.Firebase.Credentials)
		if err != nil {
			logrus.Warnf("[FCM] Push notifications disabled: %v", err)
		} else {
			c.DraftPusher = notification.NewDraftPusher(client, c.FCMTokens, c.Metrics, 3)
			c.DraftPusher.Start()
			drafts = c.DraftPusher
		}
	}

	pushTopic := ""
	if cfg.Google.ProjectID != "" {
		pushTopic = cfg.Google.TopicPath()
	}

	c.Classification = classusecase.NewClassificationUsecase(classusecase.Dependencies{
		Accounts:  c.Accounts,
		Mail:      c.Mail,
		LLM:       c.LLM,
		Drafts:    drafts,
		Index:     index,
		Metrics:   c.Metrics,
		PushTopic: pushTopic,
	})
	c.Dispatcher = notification.NewDispatcher(c.Classification)

	var google authusecase.GoogleOAuth
	if c.Google != nil {
		google = c.Google
	}
	c.Auth = authusecase.NewAuthUsecase(c.Accounts, c.Tokens, c.FCMTokens, google, openers[mailbox.KindIMAP], cfg.Security)
	c.Command = commandusecase.NewCommandUsecase(c.Accounts, c.LLM, c.Mail, c.Calendar, nil)

	return c, nil
}

// Close stops background workers and releases the database.
func (c *Container) Close() {
	if c.DraftPusher != nil {
		c.DraftPusher.Stop()
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Run starts the API server, the Pub/Sub subscriber and the poll scheduler,
// and blocks until SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	SetupLogging(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logrus.Info("Starting inboxpilot backend")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer c.Close()

	var subscriber *notification.Subscriber
	if cfg.Google.ProjectID != "" {
		subscriber, err = notification.NewSubscriber(ctx, cfg.Google.ProjectID, cfg.Google.TopicName(), cfg.Google.Credentials, c.Dispatcher)
		if err != nil {
			logrus.Warnf("[PubSub] Subscriber disabled: %v", err)
		} else {
			go func() {
				if err := subscriber.Run(ctx); err != nil {
					logrus.Errorf("[PubSub] %v", err)
				}
			}()
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(cfg.Scheduler, c.Accounts, c.Classification)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	srv := api.NewServer(cfg.Server, c.Auth, api.Handlers{
		Auth:           authdelivery.NewAuthHandler(c.Auth),
		Classification: classdelivery.NewClassificationHandler(c.Classification, c.Dispatcher),
		Command:        commanddelivery.NewCommandHandler(c.Command),
		Settings:       api.NewSettingsHandler(c.Settings, c.Ollama),
	})

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logrus.Errorf("HTTP server error: %v", err)
	}

	logrus.Info("Shutting down server...")
	cancel()

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if sched != nil {
		if err := sched.Stop(); err != nil {
			logrus.Errorf("Failed to stop scheduler: %v", err)
		}
		sched.Wait()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			logrus.Errorf("Failed to close subscriber: %v", err)
		}
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
