package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofiber/storage/s3/v2"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/subsignature/internal/auth"
	"github.com/BradenHooton/subsignature/internal/background"
	"github.com/BradenHooton/subsignature/internal/config"
	"github.com/BradenHooton/subsignature/internal/database"
	"github.com/BradenHooton/subsignature/internal/handlers"
	middlewareCustom "github.com/BradenHooton/subsignature/internal/middleware"
	"github.com/BradenHooton/subsignature/internal/models"
	"github.com/BradenHooton/subsignature/internal/repositories"
	"github.com/BradenHooton/subsignature/internal/routes"
	"github.com/BradenHooton/subsignature/internal/services"
	pkgauth "github.com/BradenHooton/subsignature/pkg/auth"
	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
	pkglogger "github.com/BradenHooton/subsignature/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("mail_transport", cfg.Mail.Transport),
		slog.String("template_backend", cfg.Templates.Backend),
		slog.String("rate_limit_store", cfg.RateLimit.Store),
	)

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	signatureRepo := repositories.NewSignatureRepository(db)

	auditService := services.NewAuditService(auditRepo, pkglogger.NewAuditLogger(logger, cfg.Server.Env))

	// Counter store for action rate limits
	var counters services.CounterStore
	var cleanupManager *background.CleanupManager
	switch cfg.RateLimit.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer client.Close()
		counters = services.NewRedisCounterStore(client)
	default:
		memory := services.NewMemoryCounterStore()
		counters = memory
		cleanupManager = background.NewCleanupManager(memory, logger, cfg.Auth.CleanupInterval)
	}

	templates := newTemplateProvider(cfg.Templates, logger)

	dialer, err := newDialer(context.Background(), cfg.Mail)
	if err != nil {
		logger.Error("failed to initialize mail transport", slog.Any("error", err))
		os.Exit(1)
	}

	csrfGuard := auth.NewCSRFGuard()
	sessionGuard := auth.NewSessionGuard(
		auth.NewCookieStore(cfg.Session.Secret, cfg.Session.MaxAge, cfg.Session.SecureCookie),
		cfg.Session.CookieName,
		cfg.Session.IdleTimeout,
		accountRepo,
		csrfGuard,
	)

	// Initialize services
	throttle := services.NewLoginThrottle(accountRepo, auditService, logger, cfg.Auth.LockoutThreshold, cfg.Auth.LockoutDuration)
	limiter := services.NewRateLimiter(counters, auditService, logger)
	authService := services.NewAuthService(
		accountRepo,
		throttle,
		limiter,
		auditService,
		auth.NewTimingDelay(cfg.Auth.TimingDelayBase, cfg.Auth.TimingDelayJitter),
		logger,
		services.AuthServiceConfig{
			RegistrationLimit:  cfg.Auth.RegistrationLimit,
			RegistrationWindow: cfg.Auth.RegistrationWindow,
		},
	)
	adminService := services.NewAdminService(accountRepo, auditService, logger)
	signatureService := services.NewSignatureService(signatureRepo, templates, logger)
	dispatcher := services.NewNotificationDispatcher(
		signatureRepo,
		templates,
		dialer,
		csrfGuard,
		auditService,
		logger,
		services.DispatchConfig{
			ItemDelay:  cfg.Dispatch.ItemDelay,
			BurstEvery: cfg.Dispatch.BurstEvery,
			BurstDelay: cfg.Dispatch.BurstDelay,
		},
	)

	// Bootstrap first admin account if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(ctx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	cancel()

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:          handlers.NewAuthHandler(authService, sessionGuard, ipConfig, logger),
		Admin:         handlers.NewAdminHandler(adminService, auditService, ipConfig, logger),
		Signatures:    handlers.NewSignatureHandler(signatureService, logger),
		Notifications: handlers.NewNotificationHandler(dispatcher, ipConfig, logger),
		Health:        handlers.NewHealthHandler(db, logger),
	}, routes.Security{
		Sessions:       sessionGuard,
		CSRF:           csrfGuard,
		Events:         auditService,
		IPConfig:       ipConfig,
		LoginPerMinute: cfg.Auth.LoginPerMinute,
	}, logger)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	if cleanupManager != nil {
		go cleanupManager.Start(cleanupCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newTemplateProvider(cfg config.TemplatesConfig, logger *slog.Logger) services.TemplateProvider {
	if cfg.Backend == "s3" {
		store := s3.New(s3.Config{
			Bucket:   cfg.S3Bucket,
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
			Reset:    false,
			Credentials: s3.Credentials{
				AccessKey:       cfg.S3AccessKey,
				SecretAccessKey: cfg.S3SecretKey,
			},
		})
		return services.NewS3TemplateProvider(store, cfg.S3Prefix, logger)
	}
	return services.NewFileTemplateProvider(cfg.Dir)
}

func newDialer(ctx context.Context, cfg config.MailConfig) (services.Dialer, error) {
	from := services.Sender{Name: cfg.FromName, Address: cfg.FromAddress}

	switch cfg.Transport {
	case "ses":
		client, err := services.NewSESClient(ctx, cfg.SESRegion)
		if err != nil {
			return nil, err
		}
		return services.NewSESDialer(client, from), nil
	case "mailgun":
		return services.NewMailgunDialer(services.MailgunConfig{
			Domain:  cfg.MailgunDomain,
			APIKey:  cfg.MailgunAPIKey,
			APIBase: cfg.MailgunAPIBase,
			From:    from,
		}), nil
	default:
		return services.NewSMTPDialer(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			Security: cfg.SMTPSecurity,
			Timeout:  cfg.SMTPTimeout,
			From:     from,
		}), nil
	}
}

// ensureAdminAccount creates the first admin account if ADMIN_USERNAME and ADMIN_PASSWORD are set
func ensureAdminAccount(ctx context.Context, accounts *repositories.AccountRepository, logger *slog.Logger) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")

	if username == "" || password == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin account creation")
		return nil
	}

	_, err := accounts.GetByUsername(ctx, username)
	if err == nil {
		logger.Info("admin account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if _, err := accounts.Create(ctx, &models.Account{
		Username:     username,
		PasswordHash: hash,
		FullName:     "Administrator",
		Role:         models.RoleAdmin,
		Active:       true,
	}); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created successfully")
	return nil
}
