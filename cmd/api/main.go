package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/leafcheck/internal/auth"
	"github.com/BradenHooton/leafcheck/internal/background"
	"github.com/BradenHooton/leafcheck/internal/config"
	"github.com/BradenHooton/leafcheck/internal/database"
	"github.com/BradenHooton/leafcheck/internal/handlers"
	middlewareCustom "github.com/BradenHooton/leafcheck/internal/middleware"
	"github.com/BradenHooton/leafcheck/internal/repositories"
	"github.com/BradenHooton/leafcheck/internal/routes"
	"github.com/BradenHooton/leafcheck/internal/services"
	"github.com/BradenHooton/leafcheck/migrations"
	pkghttp "github.com/BradenHooton/leafcheck/pkg/http"
	pkglogger "github.com/BradenHooton/leafcheck/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("email_provider", cfg.Email.Provider),
		slog.Bool("dev_mode", cfg.Server.DevMode))

	if cfg.Server.DevMode {
		logger.Warn("dev mode is on: OTPs and reset tokens are echoed in API responses")
	}

	// Initialize database
	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := db.Migrate(migrateCtx, migrations.FS)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(userRepo, logger, cfg.Auth.CleanupInterval)

	// Initialize token manager and secret issuer
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)
	secretIssuer := auth.NewSecretIssuer(cfg.Auth.OTPExpiry, cfg.Auth.ResetTokenExpiry)

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	// Email delivery
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	notifier, err := services.NewNotifier(initCtx, &cfg.Email, logger)
	initCancel()
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	userService := services.NewUserService(userRepo, logger)
	authService := services.NewAuthService(
		userRepo,
		secretIssuer,
		tokenManager,
		notifier,
		timingDelay,
		logger,
		auditLogger,
		services.AuthOptions{
			DevMode:       cfg.Server.DevMode,
			FrontendURL:   cfg.Email.FrontendURL,
			NotifyTimeout: cfg.Email.NotifyTimeout,
		},
	)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	authHandler := handlers.NewAuthHandler(authService)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userService, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	router.Route("/api", func(r chi.Router) {
		routes.RegisterRoutes(r, authHandler, userHandler, tokenManager, userRepo, logger)
	})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health, err := db.Health(r.Context())
		if err != nil {
			logger.Warn("health check failed", slog.Any("error", err))
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, struct {
				Status string `json:"status"`
				database.Health
			}{"unhealthy", health})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
			database.Health
		}{"healthy", health})
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

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
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userService *services.UserService, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	adminUsername := os.Getenv("ADMIN_USERNAME")
	if adminUsername == "" {
		adminUsername = "admin"
	}

	created, err := userService.EnsureAdmin(ctx, adminUsername, adminEmail, adminPassword)
	if err != nil {
		return err
	}

	if created {
		logger.Info("admin user created successfully")
	} else {
		logger.Info("admin user already exists")
	}
	return nil
}
