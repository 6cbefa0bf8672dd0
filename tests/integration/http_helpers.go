//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/leafcheck/internal/auth"
	"github.com/BradenHooton/leafcheck/internal/config"
	"github.com/BradenHooton/leafcheck/internal/database"
	"github.com/BradenHooton/leafcheck/internal/handlers"
	middlewareCustom "github.com/BradenHooton/leafcheck/internal/middleware"
	"github.com/BradenHooton/leafcheck/internal/repositories"
	"github.com/BradenHooton/leafcheck/internal/routes"
	"github.com/BradenHooton/leafcheck/internal/services"
	pkglogger "github.com/BradenHooton/leafcheck/pkg/logger"
)

// CapturingNotifier records every message instead of sending it
type CapturingNotifier struct {
	mu   sync.Mutex
	sent []services.Message
	fail bool
}

func (n *CapturingNotifier) Send(ctx context.Context, msg services.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail {
		return context.DeadlineExceeded
	}
	n.sent = append(n.sent, msg)
	return nil
}

// SetFailing makes subsequent sends fail
func (n *CapturingNotifier) SetFailing(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = fail
}

// LastTo returns the most recent message sent to address
func (n *CapturingNotifier) LastTo(address string) *services.Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].To == address {
			msg := n.sent[i]
			return &msg
		}
	}
	return nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	UserRepo *repositories.UserRepository
	Notifier *CapturingNotifier
	Config   *config.Config
}

// NewTestServer initializes a complete HTTP server with real database and a
// capturing notifier
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:           "test-secret-32-characters-long-for-testing",
			SessionTokenExpiry:  30 * 24 * time.Hour,
			OTPExpiry:           10 * time.Minute,
			ResetTokenExpiry:    10 * time.Minute,
			CleanupInterval:     time.Hour,
			TimingDelayBaseMs:   5,
			TimingDelayRandomMs: 5,
		},
		Email: config.EmailConfig{
			Provider:      config.EmailProviderLog,
			FromAddress:   "noreply@test.local",
			FrontendURL:   "http://localhost:5173",
			NotifyTimeout: 2 * time.Second,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            config.EnvTest,
			AllowedOrigins: []string{},
		},
	}

	userRepo := NewUserRepository(db)
	notifier := &CapturingNotifier{}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)
	secretIssuer := auth.NewSecretIssuer(cfg.Auth.OTPExpiry, cfg.Auth.ResetTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	authService := services.NewAuthService(
		userRepo,
		secretIssuer,
		tokenManager,
		notifier,
		timingDelay,
		logger,
		pkglogger.NewAuditLogger(logger),
		services.AuthOptions{
			FrontendURL:   cfg.Email.FrontendURL,
			NotifyTimeout: cfg.Email.NotifyTimeout,
		},
	)
	userService := services.NewUserService(userRepo, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(middlewareCustom.SecureLogger(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		routes.RegisterRoutes(api,
			handlers.NewAuthHandler(authService),
			handlers.NewUserHandler(userService),
			tokenManager, userRepo, logger)
	})

	return &TestServer{
		Server:   httptest.NewServer(r),
		DB:       db,
		UserRepo: userRepo,
		Notifier: notifier,
		Config:   cfg,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// ParseJSONResponse parses JSON response body into target
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
