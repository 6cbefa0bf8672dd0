package routes

import (
	"log/slog"

	"github.com/BradenHooton/leafcheck/internal/auth"
	"github.com/BradenHooton/leafcheck/internal/handlers"
	"github.com/BradenHooton/leafcheck/internal/models"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes under router, which main
// mounts at /api.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
	userRepo auth.UserRepository,
	logger *slog.Logger,
) {
	authMiddleware := auth.AuthMiddleware(tokenManager, userRepo, logger)

	router.Route("/auth", func(r chi.Router) {
		// Public routes - no authentication required
		r.Post("/register", authHandler.Register)
		r.Post("/verify-otp", authHandler.VerifyOTP)
		r.Post("/resend-otp", authHandler.ResendOTP)
		r.Post("/login", authHandler.Login)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Put("/reset-password/{resettoken}", authHandler.ResetPassword)

		// Protected routes - authentication required
		r.With(authMiddleware).Get("/me", authHandler.Me)
	})

	// Admin-only routes
	router.Route("/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(auth.RequireRole(models.RoleAdmin))
		userHandler.RegisterRoutes(r)
	})
}
