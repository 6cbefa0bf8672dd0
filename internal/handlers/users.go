package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/leafcheck/internal/services"
	pkghttp "github.com/BradenHooton/leafcheck/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserService defines the interface for user administration
type UserService interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*services.UserSummary, error)
}

// UserHandler handles admin user-related HTTP requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// ListUsersResponse represents a page of users
type ListUsersResponse struct {
	Users []*services.UserSummary `json:"users"`
	Total int                     `json:"total"`
}

// RegisterRoutes registers the user routes with the chi router. Callers
// apply the auth and role middleware.
func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Get("/users", h.ListUsers)
}

// ListUsers retrieves a list of users with pagination
//
// @Summary List users
// @Security BearerAuth
// @Param limit query int false "Limit (default 20)" default(20)
// @Param offset query int false "Offset (default 0)" default(0)
// @Produce json
// @Success 200 {object} ListUsersResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := services.DefaultListLimit
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if err := parseIntParam(l, &limit, 1, services.MaxListLimit); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if err := parseIntParam(o, &offset, 0, 10000); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid offset parameter")
			return
		}
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &ListUsersResponse{
		Users: users,
		Total: len(users),
	})
}

// parseIntParam parses value into dest when it lies within [min, max]
func parseIntParam(value string, dest *int, min, max int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}

	if n < min || n > max {
		return strconv.ErrRange
	}

	*dest = n
	return nil
}
