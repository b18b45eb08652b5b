package handler

import (
	"log/slog"
	"net/http"

	"storefront/internal/observability"
	"storefront/internal/response"
	"storefront/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and answers with a token for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	res, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).Info("user registered", slog.String("user_id", res.User.ID))
	response.JSON(w, http.StatusCreated, res, response.WithMessage("Account created"))
}

// Login verifies credentials and issues a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	res, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).Info("user logged in", slog.String("user_id", res.User.ID))
	response.JSON(w, http.StatusOK, res, response.WithMessage("Logged in"))
}

// Logout is acknowledged only. Tokens are stateless and dropped by the client.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, nil, response.WithMessage("Logged out"))
}

// Me returns the profile of the authenticated subject.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subject(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	profile, err := h.authService.Profile(r.Context(), subjectID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, profile)
}
