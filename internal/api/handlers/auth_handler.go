package handlers

import (
	"net/http"
	"time"

	"github.com/isdelr/calcapi/internal/models"
	"github.com/isdelr/calcapi/internal/monitoring"
	"github.com/isdelr/calcapi/internal/services"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	service services.UserServiceProvider
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.UserServiceProvider) *AuthHandler {
	return &AuthHandler{service: service}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	FirstName       string `json:"first_name" validate:"required,min=1,max=50"`
	LastName        string `json:"last_name" validate:"required,min=1,max=50"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Username        string `json:"username" validate:"required,min=3,max=50,excludes=@"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginPayload accepts either a username or an email as the identifier.
type LoginPayload struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=254"`
	Password   string `json:"password" validate:"required,min=1,max=128"`
}

// TokenResponse is returned by both register and login.
type TokenResponse struct {
	Message     string      `json:"message"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        models.User `json:"user"`
}

// Register handles new user registration and returns a token for the new account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decodeBody(w, r, &payload); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		Username:  payload.Username,
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
	})
	if err != nil {
		AuditLog(r, "user.register", "", false, err.Error())
		monitoring.RecordAuthAttempt("register", false)
		if status, _ := errorStatus(err); status == http.StatusInternalServerError {
			log.Error().Err(err).Str("username", payload.Username).Msg("Failed to register user")
		}
		writeServiceErr(w, err)
		return
	}

	token, _, err := h.service.IssueToken(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to issue token")
		writeErr(w, http.StatusInternalServerError, ErrCodeInternal, "internal error")
		return
	}

	AuditLog(r, "user.register", user.ID, true, "")
	monitoring.RecordAuthAttempt("register", true)
	writeJSON(w, http.StatusCreated, h.tokenResponse("User registered successfully", token, user))
}

// Login handles user authentication and JWT generation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeBody(w, r, &payload); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	user, token, err := h.service.Authenticate(r.Context(), payload.Identifier, payload.Password)
	if err != nil {
		AuditLog(r, "user.login", "", false, err.Error())
		monitoring.RecordAuthAttempt("login", false)
		if status, _ := errorStatus(err); status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("Failed to authenticate user")
		}
		writeServiceErr(w, err)
		return
	}

	AuditLog(r, "user.login", user.ID, true, "")
	monitoring.RecordAuthAttempt("login", true)
	writeJSON(w, http.StatusOK, h.tokenResponse("Login successful", token, user))
}

func (h *AuthHandler) tokenResponse(msg, token string, user models.User) TokenResponse {
	return TokenResponse{
		Message:     msg,
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.service.TokenTTL() / time.Second),
		User:        user,
	}
}
