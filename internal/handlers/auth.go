package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/auth"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler provides registration, login, and session endpoints.
type AuthHandler struct {
	userService  *services.UserService
	issuer       *auth.Issuer
	cookieSecure bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, issuer *auth.Issuer, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		issuer:       issuer,
		cookieSecure: cookieSecure,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, issuer *auth.Issuer, gate *Gatekeeper, cookieSecure bool) {
	handler := NewAuthHandler(userService, issuer, cookieSecure)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(gate.RequireAPI).Get("/me", handler.Me)
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the issued token and a minimal identity
// projection. The password hash never appears here; types.User hides
// it from serialization.
type AuthResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

// Register creates a new account and returns a signed token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if _, err := h.userService.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "User already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeServiceError(w, err, "User")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeServiceError(w, err, "User")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		// The pre-check above can race a concurrent registration; the
		// unique constraint is the authority.
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "User already exists")
			return
		}
		writeServiceError(w, err, "User")
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		writeServiceError(w, err, "Token")
		return
	}

	h.setTokenCookie(w, token)
	writeData(w, http.StatusCreated, AuthResponse{User: user, Token: token}, "User registered successfully")
}

// Login verifies credentials and returns a signed token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing email or password")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeServiceError(w, err, "User")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		writeServiceError(w, err, "Token")
		return
	}

	h.setTokenCookie(w, token)
	writeData(w, http.StatusOK, AuthResponse{User: user, Token: token}, "Login successful")
}

// Logout clears the token cookie. The token itself stays valid until
// expiry; there is no server-side revocation.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeData(w, http.StatusOK, nil, "Logged out")
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeServiceError(w, err, "User")
		return
	}

	writeData(w, http.StatusOK, user, "User fetched successfully")
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.issuer.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
