package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
)

// AuthHandler provides registration, login, and identity endpoints.
type AuthHandler struct {
	userService  *services.UserService
	tokenService *auth.TokenService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, tokenService *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokenService: tokenService,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, tokenService *auth.TokenService) {
	handler := NewAuthHandler(userService, tokenService)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(RequireAuth(tokenService)).Get("/me", handler.Me)
}

// RequireAuth enforces token authentication and injects the verified
// identity into the request context. The rejection message distinguishes an
// absent token from an invalid or expired one so clients can tell "log in"
// apart from "log in again".
func RequireAuth(tokenService *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticate(r, tokenService)
			if err != nil {
				rejectToken(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuth attaches an identity when a token is present and valid, lets
// anonymous requests through, and still rejects tokens that fail
// verification rather than silently downgrading them to anonymous.
func OptionalAuth(tokenService *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticate(r, tokenService)
			if err != nil {
				if errors.Is(err, auth.ErrMissingToken) {
					next.ServeHTTP(w, r)
					return
				}
				rejectToken(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

func withIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

func authenticate(r *http.Request, tokenService *auth.TokenService) (auth.Identity, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return auth.Identity{}, err
	}
	return tokenService.Verify(tokenString)
}

func rejectToken(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrMissingToken) {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	writeError(w, http.StatusUnauthorized, "invalid or expired token")
}

// Register creates a new user account and returns a signed token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrDuplicateIdentity):
			writeError(w, http.StatusConflict, "username or email already exists")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	token, err := h.tokenService.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login verifies credentials and returns a signed token. Failures never say
// whether the identifier or the password was wrong.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.VerifyCredentials(r.Context(), identifier, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := h.tokenService.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Me returns the current authenticated user. Identity is re-resolved against
// the store, so tokens for deleted accounts stop working here.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	user, err := h.userService.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", auth.ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", auth.ErrMalformedToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}
