package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell-blog/apiserver/internal/auth"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// identityFromContext returns the authenticated identity attached by the
// auth middleware.
func identityFromContext(ctx context.Context) (auth.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(auth.Identity)
	if !ok || identity.UserID < 1 {
		return auth.Identity{}, errors.New("missing identity")
	}
	return identity, nil
}

// viewerIDFromContext returns the authenticated user ID, or 0 for anonymous
// requests.
func viewerIDFromContext(ctx context.Context) int {
	identity, err := identityFromContext(ctx)
	if err != nil {
		return 0
	}
	return identity.UserID
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parsePostID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "postID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
