package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
)

const (
	maxMultipartMemory = 8 << 20
	maxCoverBytes      = 16 << 20
	formFieldCover     = "cover"
)

// PostHandler provides HTTP handlers for posts and interactions.
type PostHandler struct {
	postService *services.PostService
}

// NewPostHandler constructs a handler with the provided service.
func NewPostHandler(postService *services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// PostRouter registers post routes on the given router. Reads take an
// optional identity; every mutation sits behind the auth guard.
func PostRouter(
	r chi.Router,
	postService *services.PostService,
	authMiddleware func(http.Handler) http.Handler,
	optionalAuthMiddleware func(http.Handler) http.Handler,
) {
	handler := NewPostHandler(postService)

	r.With(optionalAuthMiddleware).Get("/", handler.ListPosts)
	r.With(authMiddleware).Post("/", handler.CreatePost)
	r.Route("/{postID}", func(r chi.Router) {
		r.With(optionalAuthMiddleware).Get("/", handler.GetPost)
		r.With(authMiddleware).Put("/like", handler.ToggleLike)
		r.With(authMiddleware).Post("/comments", handler.AddComment)
		r.With(authMiddleware).Post("/cover", handler.UploadCover)
		r.Get("/cover", handler.GetCover)
	})
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	viewerID := viewerIDFromContext(r.Context())

	items, total, err := h.postService.List(r.Context(), category, offset, limit, viewerID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}

	writeJSON(w, http.StatusOK, PostListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewerID := viewerIDFromContext(r.Context())
	post, err := h.postService.GetProjected(r.Context(), id, viewerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.postService.Create(r.Context(), identity.UserID, req.Title, req.Body, req.Category, req.IsPremium)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	// The author is always entitled to their own fresh post.
	writeJSON(w, http.StatusCreated, h.postService.Project(created, true, identity.UserID))
}

func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	liked, likeCount, err := h.postService.ToggleLike(r.Context(), id, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to toggle like")
		return
	}

	writeJSON(w, http.StatusOK, LikeResponse{Liked: liked, LikeCount: likeCount})
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	comment, err := h.postService.AddComment(r.Context(), id, identity.UserID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "post not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to add comment")
		}
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

func (h *PostHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := parseCoverFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.postService.UploadCover(r.Context(), id, identity.UserID, data); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "post not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "only the author may upload a cover")
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to store cover")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reader, err := h.postService.GetCover(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "cover not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch cover")
		return
	}
	defer reader.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(reader, head)
	head = head[:n]

	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(head)
	_, _ = io.Copy(w, reader)
}

type CreatePostRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Category  string `json:"category"`
	IsPremium bool   `json:"is_premium"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type LikeResponse struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// PostListResponse is the paginated list response payload.
type PostListResponse struct {
	Items []types.PublicPost `json:"items"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
}

func parseCoverFile(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, errors.New("invalid multipart form")
	}
	if r.MultipartForm == nil {
		return nil, errors.New("missing form data")
	}

	files := r.MultipartForm.File[formFieldCover]
	if len(files) == 0 {
		return nil, errors.New("cover file is required")
	}
	if len(files) > 1 {
		return nil, errors.New("only one cover file is allowed")
	}

	file, err := files[0].Open()
	if err != nil {
		return nil, errors.New("failed to read cover file")
	}
	defer file.Close()

	limited := io.LimitReader(file, maxCoverBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > maxCoverBytes {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
