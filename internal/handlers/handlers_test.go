package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/entitlement"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/storage"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
)

const testTeaserLength = 300

// memUserRepo is an in-memory services.UserRepository.
type memUserRepo struct {
	mu     sync.Mutex
	users  map[int]types.User
	nextID int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *memUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.GetByIdentifier(context.Background(), username)
}

func (r *memUserRepo) GetByIdentifier(ctx context.Context, identifier string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == identifier || user.Email == identifier {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) delete(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// memPostRepo is an in-memory services.PostRepository with the same
// atomicity guarantees the SQL store provides.
type memPostRepo struct {
	mu            sync.Mutex
	posts         map[int]types.Post
	likes         map[int]map[int]bool
	comments      map[int][]types.Comment
	nextPostID    int
	nextCommentID int
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{
		posts:      map[int]types.Post{},
		likes:      map[int]map[int]bool{},
		comments:   map[int][]types.Comment{},
		nextPostID: 1,
	}
}

func (r *memPostRepo) List(ctx context.Context, category string, offset, limit int) ([]types.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	posts := []types.Post{}
	for id := 1; id < r.nextPostID; id++ {
		post, ok := r.posts[id]
		if !ok {
			continue
		}
		if category != "" && post.Category != category {
			continue
		}
		posts = append(posts, r.hydrate(post))
	}
	return posts, len(posts), nil
}

func (r *memPostRepo) Get(ctx context.Context, id int) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	post = r.hydrate(post)
	post.Comments = append([]types.Comment{}, r.comments[id]...)
	return post, nil
}

func (r *memPostRepo) Create(ctx context.Context, post types.Post) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = r.nextPostID
	r.nextPostID++
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) ToggleLike(ctx context.Context, postID, userID int) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[postID]; !ok {
		return false, 0, store.ErrNotFound
	}
	members := r.likes[postID]
	if members == nil {
		members = map[int]bool{}
		r.likes[postID] = members
	}
	liked := !members[userID]
	if liked {
		members[userID] = true
	} else {
		delete(members, userID)
	}
	return liked, len(members), nil
}

func (r *memPostRepo) AddComment(ctx context.Context, postID, authorID int, text string) (types.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[postID]; !ok {
		return types.Comment{}, store.ErrNotFound
	}
	r.nextCommentID++
	comment := types.Comment{
		ID:        r.nextCommentID,
		PostID:    postID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	r.comments[postID] = append(r.comments[postID], comment)
	return comment, nil
}

func (r *memPostRepo) SetCoverKey(ctx context.Context, postID int, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok {
		return store.ErrNotFound
	}
	post.CoverKey = key
	r.posts[postID] = post
	return nil
}

func (r *memPostRepo) hydrate(post types.Post) types.Post {
	likedBy := make([]int, 0, len(r.likes[post.ID]))
	for userID := range r.likes[post.ID] {
		likedBy = append(likedBy, userID)
	}
	post.LikedBy = likedBy
	return post
}

type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: map[string][]byte{}}
}

func (s *memObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (s *memObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memObjectStorage) Bucket() string { return "test-bucket" }

type stubOracle struct {
	granted bool
}

func (o *stubOracle) Entitled(ctx context.Context, userID, postID int) (bool, error) {
	return o.granted, nil
}

// testEnv wires real services over in-memory fakes behind a chi router.
type testEnv struct {
	router       *chi.Mux
	userRepo     *memUserRepo
	postRepo     *memPostRepo
	tokenService *auth.TokenService
	postService  *services.PostService
}

func newTestEnv(t *testing.T, oracle entitlement.Oracle) *testEnv {
	t.Helper()

	userRepo := newMemUserRepo()
	postRepo := newMemPostRepo()
	tokenService := auth.NewTokenService("test-secret", time.Hour)
	userService := services.NewUserService(userRepo)
	gate := entitlement.NewGate(oracle, time.Second)
	postService := services.NewPostService(postRepo, gate, testTeaserLength)
	postService.WithMedia(storage.NewMediaStore(newMemObjectStorage()))

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, tokenService)
	})
	router.Route("/posts", func(r chi.Router) {
		PostRouter(r, postService, RequireAuth(tokenService), OptionalAuth(tokenService))
	})

	return &testEnv{
		router:       router,
		userRepo:     userRepo,
		postRepo:     postRepo,
		tokenService: tokenService,
		postService:  postService,
	}
}

// do performs a JSON request against the test router.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

func (e *testEnv) register(t *testing.T, username, email, password string) (types.User, string) {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register %q: status %d: %s", username, resp.Code, resp.Body.String())
	}

	var body AuthResponse
	decodeJSON(t, resp, &body)
	return body.User, body.Token
}

func (e *testEnv) createPost(t *testing.T, token, title, bodyText, category string, premium bool) types.PublicPost {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/posts", token, CreatePostRequest{
		Title:     title,
		Body:      bodyText,
		Category:  category,
		IsPremium: premium,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create post: status %d: %s", resp.Code, resp.Body.String())
	}

	var post types.PublicPost
	decodeJSON(t, resp, &post)
	return post
}

func decodeJSON(t *testing.T, resp *httptest.ResponseRecorder, value any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(value); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error response %q: %v", resp.Body.String(), err)
	}
	return body.Error
}
