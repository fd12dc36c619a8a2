package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/inkwell-blog/apiserver/internal/entitlement"
	"github.com/inkwell-blog/apiserver/internal/events"
	"github.com/inkwell-blog/apiserver/internal/storage"
	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
)

const defaultTeaserLength = 300

// PostRepository defines persistence operations for posts. ToggleLike and
// AddComment must be atomic: the repository, not the service, carries the
// no-lost-update guarantee.
type PostRepository interface {
	List(ctx context.Context, category string, offset, limit int) ([]types.Post, int, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	ToggleLike(ctx context.Context, postID, userID int) (bool, int, error)
	AddComment(ctx context.Context, postID, authorID int, text string) (types.Comment, error)
	SetCoverKey(ctx context.Context, postID int, key string) error
}

// InteractionPublisher emits interaction events after ledger mutations.
type InteractionPublisher interface {
	PublishInteraction(ctx context.Context, event events.InteractionEvent) error
}

// PostService encapsulates post use-cases: creation, gated reads, and the
// interaction ledger (like toggles and comment appends).
type PostService struct {
	repo         PostRepository
	gate         *entitlement.Gate
	media        *storage.MediaStore
	publisher    InteractionPublisher
	teaserLength int
}

func NewPostService(repo PostRepository, gate *entitlement.Gate, teaserLength int) *PostService {
	if teaserLength <= 0 {
		teaserLength = defaultTeaserLength
	}
	return &PostService{
		repo:         repo,
		gate:         gate,
		teaserLength: teaserLength,
	}
}

// WithMedia attaches an object storage backend for cover images.
func (s *PostService) WithMedia(media *storage.MediaStore) *PostService {
	s.media = media
	return s
}

// WithPublisher attaches a best-effort interaction event publisher.
func (s *PostService) WithPublisher(publisher InteractionPublisher) *PostService {
	s.publisher = publisher
	return s
}

// Create stores a new post authored by authorID.
func (s *PostService) Create(ctx context.Context, authorID int, title, body, category string, isPremium bool) (types.Post, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)

	if title == "" {
		return types.Post{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if body == "" {
		return types.Post{}, fmt.Errorf("%w: body is required", ErrInvalidInput)
	}
	canonical, ok := types.CanonicalCategory(category)
	if !ok {
		return types.Post{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}

	return s.repo.Create(ctx, types.Post{
		Title:     title,
		Body:      body,
		Category:  canonical,
		AuthorID:  authorID,
		IsPremium: isPremium,
	})
}

// List returns projected posts, newest first, optionally filtered by
// category. List views never consult the entitlement oracle: premium bodies
// are always redacted in listings, and the full body is only reachable
// through the single-post read.
func (s *PostService) List(ctx context.Context, category string, offset, limit, viewerID int) ([]types.PublicPost, int, error) {
	if category != "" {
		canonical, ok := types.CanonicalCategory(category)
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
		}
		category = canonical
	}

	posts, total, err := s.repo.List(ctx, category, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	projected := make([]types.PublicPost, 0, len(posts))
	for _, post := range posts {
		projected = append(projected, s.Project(post, !post.IsPremium, viewerID))
	}
	return projected, total, nil
}

// GetProjected loads a post and shapes it for the viewer. The entitlement
// gate decides whether the premium body is returned in full; on oracle
// failure the gate fails closed and the caller just sees a locked teaser.
func (s *PostService) GetProjected(ctx context.Context, postID, viewerID int) (types.PublicPost, error) {
	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return types.PublicPost{}, err
	}

	entitled := s.gate.IsEntitled(ctx, viewerID, post)
	return s.Project(post, entitled, viewerID), nil
}

// Project shapes a post's outward representation. When not entitled, the
// body is cut to a fixed-length prefix and the locked flag is set; nothing
// past the prefix ever leaves the server. Like identities are reduced to a
// count plus the viewer's own membership, and comments stay visible
// regardless of gating.
func (s *PostService) Project(post types.Post, entitled bool, viewerID int) types.PublicPost {
	body := post.Body
	locked := false
	if !entitled {
		body = teaser(post.Body, s.teaserLength)
		locked = true
	}

	comments := post.Comments
	if comments == nil {
		comments = []types.Comment{}
	}

	return types.PublicPost{
		ID:             post.ID,
		Title:          post.Title,
		Body:           body,
		Category:       post.Category,
		AuthorID:       post.AuthorID,
		AuthorUsername: post.AuthorUsername,
		IsPremium:      post.IsPremium,
		Locked:         locked,
		LikeCount:      len(post.LikedBy),
		Liked:          viewerID != entitlement.AnonymousUser && post.LikedByUser(viewerID),
		HasCover:       post.CoverKey != "",
		Comments:       comments,
		CreatedAt:      post.CreatedAt,
	}
}

// ToggleLike atomically flips userID's like on the post and reports the
// resulting membership and count.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID int) (bool, int, error) {
	liked, likeCount, err := s.repo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return false, 0, err
	}

	s.publish(ctx, events.InteractionEvent{
		Kind:       events.KindLike,
		PostID:     postID,
		UserID:     userID,
		Liked:      liked,
		OccurredAt: time.Now(),
	})
	return liked, likeCount, nil
}

// AddComment appends a comment with a server-assigned timestamp. Text must
// be non-empty after trimming; nothing is mutated otherwise.
func (s *PostService) AddComment(ctx context.Context, postID, userID int, text string) (types.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Comment{}, fmt.Errorf("%w: comment text is required", ErrInvalidInput)
	}

	comment, err := s.repo.AddComment(ctx, postID, userID, text)
	if err != nil {
		return types.Comment{}, err
	}

	s.publish(ctx, events.InteractionEvent{
		Kind:       events.KindComment,
		PostID:     postID,
		UserID:     userID,
		CommentID:  comment.ID,
		OccurredAt: comment.CreatedAt,
	})
	return comment, nil
}

// UploadCover stores a cover image for the post. Only the post's author may
// upload one.
func (s *PostService) UploadCover(ctx context.Context, postID, userID int, data []byte) error {
	if s.media == nil {
		return errors.New("media storage is not configured")
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: cover image is empty", ErrInvalidInput)
	}

	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return ErrForbidden
	}

	key := storage.CoverKey(postID)
	contentType := http.DetectContentType(data)
	if err := s.media.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return err
	}
	return s.repo.SetCoverKey(ctx, postID, key)
}

// GetCover opens the post's cover image for streaming.
func (s *PostService) GetCover(ctx context.Context, postID int) (io.ReadCloser, error) {
	if s.media == nil {
		return nil, store.ErrNotFound
	}

	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.CoverKey == "" {
		return nil, store.ErrNotFound
	}
	return s.media.Get(ctx, post.CoverKey)
}

// publish is best-effort: interaction events feed notifications, and a
// broker outage must not fail the mutation that already committed.
func (s *PostService) publish(ctx context.Context, event events.InteractionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInteraction(ctx, event); err != nil {
		log.Printf("failed to publish %s event for post %d: %v", event.Kind, event.PostID, err)
	}
}

// teaser returns the first limit runes of body. The boundary is
// deterministic so every non-entitled view of the same post sees the same
// prefix.
func teaser(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit])
}
