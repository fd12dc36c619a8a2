package types

import (
	"strings"
	"time"
)

// Categories is the fixed set of post categories accepted by the platform.
var Categories = []string{"Politics", "Tech", "Science", "Entertainment"}

// CanonicalCategory matches raw case-insensitively against the fixed category
// set and returns the canonical spelling. ok is false for unknown categories.
func CanonicalCategory(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, category := range Categories {
		if strings.EqualFold(category, raw) {
			return category, true
		}
	}
	return "", false
}

// Post represents an article in the publishing platform.
// LikedBy and Comments are mutated only through the interaction ledger;
// all other fields are immutable after creation.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Title is the headline of the post.
	Title string `json:"title" db:"title"`

	// Body is the full article text. Premium bodies must never be
	// serialized directly; responses go through the access projection.
	Body string `json:"-" db:"body"`

	// Category is one of the fixed Categories values.
	Category string `json:"category" db:"category"`

	// AuthorID is the identifier of the user who created the post.
	AuthorID int `json:"author_id" db:"author_id"`

	// AuthorUsername is the author's username, resolved at read time.
	AuthorUsername string `json:"author_username" db:"author_username"`

	// IsPremium marks the post as monetized. Premium bodies are gated
	// behind an entitlement check and redacted otherwise.
	IsPremium bool `json:"is_premium" db:"is_premium"`

	// CoverKey is the object storage key of the post's cover image,
	// empty when no cover has been uploaded.
	CoverKey string `json:"-" db:"cover_key"`

	// LikedBy is the set of user IDs that currently like the post.
	// Membership is unique per user. Exposed to clients only as a count.
	LikedBy []int `json:"-" db:"liked_by"`

	// Comments is the append-only, insertion-ordered comment sequence.
	Comments []Comment `json:"comments" db:"comments"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LikedByUser reports whether userID is currently in the post's like set.
func (p Post) LikedByUser(userID int) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment is a single immutable entry in a post's comment sequence.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// PostID is the identifier of the post the comment belongs to.
	PostID int `json:"post_id" db:"post_id"`

	// AuthorID is the identifier of the commenting user.
	AuthorID int `json:"author_id" db:"author_id"`

	// AuthorUsername is the commenter's username, resolved at read time.
	AuthorUsername string `json:"author_username" db:"author_username"`

	// Text is the comment body. Never empty after trimming.
	Text string `json:"text" db:"text"`

	// CreatedAt is the server-assigned append timestamp; insertion order
	// defines display order.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PublicPost is the outward, viewer-specific representation of a post.
// Body is the full text when the viewer is entitled and a fixed-length
// teaser otherwise. Comments are visible regardless of gating.
type PublicPost struct {
	ID             int       `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Category       string    `json:"category"`
	AuthorID       int       `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	IsPremium      bool      `json:"is_premium"`
	Locked         bool      `json:"locked"`
	LikeCount      int       `json:"like_count"`
	Liked          bool      `json:"liked"`
	HasCover       bool      `json:"has_cover"`
	Comments       []Comment `json:"comments"`
	CreatedAt      time.Time `json:"created_at"`
}
