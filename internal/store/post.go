package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/inkwell-blog/apiserver/types"
	"github.com/lib/pq"
)

// PostRepository handles persistence for posts and their interaction state.
// Like toggles and comment appends run as single transactions so concurrent
// mutations never lose updates; the (post_id, user_id) primary key on
// post_likes enforces set semantics for likes.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) List(ctx context.Context, category string, offset, limit int) ([]types.Post, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM posts WHERE ($1 = '' OR category = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, category).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT p.id, p.title, p.body, p.category, p.author_id, u.username,
			p.is_premium, p.cover_key,
			ARRAY(SELECT l.user_id FROM post_likes l WHERE l.post_id = p.id ORDER BY l.created_at),
			p.created_at, p.updated_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE ($1 = '' OR p.category = $1)
		ORDER BY p.created_at DESC, p.id DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, category, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `
		SELECT p.id, p.title, p.body, p.category, p.author_id, u.username,
			p.is_premium, p.cover_key,
			ARRAY(SELECT l.user_id FROM post_likes l WHERE l.post_id = p.id ORDER BY l.created_at),
			p.created_at, p.updated_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}

	comments, err := r.listComments(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	post.Comments = comments
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	const query = `
		INSERT INTO posts (title, body, category, author_id, is_premium, cover_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Body,
		post.Category,
		post.AuthorID,
		post.IsPremium,
		post.CoverKey,
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID); err != nil {
		return types.Post{}, err
	}
	post.Comments = []types.Comment{}
	return post, nil
}

// ToggleLike atomically flips userID's membership in the post's like set and
// returns the resulting state. The delete-then-insert pair runs inside one
// transaction; the primary key absorbs racing inserts for the same user, so
// a retried toggle can never double-count.
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID int) (bool, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	var exists bool
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`
	if err := tx.QueryRowContext(ctx, existsQuery, postID).Scan(&exists); err != nil {
		return false, 0, err
	}
	if !exists {
		return false, 0, ErrNotFound
	}

	const deleteQuery = `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`
	result, err := tx.ExecContext(ctx, deleteQuery, postID, userID)
	if err != nil {
		return false, 0, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, 0, err
	}

	liked := false
	if removed == 0 {
		const insertQuery = `
			INSERT INTO post_likes (post_id, user_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (post_id, user_id) DO NOTHING`
		if _, err := tx.ExecContext(ctx, insertQuery, postID, userID, time.Now()); err != nil {
			return false, 0, err
		}
		liked = true
	}

	var likeCount int
	const countQuery = `SELECT COUNT(1) FROM post_likes WHERE post_id = $1`
	if err := tx.QueryRowContext(ctx, countQuery, postID).Scan(&likeCount); err != nil {
		return false, 0, err
	}

	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return liked, likeCount, nil
}

// AddComment appends a comment to the post's sequence. Appends never replace
// existing rows, so concurrent comments from different users all survive.
func (r *PostRepository) AddComment(ctx context.Context, postID, authorID int, text string) (types.Comment, error) {
	comment := types.Comment{
		PostID:    postID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now(),
	}

	const query = `
		INSERT INTO comments (post_id, author_id, text, created_at)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (SELECT 1 FROM posts WHERE id = $1)
		RETURNING id, (SELECT username FROM users WHERE id = $2)`
	err := r.db.QueryRowContext(
		ctx,
		query,
		comment.PostID,
		comment.AuthorID,
		comment.Text,
		comment.CreatedAt,
	).Scan(&comment.ID, &comment.AuthorUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}

// SetCoverKey records the object storage key of the post's cover image.
func (r *PostRepository) SetCoverKey(ctx context.Context, postID int, key string) error {
	const query = `UPDATE posts SET cover_key = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), postID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostRepository) listComments(ctx context.Context, postID int) ([]types.Comment, error) {
	const query = `
		SELECT c.id, c.post_id, c.author_id, u.username, c.text, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []types.Comment{}
	for rows.Next() {
		var comment types.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.PostID,
			&comment.AuthorID,
			&comment.AuthorUsername,
			&comment.Text,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	var likedBy pq.Int64Array
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Body,
		&post.Category,
		&post.AuthorID,
		&post.AuthorUsername,
		&post.IsPremium,
		&post.CoverKey,
		&likedBy,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return types.Post{}, err
	}

	post.LikedBy = make([]int, 0, len(likedBy))
	for _, id := range likedBy {
		post.LikedBy = append(post.LikedBy, int(id))
	}
	return post, nil
}
