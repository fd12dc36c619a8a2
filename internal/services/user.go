package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService owns credential issuance: registration hashes passwords through
// bcrypt before anything is persisted, and verification compares against the
// stored hash only. Plaintext passwords never leave these two functions.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates a new account. Usernames and emails are unique; duplicates
// surface as ErrDuplicateIdentity without mutating the store.
func (s *UserService) Register(ctx context.Context, username, email, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return types.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if password == "" {
		return types.User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if !validEmail(email) {
		return types.User{}, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateIdentity
		}
		return types.User{}, err
	}
	return user, nil
}

// VerifyCredentials resolves identifier as a username or email and compares
// password against the stored bcrypt hash. The comparison is constant-time
// with respect to the hash.
func (s *UserService) VerifyCredentials(ctx context.Context, identifier, password string) (types.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return types.User{}, fmt.Errorf("%w: missing credentials", ErrInvalidInput)
	}

	user, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	// Reject display-name forms like `Name <a@b.c>`; only the bare address
	// is a valid identity field.
	return err == nil && addr.Address == email
}
