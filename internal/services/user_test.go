package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByIdentifier(ctx context.Context, identifier string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == identifier || user.Email == identifier {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
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

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func TestRegisterAndVerifyCredentials(t *testing.T) {
	service := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	user, err := service.Register(ctx, "alice", "alice@example.com", "hunter2!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID < 1 {
		t.Errorf("got user id %d, want >= 1", user.ID)
	}
	if user.PasswordHash == "hunter2!" || user.PasswordHash == "" {
		t.Error("password stored unhashed")
	}
	if !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Errorf("password hash %q is not bcrypt", user.PasswordHash[:4])
	}

	// Verify works both by username and by email.
	for _, identifier := range []string{"alice", "alice@example.com"} {
		verified, err := service.VerifyCredentials(ctx, identifier, "hunter2!")
		if err != nil {
			t.Fatalf("verify with %q: %v", identifier, err)
		}
		if verified.ID != user.ID {
			t.Errorf("verify with %q got user %d, want %d", identifier, verified.ID, user.ID)
		}
	}
}

func TestRegisterHashCost(t *testing.T) {
	service := NewUserService(newFakeUserRepo())

	user, err := service.Register(context.Background(), "alice", "alice@example.com", "hunter2!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(user.PasswordHash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost < 10 {
		t.Errorf("bcrypt cost %d, want >= 10", cost)
	}
}

func TestRegisterDuplicateDoesNotMutate(t *testing.T) {
	repo := newFakeUserRepo()
	service := NewUserService(repo)
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice", "alice@example.com", "hunter2!"); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct{ username, email string }{
		{"alice", "other@example.com"},
		{"other", "alice@example.com"},
	}
	for _, tc := range cases {
		if _, err := service.Register(ctx, tc.username, tc.email, "hunter2!"); !errors.Is(err, ErrDuplicateIdentity) {
			t.Errorf("Register(%q, %q) = %v, want ErrDuplicateIdentity", tc.username, tc.email, err)
		}
	}
	if got := repo.count(); got != 1 {
		t.Errorf("store has %d users after duplicate registrations, want 1", got)
	}
}

func TestRegisterInvalidInput(t *testing.T) {
	service := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	cases := []struct {
		name                      string
		username, email, password string
	}{
		{"empty username", "", "a@example.com", "pw"},
		{"blank username", "   ", "a@example.com", "pw"},
		{"empty password", "alice", "a@example.com", ""},
		{"empty email", "alice", "", "pw"},
		{"malformed email", "alice", "not-an-email", "pw"},
		{"display-name email", "alice", "Alice <a@example.com>", "pw"},
	}
	for _, tc := range cases {
		if _, err := service.Register(ctx, tc.username, tc.email, tc.password); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: got %v, want ErrInvalidInput", tc.name, err)
		}
	}
}

func TestVerifyCredentialsFailures(t *testing.T) {
	service := NewUserService(newFakeUserRepo())
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice", "alice@example.com", "hunter2!"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := service.VerifyCredentials(ctx, "nobody", "hunter2!"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown identifier: got %v, want ErrNotFound", err)
	}
	if _, err := service.VerifyCredentials(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := service.VerifyCredentials(ctx, "", "hunter2!"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty identifier: got %v, want ErrInvalidInput", err)
	}
}
