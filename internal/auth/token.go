package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. Handlers map these to client-facing statuses;
// ErrMissingToken is kept distinct so clients can tell "log in" apart from
// "log in again".
var (
	ErrMissingToken     = errors.New("missing token")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
)

// Identity is the verified claim set of a request: "this request acts as
// user X". It is attached to the request context by the auth middleware.
type Identity struct {
	UserID   int
	Username string
}

// Claims is the fixed token payload schema. Tokens missing required claims
// are rejected as malformed rather than partially trusted.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-bound identity assertions.
// The signing secret is injected once at construction and never rotated for
// the process lifetime.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue produces a signed HS256 token asserting the given identity for the
// configured lifetime. Payload fields are integrity-protected, not secret.
func (s *TokenService) Issue(userID int, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the token string cryptographically and returns the embedded
// identity. No storage lookup happens here; trust is in the signature.
func (s *TokenService) Verify(tokenString string) (Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSignature):
			return Identity{}, ErrInvalidSignature
		default:
			return Identity{}, ErrMalformedToken
		}
	}
	if !token.Valid {
		return Identity{}, ErrInvalidSignature
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 || strings.TrimSpace(claims.Username) == "" {
		return Identity{}, ErrMalformedToken
	}

	return Identity{
		UserID:   userID,
		Username: claims.Username,
	}, nil
}
