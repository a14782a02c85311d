// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/michaelongaro/Squeak-sub000/internal/models"
)

// ErrInvalidToken covers every token that fails to parse or verify.
var ErrInvalidToken = errors.New("invalid session token")

const issuer = "squeak"

// Claims carries the session identity.
type Claims struct {
	Username string `json:"name"`
	Guest    bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a signer for the given secret. A non-positive ttl means 24h.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// NewGuest creates a guest identity with a fresh ID. Blank names become "Guest-xxxx".
func NewGuest(username string) *models.User {
	id := uuid.New()
	username = strings.TrimSpace(username)
	if username == "" {
		username = "Guest-" + id.String()[:4]
	}
	if len(username) > 24 {
		username = username[:24]
	}
	return &models.User{ID: id, Username: username, IsGuest: true}
}

// Issue signs a token for user.
func (s *Signer) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		Guest:    user.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse verifies a token and returns the user it names.
func (s *Signer) Parse(token string) (*models.User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return &models.User{ID: id, Username: claims.Username, IsGuest: claims.Guest}, nil
}

// HashPassword hashes a room password for storage.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword reports whether password matches hash. An empty hash accepts anything.
func CheckPassword(hash []byte, password string) bool {
	if len(hash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
