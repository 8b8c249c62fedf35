package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTokenTTL is how long an issued bearer token stays valid.
const DefaultTokenTTL = time.Hour

var (
	// ErrMissingSecret is returned when no signing secret was configured.
	ErrMissingSecret = errors.New("token signing secret is not configured")

	// ErrInvalidToken is returned for tokens that fail signature, expiry or
	// claim checks.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the payload of an issued bearer token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens with a process-wide secret.
// A Tokens value is safe for concurrent use.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens constructs a Tokens with the default one hour lifetime. An empty
// secret is accepted; issuing and verifying then fail with ErrMissingSecret.
func NewTokens(secret string) *Tokens {
	return &Tokens{
		secret: []byte(strings.TrimSpace(secret)),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
}

// WithTTL returns a copy of t that issues tokens valid for ttl.
func (t *Tokens) WithTTL(ttl time.Duration) *Tokens {
	clone := *t
	clone.ttl = ttl
	return &clone
}

// Configured reports whether a signing secret is present.
func (t *Tokens) Configured() bool {
	return len(t.secret) > 0
}

// Issue signs a token embedding userID.
func (t *Tokens) Issue(userID primitive.ObjectID) (string, error) {
	if !t.Configured() {
		return "", ErrMissingSecret
	}
	now := t.now()
	claims := Claims{
		UserID: userID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks the signature and expiry of tokenString and returns the
// embedded user id.
func (t *Tokens) Verify(tokenString string) (primitive.ObjectID, error) {
	if !t.Configured() {
		return primitive.NilObjectID, ErrMissingSecret
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(t.now))
	if err != nil {
		return primitive.NilObjectID, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return primitive.NilObjectID, ErrInvalidToken
	}

	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(claims.UserID))
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return userID, nil
}
