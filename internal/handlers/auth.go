package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/internal/services"
)

var (
	errMissingToken = errors.New("missing bearer token")

	errAuthRequired = oops.Code(services.CodeUnauthenticated).Errorf("authentication required")
	errBadToken     = oops.Code(services.CodeForbidden).Errorf("invalid or expired token")
)

// TokenVerifier resolves a bearer token to the user id it was issued for.
type TokenVerifier interface {
	Verify(token string) (primitive.ObjectID, error)
}

// RequireAuth rejects requests without a bearer token with 401 and requests
// whose token fails verification with 403. On success the user id is stored
// in the request context.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeServiceError(w, r, nil, errAuthRequired)
				return
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				writeServiceError(w, r, nil, errBadToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>". Any
// other header shape counts as a missing token.
func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errMissingToken
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
