// Package auth resolves the verified identity behind an incoming connection.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mcdev12/retroboard/go/internal/models"
	"github.com/mcdev12/retroboard/go/internal/retro"
)

// Resolver returns the identity of the caller of r.
type Resolver interface {
	Resolve(r *http.Request) (models.Identity, error)
}

var (
	errMissingToken = errors.New("missing token")
	errMissingSub   = errors.New("token has no subject")
)

// Claims are the JWT claims carried by a connection token.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver accepts HS256 tokens from the Authorization header or, for
// browser websockets that cannot set headers, the token query parameter.
type JWTResolver struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTResolver creates a resolver verifying tokens with secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Resolve implements Resolver. Failures wrap retro.ErrUnauthorized.
func (j *JWTResolver) Resolve(r *http.Request) (models.Identity, error) {
	tokenStr := tokenFromRequest(r)
	if tokenStr == "" {
		return models.Identity{}, fmt.Errorf("%w: %v", retro.ErrUnauthorized, errMissingToken)
	}

	claims := &Claims{}
	if _, err := j.parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}); err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", retro.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return models.Identity{}, fmt.Errorf("%w: %v", retro.ErrUnauthorized, errMissingSub)
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return models.Identity{UserID: claims.Subject, DisplayName: name}, nil
}

// Issue signs a token for identity that expires after ttl.
func (j *JWTResolver) Issue(identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
