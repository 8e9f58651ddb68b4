// ABOUTME: HS256 JWTs for API bearer tokens and signed update webhooks
// ABOUTME: Subject is the account ID for API tokens and "techscore" for webhooks

package auth

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest accepted HS256 secret.
const MinSecretLength = 32

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrShortSecret  = fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
)

// TokenVerifier resolves a bearer token to the account ID it was issued for.
type TokenVerifier interface {
	Verify(tokenString string) (userID string, err error)
}

// JWTVerifier signs and checks tokens with a shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

var _ TokenVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrShortSecret
	}
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// Verify checks the token and returns its "sub" claim.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	claims, err := v.Parse(tokenString)
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// Parse checks the token and returns every claim it carries.
func (v *JWTVerifier) Parse(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Generate mints an API token for userID.
func (v *JWTVerifier) Generate(userID string, expiresIn time.Duration) (string, error) {
	return v.Sign(userID, expiresIn, nil)
}

// Sign mints a token for subject with extra claims. The registered sub,
// iat and exp claims always win over extra.
func (v *JWTVerifier) Sign(subject string, expiresIn time.Duration, extra map[string]any) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{}
	maps.Copy(claims, extra)
	claims["sub"] = subject
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(expiresIn).Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
