package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/datamart-io/marketplace-api/internal/models"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
)

// AuthService validates access tokens issued by the external identity
// provider. This service never issues tokens or handles credentials.
type AuthService struct {
	secret []byte
}

// NewAuthService constructs the validator with the shared HMAC secret.
func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}
