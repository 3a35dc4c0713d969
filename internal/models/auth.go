package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the verified principal delivered by the identity provider.
// This service only validates tokens; issuance happens elsewhere.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
