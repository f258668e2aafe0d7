package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	accessTokenTTL  = 30 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type Claims struct {
	TenantID  string `json:"tenant_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is what the dashboard login hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func GenerateToken(userID, tenantID, email, role, tokenType, secret string, ttl time.Duration) (string, error) {
	claims := &Claims{
		TenantID:  tenantID,
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateTokenPair mints a short-lived access token and a refresh token.
func GenerateTokenPair(userID, tenantID, email, role, secret string) (*TokenPair, error) {
	access, err := GenerateToken(userID, tenantID, email, role, TokenTypeAccess, secret, accessTokenTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := GenerateToken(userID, tenantID, email, role, TokenTypeRefresh, secret, refreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(accessTokenTTL.Seconds()),
	}, nil
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// RefreshAccessToken issues a new access token from a valid refresh token.
func RefreshAccessToken(refreshToken, secret string) (string, error) {
	claims, err := ValidateToken(refreshToken, secret)
	if err != nil {
		return "", err
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", errors.New("not a refresh token")
	}

	return GenerateToken(claims.Subject, claims.TenantID, claims.Email, claims.Role, TokenTypeAccess, secret, accessTokenTTL)
}
