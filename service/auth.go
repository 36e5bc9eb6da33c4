package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

type Claims struct {
	jwt.StandardClaims
}

const (
	tokenIssuer    = "frostvault"
	expireDuration = 24 * time.Hour
)

// AuthService issues and checks the bearer tokens guarding the admin API
// surface (role grants, route deployment, sweep enqueueing).
type AuthService struct {
	JWTSecret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{
		JWTSecret: []byte(secret),
	}
}

func (a *AuthService) GenerateToken() (string, error) {
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(expireDuration).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.JWTSecret)
}

func (a *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if claims.Issuer != tokenIssuer {
		return nil, errors.New("unknown token issuer")
	}
	return claims, nil
}

func (a *AuthService) RefreshToken(oldToken string) (string, error) {
	if _, err := a.ValidateToken(oldToken); err != nil {
		return "", err
	}
	return a.GenerateToken()
}
