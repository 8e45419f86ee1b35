package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// Claims identify the caller: Subject is the signer or proposer identity.
type Claims struct {
	jwt.StandardClaims
}

const (
	expireDuration = 7 * 24 * time.Hour
)

type AuthService struct {
	JWTSecret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{
		JWTSecret: []byte(secret),
	}
}

func (a *AuthService) GenerateToken(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("identity is required")
	}
	expirationTime := time.Now().Add(expireDuration).Unix()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   identity,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: expirationTime,
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
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (a *AuthService) RefreshToken(oldToken string) (string, error) {
	claims, err := a.ValidateToken(oldToken)
	if err != nil {
		return "", err
	}
	return a.GenerateToken(claims.Subject)
}
