package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const AccessTokenTTL = 15 * time.Minute

var ErrInvalidToken = errors.New("invalid token")

// SignAccessToken issues an HS256 token with the user id as subject.
func SignAccessToken(userID uint, role string, secret []byte) (string, error) {
	exp := time.Now().Add(AccessTokenTTL)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// ParseAccessToken verifies signature and expiry and returns the subject.
func ParseAccessToken(rawToken string, secret []byte) (uint, error) {
	t, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("%w: cannot parse claims", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return uint(sub), nil
}
