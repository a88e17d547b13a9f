package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type TokenClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens carrying the actor id (sub) and role.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

func (i *Issuer) GenerateToken(actor Actor, dur time.Duration) (string, error) {
	if !actor.Role.Valid() {
		return "", ErrUnknownRole
	}
	if actor.ID == "" {
		return "", ErrMissingSubject
	}

	claims := TokenClaims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(dur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *Issuer) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			alg, _ := token.Header["alg"].(string)
			return nil, errors.Wrap(ErrInvalidSigningMethod, alg)
		}
		return i.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// Actor verifies the token and returns the caller it identifies.
func (i *Issuer) Actor(tokenString string) (Actor, error) {
	claims, err := i.VerifyToken(tokenString)
	if err != nil {
		return Actor{}, err
	}
	if !claims.Role.Valid() {
		return Actor{}, ErrUnknownRole
	}
	if claims.Subject == "" {
		return Actor{}, ErrMissingSubject
	}
	return Actor{ID: claims.Subject, Role: claims.Role}, nil
}
