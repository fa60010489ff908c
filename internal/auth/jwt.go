package auth

import (
	"context"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const jwtLeeway = 30 * time.Second

type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 identity tokens. The subject claim is the
// stable issuer id; email rides in a custom claim.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("identity secret must not be empty")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims := identityClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(jwtLeeway),
	)
	if err != nil {
		return Identity{}, errors.Wrap(err, "identity token rejected")
	}
	if !parsed.Valid {
		return Identity{}, errors.New("identity token invalid")
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("identity token missing subject")
	}
	if claims.IssuedAt == nil {
		return Identity{}, errors.New("identity token missing iat")
	}
	return Identity{
		Issuer:   claims.Subject,
		Email:    claims.Email,
		IssuedAt: claims.IssuedAt.Unix(),
	}, nil
}
