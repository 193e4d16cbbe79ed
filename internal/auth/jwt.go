package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	AccessExp    time.Time `json:"accessExpiresAt"`
	RefreshExp   time.Time `json:"refreshExpiresAt"`
}

// Claims represents JWT payload. TeacherID is set for interns so handlers can
// authorize teacher views without a directory lookup.
type Claims struct {
	Role      string `json:"role"`
	TeacherID string `json:"tid,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is the subject a token pair is issued for.
type Identity struct {
	Subject   string
	Role      string
	TeacherID string
}

// Issue issues signed access and refresh tokens.
func Issue(id Identity, issuer, key string, accessTTL, refreshTTL time.Duration, now time.Time) (TokenPair, error) {
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	accessToken, err := sign(id, tokenAccess, issuer, key, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := sign(id, tokenRefresh, issuer, key, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func sign(id Identity, typ, issuer, key string, now, exp time.Time) (string, error) {
	claims := Claims{
		Role:      id.Role,
		TeacherID: id.TeacherID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("missing subject")
	}
	return *claims, nil
}
