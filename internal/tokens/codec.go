package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"

	tokenSubject = "user details"
	tokenIssuer  = "userservice"
)

var (
	ErrExpired      = errors.New("token expired")
	ErrBadSignature = errors.New("token signature invalid")
	ErrMalformed    = errors.New("token malformed")
)

type Claims struct {
	Username string `json:"username"`
	Kind     string `json:"type"`
	jwt.RegisteredClaims
}

// Codec issues and verifies the service's signed bearer tokens. It holds no
// state beyond the secret and the two TTLs.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (c *Codec) IssueAccess(username string) (string, error) {
	return c.issue(username, KindAccess, c.accessTTL, "")
}

// IssueRefresh embeds a fresh jti so two refresh tokens minted for the same
// user in the same second are never bit-identical.
func (c *Codec) IssueRefresh(username string) (string, error) {
	return c.issue(username, KindRefresh, c.refreshTTL, uuid.NewString())
}

func (c *Codec) issue(username, kind string, ttl time.Duration, jti string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tokenSubject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Validate verifies signature, issuer, subject and expiry, and returns the
// username claim.
func (c *Codec) Validate(tokenStr string) (string, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(tokenSubject),
	)
	switch {
	case err == nil && tkn.Valid:
		return claims.Username, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", ErrBadSignature
	default:
		return "", ErrMalformed
	}
}

// Kind reads the type claim without verifying signature or expiry. Callers
// must not trust the result without also calling Validate.
func (c *Codec) Kind(tokenStr string) string {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return ""
	}
	return claims.Kind
}

func (c *Codec) AccessTTLSeconds() int64 { return int64(c.accessTTL / time.Second) }

func (c *Codec) RefreshTTLSeconds() int64 { return int64(c.refreshTTL / time.Second) }

func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }
