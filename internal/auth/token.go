// Package auth implements the signed-token identity layer: issuing
// time-bounded HS256 tokens for a verified user, verifying replayed
// tokens, and extracting them from incoming requests.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the canonical validity window for issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// Verification failures. The HTTP boundary collapses all of these into
// a single 401, but they stay distinguishable for callers and tests.
var (
	ErrMissingToken     = errors.New("auth: missing token")
	ErrMalformedToken   = errors.New("auth: malformed token")
	ErrInvalidSignature = errors.New("auth: invalid signature")
	ErrExpired          = errors.New("auth: token expired")
)

// Claims is the token payload: the owning user's numeric id plus the
// registered time claims.
type Claims struct {
	UserID int `json:"userId"`
	jwt.RegisteredClaims
}

// Issuer produces signed tokens for verified users.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// TTL returns the configured validity window.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token asserting userID, valid from now until now+ttl.
func (i *Issuer) Issue(userID int) (string, error) {
	if userID < 1 {
		return "", errors.New("auth: invalid user id")
	}
	now := i.now()
	// exp travels at whole-second precision, so round it up: a token
	// issued mid-second must still cover the full window.
	exp := now.Add(i.ttl)
	if trunc := exp.Truncate(time.Second); !exp.Equal(trunc) {
		exp = trunc.Add(time.Second)
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verifier checks token integrity and expiry against the configured
// secret. Verification is a pure function of (token, secret, now).
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier constructs a Verifier using the wall clock.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// Verify returns the user id embedded in tokenString, or one of the
// sentinel errors above.
func (v *Verifier) Verify(tokenString string) (int, error) {
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSignature):
		return 0, ErrInvalidSignature
	default:
		return 0, ErrMalformedToken
	}

	if !token.Valid || claims.UserID < 1 {
		return 0, ErrMalformedToken
	}
	return claims.UserID, nil
}
