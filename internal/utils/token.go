package utils // package utils provides helpers for hold tokens and registration numbers

import (
	"crypto/rand" // secure random number generation
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrTokenInvalid is returned when a hold token fails signature or
// claim validation, including wall-clock expiry. An expired token is
// rejected here even before the sweeper has reclaimed the hold.
var ErrTokenInvalid = errors.New("invalid hold token")

// HoldToken represents a signed JWT returned to a client after a hold
// is placed. The token deterministically encodes the pass key
// (park and registration number), so presenting it at commit time is
// the sole link back to the held pass — no separate index is kept.
type HoldToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time, matching the hold expiry
}

// NewHoldToken builds and signs an HS256 JWT binding a hold to its
// pass key. Claims: sub carries "parkID/registrationNumber", exp the
// hold expiry and iat the issue time. The expiry in the token and the
// hold_expires_at column are set from the same timestamp so the
// commit path and the sweeper agree on when the hold lapses.
func NewHoldToken(secret, parkID, registration string, exp time.Time) (HoldToken, error) {
	claims := jwt.MapClaims{
		"sub": parkID + "/" + registration,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return HoldToken{}, err
	}
	return HoldToken{Token: signed, Exp: exp}, nil
}

// ParseHoldToken validates a hold token and returns the pass key it
// encodes. Signature, algorithm and expiry are all checked; any
// failure maps to ErrTokenInvalid so callers need not distinguish a
// forged token from a lapsed one.
func ParseHoldToken(secret, raw string) (parkID, registration string, err error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", "", ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrTokenInvalid
	}
	sub, _ := claims["sub"].(string)
	park, reg, found := strings.Cut(sub, "/")
	if !found || park == "" || reg == "" {
		return "", "", ErrTokenInvalid
	}
	return park, reg, nil
}

// NewRegistrationNumber returns a random 20 character hex string used
// as the pass identifier within a park. Collisions are left to the
// primary key: an insert failure on a duplicate simply fails the
// request, which at 10 random bytes is not a practical concern.
func NewRegistrationNumber() (string, error) {
	return randomHex(10)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
