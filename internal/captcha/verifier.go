// Package captcha verifies challenge-response proofs gating hold
// creation. Challenge generation (the image, the answer checking) is
// owned by an external service; that service mints a short-lived
// signed proof once the client answers correctly, and this package
// only decides whether a presented proof is acceptable.
package captcha

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// ErrProofInvalid is returned when a proof fails signature, claim or
// expiry validation.
var ErrProofInvalid = errors.New("invalid challenge proof")

// ErrProofUsed is returned when a structurally valid proof has already
// been redeemed once. Each proof admits exactly one hold.
var ErrProofUsed = errors.New("challenge proof already used")

// Verifier decides whether a challenge-response proof is acceptable.
// The booking engine depends on this interface only; swapping in a
// different challenge provider does not touch the engine.
type Verifier interface {
	Verify(ctx context.Context, proof string) error
}

// JWTVerifier validates HS256 proofs minted by the challenge service
// and enforces one-time use by tracking the jti claim in Redis. When
// no Redis client is available the replay check is skipped and only
// signature plus expiry are enforced; proofs are short-lived so the
// window is small.
type JWTVerifier struct {
	secret string
	rdb    *redis.Client
	ttl    time.Duration
}

// NewJWTVerifier constructs a verifier. secret must match the
// challenge service's signing key. ttl bounds how long a redeemed jti
// is remembered and should be at least the proof lifetime.
func NewJWTVerifier(secret string, rdb *redis.Client, ttl time.Duration) *JWTVerifier {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &JWTVerifier{secret: secret, rdb: rdb, ttl: ttl}
}

// Verify checks the proof's signature, algorithm and expiry, then
// claims its jti in Redis with SET NX so a second redemption of the
// same proof fails with ErrProofUsed.
func (v *JWTVerifier) Verify(ctx context.Context, proof string) error {
	tok, err := jwt.Parse(proof, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrProofInvalid
		}
		return []byte(v.secret), nil
	})
	if err != nil || !tok.Valid {
		return ErrProofInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ErrProofInvalid
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return ErrProofInvalid
	}
	if v.rdb == nil {
		return nil
	}
	set, err := v.rdb.SetNX(ctx, "captcha:jti:"+jti, 1, v.ttl).Result()
	if err != nil {
		// Redis being down must not block bookings; log and accept.
		log.Printf("captcha: replay check unavailable: %v", err)
		return nil
	}
	if !set {
		return ErrProofUsed
	}
	return nil
}
