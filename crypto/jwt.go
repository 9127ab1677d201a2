/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package crypto

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/nuts-foundation/ebsi-issuer/core"
)

var (
	// ErrInvalidSignature is returned when the JWT's signature does not verify with the given key.
	ErrInvalidSignature = errors.New("invalid JWT signature")
	// ErrTokenExpired is returned when the JWT's exp claim has passed.
	ErrTokenExpired = errors.New("JWT has expired")
	// ErrIssuerMismatch is returned when the iss claim or kid header does not match the expected issuer DID.
	ErrIssuerMismatch = errors.New("JWT issuer mismatch")
	// ErrNoMatchingKey is returned when none of the resolved keys verify the JWT.
	ErrNoMatchingKey = errors.New("no key verifies the JWT")
	// ErrSigningFailure is returned when signing fails.
	ErrSigningFailure = errors.New("signing failed")
	// ErrVerificationFailure is returned when a JWT can't be verified for any other reason (malformed, unresolvable signer).
	ErrVerificationFailure = errors.New("JWT verification failed")
)

// DefaultClockSkew is the allowed clock skew when checking exp and nbf.
const DefaultClockSkew = 5 * time.Second

// Token is a decoded JWT: its protected headers and claims.
type Token struct {
	Headers jws.Headers
	Claims  jwt.Token
	Raw     string
}

// KeyID returns the kid header.
func (t Token) KeyID() string {
	return t.Headers.KeyID()
}

// Type returns the typ header.
func (t Token) Type() string {
	return t.Headers.Type()
}

// Issuer returns the iss claim.
func (t Token) Issuer() string {
	return t.Claims.Issuer()
}

// StringClaim returns the value of the given claim if it is a string, or an empty string otherwise.
func (t Token) StringClaim(name string) string {
	value, ok := t.Claims.Get(name)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// KeyResolver resolves the public keys of a DID, used to verify JWTs signed by a DID subject.
type KeyResolver interface {
	ResolveKeys(ctx context.Context, did string) ([]jwk.Key, error)
}

type verifyConfig struct {
	clock    func() time.Time
	skew     time.Duration
	audience string
}

// VerifyOption configures JWT verification.
type VerifyOption func(*verifyConfig)

// WithClock sets the clock used to check exp and nbf.
func WithClock(clock func() time.Time) VerifyOption {
	return func(c *verifyConfig) {
		c.clock = clock
	}
}

// WithAudience requires the aud claim to contain the given audience.
func WithAudience(audience string) VerifyOption {
	return func(c *verifyConfig) {
		c.audience = audience
	}
}

// DecodeJWT decodes the headers and claims of a compact JWT without verifying it.
func DecodeJWT(token string) (*Token, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailure, err)
	}
	if len(message.Signatures()) != 1 {
		return nil, fmt.Errorf("%w: incorrect amount of signatures in JWT", ErrVerificationFailure)
	}
	claims, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailure, err)
	}
	return &Token{
		Headers: message.Signatures()[0].ProtectedHeaders(),
		Claims:  claims,
		Raw:     token,
	}, nil
}

// VerifyJWT verifies the signature of the JWT with the given key and checks its exp, nbf and iss.
// If expectedIssuer is empty, the iss claim isn't checked. A kid header in DID URL form must reference the expected issuer.
func VerifyJWT(token string, key interface{}, expectedIssuer string, expectedAlg jwa.SignatureAlgorithm, opts ...VerifyOption) (*Token, error) {
	cfg := verifyConfig{clock: time.Now, skew: DefaultClockSkew}
	for _, opt := range opts {
		opt(&cfg)
	}
	decoded, err := DecodeJWT(token)
	if err != nil {
		return nil, err
	}
	if decoded.Headers.Algorithm() != expectedAlg {
		return nil, fmt.Errorf("%w: unexpected alg %s", ErrVerificationFailure, decoded.Headers.Algorithm())
	}
	if _, err = jws.Verify([]byte(token), jws.WithKey(expectedAlg, key)); err != nil {
		return nil, core.WrapError(ErrInvalidSignature, err)
	}
	now := cfg.clock()
	if exp := decoded.Claims.Expiration(); !exp.IsZero() && now.After(exp.Add(cfg.skew)) {
		return nil, ErrTokenExpired
	}
	if nbf := decoded.Claims.NotBefore(); !nbf.IsZero() && now.Add(cfg.skew).Before(nbf) {
		return nil, fmt.Errorf("%w: token not valid yet", ErrVerificationFailure)
	}
	if expectedIssuer != "" {
		if decoded.Issuer() != "" && decoded.Issuer() != expectedIssuer {
			return nil, fmt.Errorf("%w: iss is %s, expected %s", ErrIssuerMismatch, decoded.Issuer(), expectedIssuer)
		}
		if kidDID, ok := didFromKeyID(decoded.KeyID()); ok && kidDID != expectedIssuer {
			return nil, fmt.Errorf("%w: kid does not reference %s", ErrIssuerMismatch, expectedIssuer)
		}
	}
	if cfg.audience != "" && !slices.Contains(decoded.Claims.Audience(), cfg.audience) {
		return nil, fmt.Errorf("%w: aud does not contain %s", ErrVerificationFailure, cfg.audience)
	}
	return decoded, nil
}

// HolderAlgorithms are the signature algorithms accepted for JWTs signed by wallets.
var HolderAlgorithms = []jwa.SignatureAlgorithm{jwa.ES256, jwa.ES384, jwa.EdDSA}

// AlgorithmIn returns the alg header of the token, or ErrVerificationFailure if it isn't one of the allowed algorithms.
func AlgorithmIn(token string, allowed ...jwa.SignatureAlgorithm) (jwa.SignatureAlgorithm, error) {
	decoded, err := DecodeJWT(token)
	if err != nil {
		return "", err
	}
	alg := decoded.Headers.Algorithm()
	if !slices.Contains(allowed, alg) {
		return "", fmt.Errorf("%w: unsupported alg %s", ErrVerificationFailure, alg)
	}
	return alg, nil
}

// VerifyJWTWithResolver verifies a JWT signed by a DID subject. The DID is taken from the iss claim,
// or from the kid header if iss isn't a DID. The key matching the kid is tried first, then every other key of the DID.
func VerifyJWTWithResolver(ctx context.Context, token string, resolver KeyResolver, expectedAlg jwa.SignatureAlgorithm, opts ...VerifyOption) (*Token, error) {
	decoded, err := DecodeJWT(token)
	if err != nil {
		return nil, err
	}
	subjectDID := decoded.Issuer()
	if !strings.HasPrefix(subjectDID, "did:") {
		kidDID, ok := didFromKeyID(decoded.KeyID())
		if !ok {
			kidDID = decoded.KeyID()
		}
		subjectDID = kidDID
	}
	if !strings.HasPrefix(subjectDID, "did:") {
		return nil, fmt.Errorf("%w: unable to derive signer DID from iss or kid", ErrVerificationFailure)
	}
	keys, err := resolver.ResolveKeys(ctx, subjectDID)
	if err != nil {
		return nil, core.WrapError(ErrVerificationFailure, err)
	}
	var lastErr error
	for _, key := range orderKeys(keys, decoded.KeyID()) {
		result, err := VerifyJWT(token, key, subjectDID, expectedAlg, opts...)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrInvalidSignature) {
			// signature verified (or token is malformed), trying other keys won't help
			return nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: %s has no keys", ErrNoMatchingKey, subjectDID)
	}
	return nil, core.WrapError(ErrNoMatchingKey, lastErr)
}

// orderKeys returns the keys with the one matching the kid first.
func orderKeys(keys []jwk.Key, kid string) []jwk.Key {
	result := make([]jwk.Key, 0, len(keys))
	var rest []jwk.Key
	for _, key := range keys {
		if kid != "" && (key.KeyID() == kid || strings.HasSuffix(kid, "#"+strings.TrimPrefix(key.KeyID(), "#"))) {
			result = append(result, key)
		} else {
			rest = append(rest, key)
		}
	}
	return append(result, rest...)
}

func didFromKeyID(kid string) (string, bool) {
	if !strings.HasPrefix(kid, "did:") {
		return "", false
	}
	did, _, found := strings.Cut(kid, "#")
	return did, found
}
