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

package tokenV2

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/nuts-foundation/ebsi-issuer/audit"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/http/log"
)

// MaximumCredentialLength defines the maximum number of characters in a credential
const MaximumCredentialLength = 4096

// maximumLifetime is the longest a token may be valid, measured from nbf and iat.
const maximumLifetime = 1470 * time.Minute

const cryptoHash = crypto.SHA256

const auditModule = "HTTP"
const auditOperation = "TokenV2Auth"

// New returns a new token authenticator middleware given the contents of an SSH
// authorized_keys file. Requests containing a JWT Bearer token signed by one of
// the specified keys will be authorized, and those not will receive an HTTP 401
// error. Requests for which the skipper returns true are passed through.
func New(skipper middleware.Skipper, audience string, authorizedKeys []byte) (Middleware, error) {
	parsed, err := parseAuthorizedKeys(authorizedKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorizedKeys: %w", err)
	}
	auditCtx := audit.Context(context.Background(), "system", auditModule, auditOperation)
	for _, key := range parsed {
		audit.Log(auditCtx, log.Logger(), audit.AccessKeyRegisteredEvent).Infof("Registered key: %s", key)
	}
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return &middlewareImpl{
		skipper:        skipper,
		audience:       audience,
		authorizedKeys: parsed,
	}, nil
}

// NewFromFile is like New but it takes the path for an authorized_keys file
func NewFromFile(skipper middleware.Skipper, audience string, authorizedKeysPath string) (Middleware, error) {
	contents, err := os.ReadFile(authorizedKeysPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read %v: %w", authorizedKeysPath, err)
	}
	return New(skipper, audience, contents)
}

// Middleware defines the public interface to be set with Use() on an echo server
type Middleware interface {
	Handler(next echo.HandlerFunc) echo.HandlerFunc
}

type middlewareImpl struct {
	skipper middleware.Skipper
	// audience defines the enforced audience for JWT credentials
	audience string
	// authorizedKeys defines a number of SSH formatted public keys trusted to sign JWT credentials
	authorizedKeys []authorizedKey
}

// Handler returns an echo HandlerFunc for processing incoming requests
func (m middlewareImpl) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(context echo.Context) error {
		if m.skipper(context) {
			return next(context)
		}

		credential := authenticationCredential(context)
		if credential == "" {
			return unauthorizedError(context, errors.New("missing/malformed credential"))
		}

		algorithm, keyID, err := credentialIsSecure(credential)
		if err != nil {
			return unauthorizedError(context, fmt.Errorf("insecure credential: %w", err))
		}

		for _, authorizedKey := range m.authorizedKeys {
			if !authorizedKey.matchesKeyID(keyID) {
				continue
			}
			// A nil error only means the signature is valid, the claims are validated below
			token, err := jwt.ParseString(credential, jwt.WithKey(algorithm, authorizedKey.JWK), jwt.WithValidate(false))
			if err != nil {
				return unauthorizedError(context, fmt.Errorf("credential not signed by an authorized key: %w", err))
			}
			if token.Issuer() != authorizedKey.Comment {
				return unauthorizedError(context, fmt.Errorf("expected issuer (%s) does not match iss", authorizedKey.Comment))
			}
			if err := jwt.Validate(token, jwt.WithAudience(m.audience)); err != nil {
				return unauthorizedError(context, fmt.Errorf("jwt.Validate: %w", err))
			}
			if err := bestPracticesCheck(token); err != nil {
				return unauthorizedError(context, fmt.Errorf("insecure credential: %w", err))
			}

			auditContext := audit.Context(context.Request().Context(), authorizedKey.Comment, auditModule, auditOperation)
			audit.Log(auditContext, log.Logger(), audit.AccessGrantedEvent).
				WithField("jti", token.JwtID()).
				WithField("sub", token.Subject()).
				Infof("Access granted to user '%v'", authorizedKey.Comment)
			context.Set(core.UserContextKey, authorizedKey.Comment)
			return next(context)
		}

		return unauthorizedError(context, errors.New("credential not signed by an authorized key"))
	}
}

// credentialIsSecure checks the credential meets the minimum security standards (length, signing algorithm)
// and returns the algorithm and key ID of its signature.
//
// WARNING: A credential passing this check is not yet considered properly signed
// or having valid essential claims such as NotBefore, Expiration, etc.
func credentialIsSecure(credential string) (jwa.SignatureAlgorithm, string, error) {
	if len(credential) > MaximumCredentialLength {
		return "", "", errors.New("credential is too long")
	}

	// A JWT is a JWS with the claims as signed message
	message, err := jws.ParseString(credential)
	if err != nil {
		return "", "", fmt.Errorf("cannot parse credential: jws.ParseString: %w", err)
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", "", fmt.Errorf("expected exactly 1 signature, found %d", len(signatures))
	}
	headers := signatures[0].ProtectedHeaders()
	if !acceptableSignatureAlgorithm(headers.Algorithm()) {
		return "", "", fmt.Errorf("signing algorithm %v is not permitted", headers.Algorithm())
	}
	if headers.KeyID() == "" {
		return "", "", errors.New("missing field: kid")
	}
	return headers.Algorithm(), headers.KeyID(), nil
}

// bestPracticesCheck ensures tokens are crafted in a sensible way, ensuring that even a valid signer must
// conform to certain security controls such as not creating long lived credentials etc.
func bestPracticesCheck(token jwt.Token) error {
	for _, field := range []string{jwt.IssuedAtKey, jwt.ExpirationKey, jwt.NotBeforeKey, jwt.JwtIDKey} {
		if _, ok := token.Get(field); !ok {
			return fmt.Errorf("missing field: %s", field)
		}
	}
	if token.Subject() == "" {
		return errors.New("missing field: sub")
	}
	if _, err := uuid.Parse(token.JwtID()); err != nil {
		return errors.New("token jti is not a valid uuid")
	}
	if token.Expiration().After(token.NotBefore().Add(maximumLifetime)) {
		return errors.New("token expires too long after nbf")
	}
	if token.Expiration().After(token.IssuedAt().Add(maximumLifetime)) {
		return errors.New("token expires too long after iat")
	}
	if token.IssuedAt().After(token.NotBefore()) {
		return errors.New("token nbf occurs before iat")
	}
	return nil
}

// acceptableSignatureAlgorithm returns true if a signature algorithm
// is considered acceptable in terms of security.
func acceptableSignatureAlgorithm(algorithm jwa.SignatureAlgorithm) bool {
	switch algorithm {
	case jwa.ES256, jwa.ES384, jwa.ES512:
		return true
	// Only the strongest RSA algorithms are accepted, RS512 for ssh-agent compatibility
	case jwa.RS512, jwa.PS512:
		return true
	case jwa.EdDSA:
		return true
	// "none" is explicitly listed to make the intent clear, the default would reject it as well
	case jwa.NoSignature:
		return false
	default:
		return false
	}
}

// authenticationCredential returns the token present in the Authorization
// header of the HTTP request.
func authenticationCredential(context echo.Context) string {
	fields := strings.Fields(context.Request().Header.Get("Authorization"))
	if len(fields) != 2 || strings.ToLower(fields[0]) != "bearer" {
		return ""
	}
	return fields[1]
}

// unauthorizedError returns an echo unauthorized error, and registers an error writer that doesn't disclose the reason.
func unauthorizedError(context echo.Context, reason error) *echo.HTTPError {
	context.Set(core.UserContextKey, "")
	context.Set(core.ErrorWriterContextKey, &unauthorizedErrorWriter{})

	auditContext := audit.Context(context.Request().Context(), context.RealIP(), auditModule, auditOperation)
	audit.Log(auditContext, log.Logger(), audit.AccessDeniedEvent).Infof("Access denied: %v", reason)

	return &echo.HTTPError{
		Code:     http.StatusUnauthorized,
		Message:  "Unauthorized",
		Internal: reason,
	}
}

type unauthorizedErrorWriter struct{}

func (u unauthorizedErrorWriter) Write(echoContext echo.Context, _ int, _ string, _ error) error {
	echoContext.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echoContext.String(http.StatusUnauthorized, "Unauthorized")
}
