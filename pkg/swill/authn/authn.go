// Package authn provides an optional bearer-token authentication hook for
// a Swill connection: verifying a JWT carried in the handshake's
// Authorization header and attaching its claims to the connection as its
// Principal. Grounded on the JWT usage in the teacher's
// pkg/api/github/api.go (github.com/golang-jwt/jwt/v5), generalized from
// one-way JWT generation to verification.
package authn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tzrikka/swill/pkg/swill"
)

// ErrMissingBearerToken is raised when the handshake carries no (or a
// malformed) Authorization header.
var ErrMissingBearerToken = errors.New("authn: missing bearer token")

// KeyFunc resolves the signing key for a token, as required by
// [jwt.Parser.Parse]. Implementations typically dispatch on the token's
// "kid" header or issuer claim.
type KeyFunc = jwt.Keyfunc

// Hook returns a [swill.Hooks].BeforeConnection callback that verifies the
// connection's bearer token and stores its claims on [swill.Connection].
// Principal as [jwt.MapClaims]. A connection without a verifiable token is
// not rejected by this hook alone - wire it together with a handler-level
// check, or wrap it to call [swill.Connection].SetCloseHandler's
// CloseConnection path, depending on whether anonymous connections should
// be allowed to exist at all.
func Hook(keyFunc KeyFunc, parserOpts ...jwt.ParserOption) func(context.Context, *swill.Connection) {
	parser := jwt.NewParser(parserOpts...)

	return func(_ context.Context, conn *swill.Connection) {
		tokenString, err := bearerToken(conn.Handshake.Headers.Get("Authorization"))
		if err != nil {
			return
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(tokenString, claims, keyFunc); err != nil {
			return
		}

		conn.Principal = claims
	}
}

// RequireAuthenticated verifies conn's bearer token directly, like the
// callback [Hook] returns, but reports the outcome: on failure it returns
// a *[swill.CloseConnection] with Code 401 and leaves conn unchanged; on
// success it stores the claims as conn.Principal and returns nil. It does
// not panic and is not itself a hook: nothing in this module calls it.
func RequireAuthenticated(conn *swill.Connection, keyFunc KeyFunc, parserOpts ...jwt.ParserOption) error {
	tokenString, err := bearerToken(conn.Handshake.Headers.Get("Authorization"))
	if err != nil {
		return &swill.CloseConnection{Code: 401, Reason: err.Error()}
	}

	parser := jwt.NewParser(parserOpts...)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, keyFunc); err != nil {
		return &swill.CloseConnection{Code: 401, Reason: fmt.Sprintf("invalid bearer token: %v", err)}
	}

	conn.Principal = claims
	return nil
}

// Authenticate verifies the bearer token in an incoming HTTP request, for
// use as a [wsserver.Server].Authenticate hook. Unlike [Hook] and
// [RequireAuthenticated], it runs before the WebSocket upgrade begins, so
// a failure can still be reported as an ordinary HTTP response: the caller
// is expected to turn a returned *[swill.CloseConnection]'s Code into a
// status with [swill.HTTPStatusForClose]. On success it returns the
// token's claims, for the caller to attach to the new [swill.Connection]'s
// Principal once it exists.
func Authenticate(keyFunc KeyFunc, parserOpts ...jwt.ParserOption) func(*http.Request) (any, error) {
	parser := jwt.NewParser(parserOpts...)

	return func(r *http.Request) (any, error) {
		tokenString, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			return nil, &swill.CloseConnection{Code: 401, Reason: err.Error()}
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(tokenString, claims, keyFunc); err != nil {
			return nil, &swill.CloseConnection{Code: 401, Reason: fmt.Sprintf("invalid bearer token: %v", err)}
		}
		return claims, nil
	}
}

func bearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissingBearerToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrMissingBearerToken
	}
	return token, nil
}
