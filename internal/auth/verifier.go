// Package auth turns bearer tokens issued by the external auth provider into
// access identities. Tokens are only verified here, never issued.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"wellness-gatekeeper/internal/domain/access"
)

var ErrInvalidToken = errors.New("invalid token")

type Verifier interface {
	Verify(ctx context.Context, rawToken string) (access.Identity, error)
}

type Options struct {
	JWTSecret    string
	OIDCIssuer   string
	OIDCClientID string
}

// NewVerifier prefers OIDC when an issuer is configured and falls back to
// shared-secret JWTs otherwise.
func NewVerifier(ctx context.Context, opts Options) (Verifier, error) {
	if opts.OIDCIssuer != "" {
		return NewOIDCVerifier(ctx, opts.OIDCIssuer, opts.OIDCClientID)
	}
	if opts.JWTSecret != "" {
		return NewHMACVerifier(opts.JWTSecret), nil
	}
	return nil, errors.New("auth: neither OIDC issuer nor JWT secret configured")
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})),
	}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (access.Identity, error) {
	token, err := v.parser.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return access.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return access.Identity{}, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}
	return identityFromClaims(claims)
}

type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's keys. An empty clientID skips the
// audience check.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("init oidc provider %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(oidcConfig(clientID))}, nil
}

// NewOIDCVerifierWithKeys verifies against a fixed key set without discovery.
func NewOIDCVerifierWithKeys(issuer, clientID string, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keys, oidcConfig(clientID))}
}

func oidcConfig(clientID string) *oidc.Config {
	return &oidc.Config{ClientID: clientID, SkipClientIDCheck: clientID == ""}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (access.Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return access.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return access.Identity{}, fmt.Errorf("%w: decode claims: %v", ErrInvalidToken, err)
	}
	return identityFromClaims(claims)
}

func identityFromClaims(claims map[string]interface{}) (access.Identity, error) {
	id := access.Identity{
		ID:            subject(claims),
		Email:         stringClaim(claims, "email"),
		EmailVerified: boolClaim(claims, "email_verified"),
		Role:          stringClaim(claims, "role"),
	}
	if id.ID == "" {
		return access.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return id, nil
}

// subject reads "sub", falling back to a legacy numeric or string "user_id".
func subject(claims map[string]interface{}) string {
	if sub := stringClaim(claims, "sub"); sub != "" {
		return sub
	}
	switch v := claims["user_id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

func boolClaim(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}
