// Package identity verifies the bearer tokens presented to the sync API and
// mints them for local development.
package identity

import (
	"errors"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSecretRequired occurs when a verifier or issuer is built without a key.
var ErrSecretRequired = errors.New("go-profilesync: signing secret required")

// Claims are the JWT claims carried by sync tokens. Subject holds the user id.
type Claims struct {
	ProfileKey string `json:"profile_key,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Config configures token verification and issuance.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
	Clock    types.Clock
}

// Verifier turns bearer tokens into go-auth actor contexts.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier builds an HMAC verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSecretRequired
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Clock != nil {
		options = append(options, jwt.WithTimeFunc(cfg.Clock.Now))
	}
	return &Verifier{secret: cfg.Secret, parser: jwt.NewParser(options...)}, nil
}

// Verify validates token and returns the actor it identifies. A blank token
// yields an AUTH_MISSING error, every other failure AUTH_INVALID.
func (v *Verifier) Verify(token string) (*auth.ActorContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, types.NewAuthMissingError("go-profilesync: bearer token required")
	}
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, types.NewAuthInvalidError(err, "go-profilesync: invalid bearer token")
	}
	if !parsed.Valid {
		return nil, types.NewAuthInvalidError(nil, "go-profilesync: invalid bearer token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, types.NewAuthInvalidError(err, "go-profilesync: token subject is not a user id")
	}

	key := strings.TrimSpace(claims.ProfileKey)
	if key == "" {
		key = userID.String()
	}
	return &auth.ActorContext{
		ActorID: userID.String(),
		Subject: key,
		Role:    claims.Role,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
