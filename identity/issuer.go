package identity

import (
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of minted tokens.
const DefaultTTL = 24 * time.Hour

// Issuer mints HS256 sync tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	clock    types.Clock
}

// NewIssuer builds an issuer sharing cfg with the Verifier.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSecretRequired
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &Issuer{secret: cfg.Secret, issuer: cfg.Issuer, audience: cfg.Audience, clock: clock}, nil
}

// Issue returns a signed token for userID carrying profileKey.
func (i *Issuer) Issue(userID uuid.UUID, profileKey string, ttl time.Duration) (string, error) {
	if userID == uuid.Nil {
		return "", types.ErrUserIDRequired
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := i.clock.Now()
	claims := Claims{
		ProfileKey: profileKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
