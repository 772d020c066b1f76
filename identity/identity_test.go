package identity

import (
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestIssueAndVerify(t *testing.T) {
	cfg := Config{Secret: []byte("s3cret"), Issuer: "profilesync", Audience: "clients"}
	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)
	verifier, err := NewVerifier(cfg)
	require.NoError(t, err)

	userID := uuid.New()
	token, err := issuer.Issue(userID, "alice", time.Hour)
	require.NoError(t, err)

	actor, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, userID.String(), actor.ActorID)
	require.Equal(t, "alice", actor.Subject)
}

func TestVerify_MissingToken(t *testing.T) {
	verifier, err := NewVerifier(Config{Secret: []byte("s3cret")})
	require.NoError(t, err)

	_, err = verifier.Verify("  ")
	require.True(t, types.HasTextCode(err, types.TextCodeAuthMissing))
}

func TestVerify_RejectsInvalidTokens(t *testing.T) {
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer, err := NewIssuer(Config{Secret: []byte("s3cret"), Clock: fixedClock{issued}})
	require.NoError(t, err)
	token, err := issuer.Issue(uuid.New(), "alice", time.Minute)
	require.NoError(t, err)

	expired, err := NewVerifier(Config{Secret: []byte("s3cret"), Clock: fixedClock{issued.Add(time.Hour)}})
	require.NoError(t, err)
	_, err = expired.Verify(token)
	require.True(t, types.HasTextCode(err, types.TextCodeAuthInvalid))

	wrongKey, err := NewVerifier(Config{Secret: []byte("other"), Clock: fixedClock{issued}})
	require.NoError(t, err)
	_, err = wrongKey.Verify(token)
	require.True(t, types.HasTextCode(err, types.TextCodeAuthInvalid))

	valid, err := NewVerifier(Config{Secret: []byte("s3cret"), Clock: fixedClock{issued}})
	require.NoError(t, err)
	_, err = valid.Verify("not.a.jwt")
	require.True(t, types.HasTextCode(err, types.TextCodeAuthInvalid))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = valid.Verify(unsigned)
	require.True(t, types.HasTextCode(err, types.TextCodeAuthInvalid))
}

func TestVerify_SubjectMustBeUserID(t *testing.T) {
	secret := []byte("s3cret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)

	verifier, err := NewVerifier(Config{Secret: secret})
	require.NoError(t, err)
	_, err = verifier.Verify(token)
	require.True(t, types.HasTextCode(err, types.TextCodeAuthInvalid))
}

func TestVerify_ProfileKeyDefaultsToUserID(t *testing.T) {
	cfg := Config{Secret: []byte("s3cret")}
	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)
	verifier, err := NewVerifier(cfg)
	require.NoError(t, err)

	userID := uuid.New()
	token, err := issuer.Issue(userID, "", 0)
	require.NoError(t, err)
	actor, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, userID.String(), actor.Subject)
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", BearerToken("Bearer abc"))
	require.Equal(t, "abc", BearerToken("bearer  abc "))
	require.Empty(t, BearerToken("Basic abc"))
	require.Empty(t, BearerToken(""))
	require.Empty(t, BearerToken("Bearer"))
}

func TestConstructorsRequireSecret(t *testing.T) {
	_, err := NewVerifier(Config{})
	require.ErrorIs(t, err, ErrSecretRequired)
	_, err = NewIssuer(Config{})
	require.ErrorIs(t, err, ErrSecretRequired)
}
