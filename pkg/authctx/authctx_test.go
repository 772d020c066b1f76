package authctx

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

func TestResolveActorContextPrefersStoredActor(t *testing.T) {
	expected := &auth.ActorContext{
		ActorID: uuid.NewString(),
		Subject: "alice",
	}
	ctx := WithActor(context.Background(), expected)

	actual, err := ResolveActorContext(ctx)
	if err != nil {
		t.Fatalf("ResolveActorContext returned error: %v", err)
	}
	if actual.ActorID != expected.ActorID {
		t.Fatalf("expected actor %s, got %s", expected.ActorID, actual.ActorID)
	}
}

func TestResolveActorContextFallsBackToClaims(t *testing.T) {
	actorID := uuid.New().String()
	claims := &stubClaims{subject: actorID, uid: actorID, role: "member"}
	ctx := auth.WithClaimsContext(context.Background(), claims)

	actual, err := ResolveActorContext(ctx)
	if err != nil {
		t.Fatalf("expected fallback to claims, got error: %v", err)
	}
	if actual.ActorID != actorID {
		t.Fatalf("expected actor %s, got %s", actorID, actual.ActorID)
	}
}

func TestResolveActorContextMissingReturnsRichError(t *testing.T) {
	_, err := ResolveActorContext(context.Background())
	if err == nil {
		t.Fatal("expected error when context lacks auth metadata")
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		t.Fatalf("expected go-errors.Error, got %T", err)
	}
	if richErr.TextCode != types.TextCodeAuthMissing {
		t.Fatalf("expected text code %s, got %s", types.TextCodeAuthMissing, richErr.TextCode)
	}
	if !IsAuthError(err) {
		t.Fatal("expected an auth category error")
	}
}

func TestActorRefFromActorContextUsesSubjectAsKey(t *testing.T) {
	id := uuid.New()
	ref, err := ActorRefFromActorContext(&auth.ActorContext{
		ActorID: id.String(),
		Subject: "alice",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ref.ID != id {
		t.Fatalf("expected id %s, got %s", id, ref.ID)
	}
	if ref.Key != "alice" {
		t.Fatalf("expected key alice, got %s", ref.Key)
	}

	ref, err = ActorRefFromActorContext(&auth.ActorContext{ActorID: id.String()})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ref.Key != id.String() {
		t.Fatalf("expected key to fall back to the actor id, got %s", ref.Key)
	}
}

func TestActorRefFromActorContextInvalidID(t *testing.T) {
	_, err := ActorRefFromActorContext(&auth.ActorContext{
		ActorID: "not-a-uuid",
	})
	if err == nil {
		t.Fatal("expected error for invalid actor id")
	}
	if !types.HasTextCode(err, types.TextCodeAuthInvalid) {
		t.Fatalf("expected text code %s, got %v", types.TextCodeAuthInvalid, err)
	}
}

func TestResolveActor(t *testing.T) {
	id := uuid.New()
	ctx := WithActor(context.Background(), &auth.ActorContext{ActorID: id.String(), Subject: "bob"})

	ref, actor, err := ResolveActor(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ref.ID != id || ref.Key != "bob" || actor == nil {
		t.Fatalf("unexpected resolution: %+v %+v", ref, actor)
	}
}

type stubClaims struct {
	subject  string
	uid      string
	role     string
	metadata map[string]any
	res      map[string]string
}

func (s *stubClaims) Subject() string                  { return s.subject }
func (s *stubClaims) UserID() string                   { return s.uid }
func (s *stubClaims) Role() string                     { return s.role }
func (s *stubClaims) CanRead(string) bool              { return true }
func (s *stubClaims) CanEdit(string) bool              { return true }
func (s *stubClaims) CanCreate(string) bool            { return true }
func (s *stubClaims) CanDelete(string) bool            { return true }
func (s *stubClaims) HasRole(role string) bool         { return s.role == role }
func (s *stubClaims) IsAtLeast(string) bool            { return true }
func (s *stubClaims) Expires() time.Time               { return time.Time{} }
func (s *stubClaims) IssuedAt() time.Time              { return time.Time{} }
func (s *stubClaims) ResourceRoles() map[string]string { return s.res }
func (s *stubClaims) ClaimsMetadata() map[string]any   { return s.metadata }
